package export

import (
	"fmt"
	"math"
	"strings"
)

// Timebase is the frame grid EDL timecodes are counted on.
type Timebase struct {
	FPS  int
	Drop bool
}

// TimebaseFor rounds frameRate to whole frames; 29.97 and 59.94 are flagged
// drop-frame. A non-positive rate means 30.
func TimebaseFor(frameRate float64) Timebase {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		return Timebase{FPS: 30}
	}
	drop := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
	return Timebase{FPS: fps, Drop: drop}
}

// Timecode renders ms as HH:MM:SS:FF on the grid.
func (tb Timebase) Timecode(ms int) string {
	frames := int(math.Round(float64(ms) * float64(tb.FPS) / 1000.0))
	ff := frames % tb.FPS
	secs := frames / tb.FPS
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, ff)
}

func (tb Timebase) fcm() string {
	if tb.Drop {
		return "FCM: DROP FRAME"
	}
	return "FCM: NON-DROP FRAME"
}

// GenerateEDL renders a CMX3600-style edit list. Events are laid back to back
// on the record side starting at zero.
func GenerateEDL(events []ResolvedClip, title string, frameRate float64) string {
	tb := TimebaseFor(frameRate)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n%s\n\n", title, tb.fcm())

	rec := 0
	for i, ev := range events {
		dur := ev.EndMs - ev.StartMs
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n",
			i+1, "AX", "V",
			tb.Timecode(ev.StartMs), tb.Timecode(ev.EndMs),
			tb.Timecode(rec), tb.Timecode(rec+dur),
		)
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", ev.ClipName)
		fmt.Fprintf(&b, "* MEDIA PATH:  %s\n", ev.MediaPath)
		if ev.Caption != "" {
			fmt.Fprintf(&b, "* COMMENT:  %s\n", ev.Caption)
		}
		rec += dur
	}
	return b.String()
}
