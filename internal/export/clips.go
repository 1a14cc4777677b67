package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/clips"
)

const (
	maxClipNameLen    = 160
	maxProjectNameLen = 120
)

// ResolveClips turns a clip set into EDL events against the source video.
// Clips with an unusable range are returned by name in unresolved.
func ResolveClips(video clips.VideoInfo, list []clips.Clip) (resolved []ResolvedClip, unresolved []string) {
	media := video.Identity()
	unresolved = []string{}
	for _, c := range list {
		name := SanitizeName(c.Name, maxClipNameLen)
		if name == "" {
			name = clips.DefaultName(c.ID)
		}
		if media == "" || c.Start < 0 || c.End <= c.Start {
			unresolved = append(unresolved, name)
			continue
		}
		resolved = append(resolved, ResolvedClip{
			ClipName:  name,
			MediaPath: media,
			Caption:   strings.Join(strings.Fields(c.Caption), " "),
			StartMs:   int(math.Round(c.Start * 1000)),
			EndMs:     int(math.Round(c.End * 1000)),
		})
	}
	return resolved, unresolved
}

// ProjectName is the sanitized file stem for an export.
func ProjectName(title string) string {
	name := SanitizeName(title, maxProjectNameLen)
	if name == "" {
		return "heimdex_clips"
	}
	return name
}

// ClipFileName is the output file name of a cut clip.
func ClipFileName(name string, id int) string {
	stem := strings.ReplaceAll(SanitizeName(name, maxClipNameLen), " ", "_")
	if stem == "" {
		stem = "clip"
	}
	return fmt.Sprintf("%s_%d.mp4", stem, id)
}
