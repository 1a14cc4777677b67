package clips

import (
	"math"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/timecode"
)

// Suggestion is one highlight proposed by an external analysis. Start and
// End arrive either as seconds or as timestamps ("01:35", "00:01:30").
type Suggestion struct {
	Start   any      `json:"start"`
	End     any      `json:"end"`
	Title   string   `json:"title"`
	Caption string   `json:"caption,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// FromSuggestions converts an analysis result into clips for video.
// Suggestions with an unusable range are dropped; ids run 1..n in order.
func FromSuggestions(video VideoInfo, suggestions []Suggestion) []Clip {
	out := make([]Clip, 0, len(suggestions))
	for _, s := range suggestions {
		start := timecode.ParseValue(s.Start)
		end := timecode.ParseValue(s.End)
		if video.Duration > 0 && end > video.Duration {
			end = video.Duration
		}

		id := len(out) + 1
		c := Clip{
			ID:      id,
			Start:   start,
			End:     end,
			Name:    strings.TrimSpace(s.Title),
			Caption: s.Caption,
			Score:   DefaultScore,
			Channel: video.Channel,
		}
		if c.Name == "" {
			c.Name = DefaultName(id)
		}
		if s.Score != nil && !math.IsNaN(*s.Score) {
			c.Score = math.Max(0, math.Min(MaxScore, *s.Score))
		}
		if !c.validRange() {
			continue
		}
		out = append(out, c)
	}
	return out
}
