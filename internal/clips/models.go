package clips

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	DefaultScore = 5.0
	MaxScore     = 10.0

	// ClipLeadIn and ClipTail bound a clip added at the playhead.
	ClipLeadIn = 5.0
	ClipTail   = 10.0
)

var (
	ErrNotFound     = errors.New("clip not found")
	ErrInvalidRange = errors.New("clip end must be after start and start must not be negative")
	ErrUnknownField = errors.New("unknown clip field")
)

// VideoInfo describes the source video a clip set belongs to.
type VideoInfo struct {
	Title         string  `json:"title"`
	FilePath      string  `json:"file_path,omitempty"`
	URL           string  `json:"url,omitempty"`
	Channel       string  `json:"channel,omitempty"`
	TranscriptRef string  `json:"transcript_ref,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
}

// Identity is the natural key of a source video: its file path, or its URL
// when it has not been downloaded.
func (v VideoInfo) Identity() string {
	if v.FilePath != "" {
		return v.FilePath
	}
	return v.URL
}

// Clip is one candidate output segment of a source video. OutputPath is nil
// until the clip has been produced.
type Clip struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Name       string  `json:"name"`
	Caption    string  `json:"caption"`
	Score      float64 `json:"score"`
	OutputPath *string `json:"output_path"`
	Channel    string  `json:"channel,omitempty"`
}

func (c Clip) validRange() bool {
	return c.Start >= 0 && c.End > c.Start
}

// Field names a mutable clip attribute.
type Field string

const (
	FieldStart   Field = "start"
	FieldEnd     Field = "end"
	FieldName    Field = "name"
	FieldCaption Field = "caption"
	FieldScore   Field = "score"
)

var defaultNamePattern = regexp.MustCompile(`^Clip \d+$`)

func DefaultName(n int) string {
	return fmt.Sprintf("Clip %d", n)
}

// IsDefaultName reports whether name is still the "Clip {n}" placeholder.
func IsDefaultName(name string) bool {
	return defaultNamePattern.MatchString(name)
}

func cloneClip(c Clip) Clip {
	if c.OutputPath != nil {
		p := *c.OutputPath
		c.OutputPath = &p
	}
	return c
}

func cloneClips(list []Clip) []Clip {
	out := make([]Clip, len(list))
	for i, c := range list {
		out[i] = cloneClip(c)
	}
	return out
}
