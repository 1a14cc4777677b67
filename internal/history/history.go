// Package history keeps a bounded, deduplicated list of artifacts produced
// by batch runs, most recent first.
package history

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultCap = 50

// Source tags
const (
	SourceUpload      = "upload"
	SourceClipHistory = "clip_history"
)

// Entry is one produced artifact. OutputPath is its identity; CreatedAt and
// FileSize are best effort and stay nil until the file has been located.
type Entry struct {
	ID         string     `json:"id"`
	OutputPath string     `json:"output_path"`
	Filename   string     `json:"filename,omitempty"`
	Title      string     `json:"title,omitempty"`
	URL        string     `json:"url,omitempty"`
	CreatedAt  *time.Time `json:"created_at"`
	FileSize   *int64     `json:"file_size"`
	Source     string     `json:"source,omitempty"`
}

// NormalizePath makes paths comparable regardless of separator style.
func NormalizePath(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
}

// Merge folds incoming into existing. An incoming entry whose normalized
// output path is already present takes over that slot's id and moves to the
// front; otherwise it is inserted at the front with a fresh id. The result
// holds at most limit entries. Merging the same entries twice gives the same
// list as merging them once. Entries without an output path are ignored.
func Merge(existing, incoming []Entry, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultCap
	}

	out := make([]Entry, len(existing))
	copy(out, existing)

	for _, e := range incoming {
		key := NormalizePath(e.OutputPath)
		if key == "" {
			continue
		}

		idx := indexOf(out, key)
		if idx >= 0 {
			prev := out[idx]
			e.ID = prev.ID
			if e.CreatedAt == nil {
				e.CreatedAt = prev.CreatedAt
			}
			if e.FileSize == nil {
				e.FileSize = prev.FileSize
			}
			out = append(out[:idx], out[idx+1:]...)
		} else {
			e.ID = uuid.NewString()
		}

		out = append([]Entry{e}, out...)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func indexOf(list []Entry, key string) int {
	for i := range list {
		if NormalizePath(list[i].OutputPath) == key {
			return i
		}
	}
	return -1
}
