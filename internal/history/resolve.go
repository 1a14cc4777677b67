package history

import (
	"path"
	"strings"
	"time"
)

// ListedFile is one entry of the remote existing-files listing.
type ListedFile struct {
	Name      string
	Path      string
	Size      *int64
	CreatedAt *time.Time
}

// Resolve fills missing size and creation time from files. An entry matches
// a listed file when one normalized base name contains the other, ignoring
// case. Entries that already carry both values are left alone.
func Resolve(entries []Entry, files []ListedFile) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	for i := range out {
		if out[i].FileSize != nil && out[i].CreatedAt != nil {
			continue
		}
		want := baseKey(out[i].Filename)
		if want == "" {
			want = baseKey(out[i].OutputPath)
		}
		if want == "" {
			continue
		}
		for _, f := range files {
			got := baseKey(f.Name)
			if got == "" {
				got = baseKey(f.Path)
			}
			if got == "" || !(strings.Contains(got, want) || strings.Contains(want, got)) {
				continue
			}
			if out[i].FileSize == nil {
				out[i].FileSize = f.Size
			}
			if out[i].CreatedAt == nil {
				out[i].CreatedAt = f.CreatedAt
			}
			break
		}
	}
	return out
}

func baseKey(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.ToLower(strings.TrimSpace(base))
}
