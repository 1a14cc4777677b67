package playback

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   *Range
		err    error
	}{
		{"", 1000, nil, nil},
		{"bytes=0-999", 1000, &Range{0, 999}, nil},
		{"bytes=500-", 1000, &Range{500, 999}, nil},
		{"bytes=-500", 1000, &Range{500, 999}, nil},
		{"bytes=0-0", 1000, &Range{0, 0}, nil},
		{"bytes=0-2000", 1000, &Range{0, 999}, nil},
		{"bytes=-2000", 500, &Range{0, 499}, nil},
		{"bytes=999-", 1000, &Range{999, 999}, nil},
		{"bytes=0-99, 200-299", 1000, &Range{0, 99}, nil},

		{"bytes=1000-", 1000, nil, ErrUnsatisfiable},
		{"bytes=1500-2000", 1000, nil, ErrUnsatisfiable},
		{"bytes=200-100", 1000, nil, ErrUnsatisfiable},
		{"bytes=0-", 0, nil, ErrUnsatisfiable},
		{"invalid", 1000, nil, ErrInvalidRange},
		{"chars=0-100", 1000, nil, ErrInvalidRange},
		{"bytes=abc-100", 1000, nil, ErrInvalidRange},
		{"bytes=0-abc", 1000, nil, ErrInvalidRange},
		{"bytes=-0", 1000, nil, ErrInvalidRange},
		{"bytes=1-2-3", 1000, nil, ErrInvalidRange},
	}

	for _, tt := range tests {
		got, err := ParseRange(tt.header, tt.size)
		if !errors.Is(err, tt.err) {
			t.Errorf("ParseRange(%q, %d) error = %v, want %v", tt.header, tt.size, err, tt.err)
			continue
		}
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseRange(%q) = %+v, want nil", tt.header, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("ParseRange(%q) = %v, want %+v", tt.header, got, *tt.want)
		}
	}
}

func TestRange_Headers(t *testing.T) {
	r := Range{Start: 500, End: 999}
	if got := r.ContentLength(); got != 500 {
		t.Errorf("ContentLength() = %d, want 500", got)
	}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %q", got)
	}
	if got := (Range{}).ContentLength(); got != 1 {
		t.Errorf("single byte ContentLength() = %d, want 1", got)
	}
}
