package timecode

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"42", 42},
		{"12.5", 12.5},
		{"01:35", 95},
		{"1:35", 95},
		{"00:01:30", 90},
		{"0:59:59", 3599},
		{"02:01:30", 7290},
		{"1:00:00", 3600},
		{"0:60:00", 3600},
		{"00:01:30.5", 90.5},
		{" 01:35 ", 95},
		{"1:2:3:4", 0},
		{"ab:cd", 0},
		{"abc", 0},
		{"10:xx", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Parse(tt.in); got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 12.25, 12.25},
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"string", "01:35", 95},
		{"json number", json.Number("3.5"), 3.5},
		{"unsupported", []string{"1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseValue(tt.in); got != tt.want {
				t.Errorf("ParseValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{95, "01:35"},
		{95.9, "01:35"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{7290, "2:01:30"},
		{-3, "00:00"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []float64{0, 1, 59, 60, 95, 600, 3599, 3600, 3661, 7290, 36000} {
		if got := Parse(Format(s)); got != s {
			t.Errorf("Parse(Format(%v)) = %v (via %q)", s, got, Format(s))
		}
	}
}

func TestFormatPrecise(t *testing.T) {
	if got := FormatPrecise(3661.25); got != "01:01:01.250" {
		t.Errorf("FormatPrecise(3661.25) = %q", got)
	}
	if got := FormatPrecise(0); got != "00:00:00.000" {
		t.Errorf("FormatPrecise(0) = %q", got)
	}
}
