// Package timecode converts between textual timestamps and seconds.
package timecode

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse converts a textual timestamp to seconds.
//
// A plain number ("12.5") is returned as is. "MM:SS" and "HH:MM:SS" are
// split on ':'. A three part value whose hours field is 0 and whose other
// two fields are each at most 59 is read as MM:SS, so "00:01:30" is 90
// seconds. Anything else yields 0.
func Parse(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}

	parts := strings.Split(s, ":")
	nums := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		nums[i] = v
	}

	switch len(nums) {
	case 2:
		return nums[0]*60 + nums[1]
	case 3:
		// Some producers zero-pad an hours field that was never meant to exist.
		if nums[0] == 0 && nums[1] <= 59 && nums[2] <= 59 {
			return nums[1]*60 + nums[2]
		}
		return nums[0]*3600 + nums[1]*60 + nums[2]
	default:
		return 0
	}
}

// ParseValue accepts the loosely typed values found in decoded JSON.
// nil is 0, numbers are returned unchanged and strings go through Parse.
func ParseValue(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Parse(t.String())
		}
		return f
	case string:
		return Parse(t)
	default:
		return 0
	}
}

// Format renders seconds for display: MM:SS below one hour, H:MM:SS above.
// Fractions of a second are dropped.
func Format(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h == 0 {
		return fmt.Sprintf("%02d:%02d", m, sec)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}

// FormatPrecise renders HH:MM:SS.mmm, the form ffmpeg accepts for -ss/-to.
func FormatPrecise(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
