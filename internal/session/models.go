// Package session persists one clip set per source video and reconciles
// repeated saves into a single record.
package session

import (
	"context"
	"errors"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/heimdex/heimdex-clipper/internal/clips"
)

var ErrNotFound = errors.New("session not found")

const idPrefix = "session_"

// Session is a saved snapshot of a source video's clip set.
type Session struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Video   clips.VideoInfo `json:"video_info"`
	Clips   []clips.Clip    `json:"clips"`
	SavedAt time.Time       `json:"saved_at"`
}

// Store is a plain record store. Put replaces any record with the same ID.
type Store interface {
	List(ctx context.Context) ([]Session, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

// HashID derives a session id from a video identity. It is a 32-bit
// multiply-by-31 rolling hash over UTF-16 code units, rendered in base 36.
// Distinct identities can collide.
func HashID(identity string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(identity)) {
		h = h*31 + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return idPrefix + strconv.FormatInt(abs, 36)
}
