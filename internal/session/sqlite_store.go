package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
)

// savedAtLayout is fixed width so saved_at sorts lexically.
const savedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps sessions in the sessions table with the video and clip
// list stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, video_json, clips_json, saved_at
		FROM sessions ORDER BY saved_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess              Session
			videoRaw, clipRaw string
			savedAt           string
		)
		if err := rows.Scan(&sess.ID, &sess.Title, &videoRaw, &clipRaw, &savedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(videoRaw), &sess.Video); err != nil {
			return nil, fmt.Errorf("session %s: decode video: %w", sess.ID, err)
		}
		if err := json.Unmarshal([]byte(clipRaw), &sess.Clips); err != nil {
			return nil, fmt.Errorf("session %s: decode clips: %w", sess.ID, err)
		}
		if sess.Clips == nil {
			sess.Clips = []clips.Clip{}
		}
		sess.SavedAt, _ = time.Parse(savedAtLayout, savedAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, sess Session) error {
	videoRaw, err := json.Marshal(sess.Video)
	if err != nil {
		return fmt.Errorf("encode video: %w", err)
	}
	list := sess.Clips
	if list == nil {
		list = []clips.Clip{}
	}
	clipRaw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode clips: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, identity, title, video_json, clips_json, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity = excluded.identity,
			title = excluded.title,
			video_json = excluded.video_json,
			clips_json = excluded.clips_json,
			saved_at = excluded.saved_at
	`, sess.ID, sess.Video.Identity(), sess.Title, string(videoRaw), string(clipRaw),
		sess.SavedAt.UTC().Format(savedAtLayout))
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
