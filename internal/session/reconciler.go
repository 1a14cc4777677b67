package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/logging"
)

var ErrNoIdentity = errors.New("video has neither a file path nor a url")

// Reconciler upserts sessions by video identity so that any number of saves
// for one video leave a single record.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// serialises lookup+write so two saves cannot both miss and insert
	mu sync.Mutex
}

func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// UpsertSession writes list as the clip set of video, replacing the matching
// session if one exists.
func (r *Reconciler) UpsertSession(ctx context.Context, video clips.VideoInfo, list []clips.Clip, title string) (Session, error) {
	identity := video.Identity()
	if identity == "" {
		return Session{}, ErrNoIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.find(ctx, video)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	id := HashID(identity)
	if existing != nil {
		id = existing.ID
	}

	// autosaves pass no title and keep whatever the user named it
	if title == "" && existing != nil {
		title = existing.Title
	}
	if title == "" {
		title = defaultTitle(video)
	}

	snapshot := make([]clips.Clip, len(list))
	copy(snapshot, list)

	sess := Session{
		ID:      id,
		Title:   title,
		Video:   video,
		Clips:   snapshot,
		SavedAt: r.now(),
	}
	if err := r.store.Put(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("save session %s: %w", id, err)
	}

	logging.WithSessionID(r.logger, id).Debug("session saved",
		"clips", len(snapshot),
		"reused", existing != nil,
	)
	return sess, nil
}

// ResumeSession returns the saved session for video, or ErrNotFound. The
// saved clip list is authoritative over any in-memory state.
func (r *Reconciler) ResumeSession(ctx context.Context, video clips.VideoInfo) (*Session, error) {
	if video.Identity() == "" {
		return nil, ErrNotFound
	}
	return r.find(ctx, video)
}

func (r *Reconciler) List(ctx context.Context) ([]Session, error) {
	return r.store.List(ctx)
}

func (r *Reconciler) Get(ctx context.Context, id string) (*Session, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *Reconciler) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

func (r *Reconciler) find(ctx context.Context, video clips.VideoInfo) (*Session, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i := range all {
		if sameVideo(all[i].Video, video) {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

func sameVideo(a, b clips.VideoInfo) bool {
	if a.FilePath != "" && a.FilePath == b.FilePath {
		return true
	}
	return a.URL != "" && a.URL == b.URL
}

func defaultTitle(video clips.VideoInfo) string {
	if video.Title != "" {
		return video.Title
	}
	return filepath.Base(video.Identity())
}
