// Package editor holds the one open source video and routes clip edits to
// the registry and the preview. Registry changes feed the autosaver.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/heimdex/heimdex-clipper/internal/batch"
	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/preview"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

var ErrNoWorkspace = errors.New("no video is open")

// Sessions is the part of the reconciler the workspace uses.
type Sessions interface {
	UpsertSession(ctx context.Context, video clips.VideoInfo, list []clips.Clip, title string) (session.Session, error)
	ResumeSession(ctx context.Context, video clips.VideoInfo) (*session.Session, error)
}

type Autosaver interface {
	Schedule(video clips.VideoInfo, snapshot session.SnapshotFunc)
	Flush(ctx context.Context)
	Stop()
}

type Previewer interface {
	Select(ctx context.Context, sourcePath string, clip clips.Clip) (preview.State, error)
	Refresh(ctx context.Context, sourcePath string, clip clips.Clip) (preview.State, error)
	Deselect()
	Selected() int
}

type Batcher interface {
	StartCutAll(ctx context.Context, video clips.VideoInfo, src batch.ClipSource) (string, error)
}

// OpenResult says where the opened clip set came from.
type OpenResult struct {
	Video     clips.VideoInfo `json:"video"`
	Resumed   bool            `json:"resumed"`
	SessionID string          `json:"session_id,omitempty"`
	Clips     []clips.Clip    `json:"clips"`
}

type Workspace struct {
	sessions Sessions
	autosave Autosaver
	preview  Previewer
	batch    Batcher
	logger   *slog.Logger

	mu  sync.RWMutex
	reg *clips.Registry
}

func New(sessions Sessions, autosave Autosaver, pv Previewer, b Batcher, logger *slog.Logger) *Workspace {
	return &Workspace{
		sessions: sessions,
		autosave: autosave,
		preview:  pv,
		batch:    b,
		logger:   logging.WithComponent(logging.OrDiscard(logger), "editor"),
	}
}

// Open makes video the current workspace. A saved session for it wins over
// suggestions; suggestions are only used for a video never saved before.
func (w *Workspace) Open(ctx context.Context, video clips.VideoInfo, suggestions []clips.Suggestion) (OpenResult, error) {
	if video.Identity() == "" {
		return OpenResult{}, session.ErrNoIdentity
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reg != nil {
		w.autosave.Flush(ctx)
		w.preview.Deselect()
	}

	reg := clips.NewRegistry(video)
	res := OpenResult{Video: video}

	sess, err := w.sessions.ResumeSession(ctx, video)
	switch {
	case err == nil:
		if err := reg.BulkReplace(sess.Clips); err != nil {
			return OpenResult{}, fmt.Errorf("restore session %s: %w", sess.ID, err)
		}
		res.Resumed = true
		res.SessionID = sess.ID
	case errors.Is(err, session.ErrNotFound):
		if err := reg.BulkReplace(clips.FromSuggestions(video, suggestions)); err != nil {
			return OpenResult{}, err
		}
	default:
		return OpenResult{}, err
	}

	// every mutation from here on, batch output paths included, is autosaved
	reg.OnChange(func([]clips.Clip) {
		w.autosave.Schedule(video, reg.Snapshot)
	})

	w.reg = reg
	res.Clips = reg.Snapshot()
	w.logger.Info("workspace opened",
		"video", logging.SanitizePath(video.Identity()),
		"clips", len(res.Clips),
		"resumed", res.Resumed,
	)
	return res, nil
}

func (w *Workspace) registry() (*clips.Registry, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.reg == nil {
		return nil, ErrNoWorkspace
	}
	return w.reg, nil
}

func (w *Workspace) Video() (clips.VideoInfo, error) {
	reg, err := w.registry()
	if err != nil {
		return clips.VideoInfo{}, err
	}
	return reg.Video(), nil
}

func (w *Workspace) Clips() ([]clips.Clip, error) {
	reg, err := w.registry()
	if err != nil {
		return nil, err
	}
	return reg.Snapshot(), nil
}

func (w *Workspace) Add(currentTime float64) (clips.Clip, error) {
	reg, err := w.registry()
	if err != nil {
		return clips.Clip{}, err
	}
	return reg.Add(currentTime, reg.Video().Duration)
}

func (w *Workspace) Update(ctx context.Context, id int, field clips.Field, value any) (clips.Clip, error) {
	return w.edit(ctx, func(reg *clips.Registry) (clips.Clip, error) {
		return reg.Update(id, field, value)
	})
}

func (w *Workspace) SetStart(ctx context.Context, id int, t float64) (clips.Clip, error) {
	return w.edit(ctx, func(reg *clips.Registry) (clips.Clip, error) {
		return reg.SetStartFromPlayhead(id, t)
	})
}

func (w *Workspace) SetEnd(ctx context.Context, id int, t float64) (clips.Clip, error) {
	return w.edit(ctx, func(reg *clips.Registry) (clips.Clip, error) {
		return reg.SetEndFromPlayhead(id, t)
	})
}

func (w *Workspace) Remove(id int) error {
	reg, err := w.registry()
	if err != nil {
		return err
	}
	if err := reg.Remove(id); err != nil {
		return err
	}
	if w.preview.Selected() == id {
		w.preview.Deselect()
	}
	return nil
}

// Select previews a clip of the open video.
func (w *Workspace) Select(ctx context.Context, id int) (preview.State, error) {
	reg, err := w.registry()
	if err != nil {
		return preview.State{}, err
	}
	c, err := reg.Get(id)
	if err != nil {
		return preview.State{}, err
	}
	return w.preview.Select(ctx, reg.Video().FilePath, c)
}

func (w *Workspace) Deselect() {
	w.preview.Deselect()
}

// Save writes the session now, with an explicit title.
func (w *Workspace) Save(ctx context.Context, title string) (session.Session, error) {
	reg, err := w.registry()
	if err != nil {
		return session.Session{}, err
	}
	return w.sessions.UpsertSession(ctx, reg.Video(), reg.Snapshot(), title)
}

// CutAll starts a sequential batch over every clip.
func (w *Workspace) CutAll(ctx context.Context) (string, error) {
	reg, err := w.registry()
	if err != nil {
		return "", err
	}
	return w.batch.StartCutAll(ctx, reg.Video(), reg)
}

// Close flushes pending saves and releases the preview.
func (w *Workspace) Close(ctx context.Context) {
	w.autosave.Flush(ctx)
	w.autosave.Stop()
	w.preview.Deselect()
}

// edit applies a range or text mutation and re-renders the preview when the
// edited clip is the one being previewed.
func (w *Workspace) edit(ctx context.Context, fn func(reg *clips.Registry) (clips.Clip, error)) (clips.Clip, error) {
	reg, err := w.registry()
	if err != nil {
		return clips.Clip{}, err
	}
	c, err := fn(reg)
	if err != nil {
		return clips.Clip{}, err
	}

	if w.preview.Selected() == c.ID {
		if _, err := w.preview.Refresh(ctx, reg.Video().FilePath, c); err != nil && !errors.Is(err, preview.ErrSuperseded) {
			w.logger.Warn("preview refresh failed", "clip_id", c.ID, "error", err)
		}
	}
	return c, nil
}
