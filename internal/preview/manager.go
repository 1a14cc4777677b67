// Package preview keeps at most one rendered preview alive, tied to the
// clip currently being inspected.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/render"
	"github.com/heimdex/heimdex-clipper/internal/timecode"
)

var (
	// ErrSuperseded is returned by a Select whose clip was replaced (or
	// deselected) before its render finished. Its artifact is discarded.
	ErrSuperseded = errors.New("preview superseded")
	// ErrUnavailable means the render failed or produced nothing usable.
	ErrUnavailable = errors.New("preview unavailable")
)

// State is the published preview. Ready is only true once the artifact has
// been verified on disk.
type State struct {
	ClipID  int     `json:"clip_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Path    string  `json:"path,omitempty"`
	Ready   bool    `json:"ready"`
	Pending bool    `json:"pending"`
	Error   string  `json:"error,omitempty"`
}

func (s State) selected() bool {
	return s.ClipID != 0
}

func (s State) matches(c clips.Clip) bool {
	return s.ClipID == c.ID && s.Start == c.Start && s.End == c.End
}

// Manager owns the preview lifecycle.
type Manager struct {
	renderer render.Cutter
	dir      string
	logger   *slog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
}

func NewManager(renderer render.Cutter, dir string, logger *slog.Logger) *Manager {
	return &Manager{
		renderer: renderer,
		dir:      dir,
		logger:   logging.WithComponent(logging.OrDiscard(logger), "preview"),
	}
}

// Select releases the current preview and renders one for clip. Selecting
// the clip that is already previewed, with the same range, does nothing.
func (m *Manager) Select(ctx context.Context, sourcePath string, clip clips.Clip) (State, error) {
	m.mu.Lock()
	if m.state.matches(clip) && (m.state.Ready || m.state.Pending) {
		st := m.state
		m.mu.Unlock()
		return st, nil
	}

	m.releaseLocked()
	m.gen++
	gen := m.gen
	renderCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = State{ClipID: clip.ID, Start: clip.Start, End: clip.End, Pending: true}
	m.mu.Unlock()
	defer cancel()

	req := render.CutRequest{
		SourcePath: sourcePath,
		Start:      timecode.Format(clip.Start),
		End:        timecode.Format(clip.End),
		OutputHint: filepath.Join(m.dir, "preview_"+uuid.NewString()[:8]+".mp4"),
	}
	res, err := m.renderer.Cut(renderCtx, req)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		m.discard(res.OutputPath)
		return State{}, ErrSuperseded
	}
	m.cancel = nil

	st := State{ClipID: clip.ID, Start: clip.Start, End: clip.End}
	switch {
	case err != nil:
		st.Error = err.Error()
	case !res.Success || res.OutputPath == "":
		st.Error = "render failed"
	default:
		if verr := verify(res.OutputPath); verr != nil {
			m.discard(res.OutputPath)
			st.Error = verr.Error()
		} else {
			st.Path = res.OutputPath
			st.Ready = true
		}
	}
	m.state = st

	if !st.Ready {
		m.logger.Warn("preview not ready", "clip_id", clip.ID, "error", st.Error)
		return st, fmt.Errorf("%w: %s", ErrUnavailable, st.Error)
	}
	m.logger.Debug("preview ready", "clip_id", clip.ID, "path", logging.SanitizePath(st.Path))
	return st, nil
}

// Refresh re-renders when clip is the selected clip and its range changed.
// Any other clip is ignored.
func (m *Manager) Refresh(ctx context.Context, sourcePath string, clip clips.Clip) (State, error) {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if !st.selected() || st.ClipID != clip.ID || st.matches(clip) {
		return st, nil
	}
	return m.Select(ctx, sourcePath, clip)
}

// Deselect releases the preview and invalidates any render in flight.
func (m *Manager) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.gen++
	m.state = State{}
}

// Close is Deselect; it exists so the manager can sit in a shutdown list.
func (m *Manager) Close() error {
	m.Deselect()
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Path is the ready artifact, or "".
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Ready {
		return ""
	}
	return m.state.Path
}

// Selected reports the previewed clip id, or 0.
func (m *Manager) Selected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ClipID
}

func (m *Manager) releaseLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.discard(m.state.Path)
	m.state.Path = ""
	m.state.Ready = false
}

// discard deletes an artifact; failures are only logged.
func (m *Manager) discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("failed to remove preview", "path", logging.SanitizePath(path), "error", err)
	}
}

func verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("preview artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("preview artifact is empty")
	}
	return nil
}
