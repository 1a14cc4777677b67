package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/render"
)

const maxLogLines = 200

type Config struct {
	Cutter    render.Cutter
	Autosave  Autosaver
	Processor Processor
	History   HistoryRecorder
	// Width is the number of remote jobs run together.
	Width  int
	Waits  Waits
	Logger *slog.Logger
}

// Orchestrator runs one batch at a time and publishes its progress.
type Orchestrator struct {
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool
	bg      sync.WaitGroup

	mu        sync.Mutex
	snap      Snapshot
	listeners []func(Snapshot)
}

func New(cfg Config) *Orchestrator {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logging.WithComponent(logging.OrDiscard(cfg.Logger), "batch"),
		snap:   Snapshot{Logs: []string{}, Items: []ItemStatus{}},
	}
}

// Subscribe registers fn to receive every new snapshot. fn must not block.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// goBackground runs fn on its own goroutine, tracked by Wait.
func (o *Orchestrator) goBackground(fn func()) {
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		fn()
	}()
}

// Wait blocks until every batch started in the background has returned, or
// ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) RemoteEnabled() bool {
	return o.cfg.Processor != nil
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap.clone()
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Logs = append([]string{}, s.Logs...)
	out.Items = append([]ItemStatus{}, s.Items...)
	if s.Summary != nil {
		sum := *s.Summary
		sum.Failed = append([]string{}, s.Summary.Failed...)
		out.Summary = &sum
	}
	if s.Results != nil {
		out.Results = append([]Result{}, s.Results...)
	}
	return out
}

// claim marks the orchestrator busy and resets the snapshot for a new batch.
func (o *Orchestrator) claim(mode Mode, labels []string) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	id := uuid.NewString()
	items := make([]ItemStatus, len(labels))
	for i, l := range labels {
		items[i] = ItemStatus{Index: i, Label: l, State: ItemPending}
	}
	o.update(func(s *Snapshot) {
		*s = Snapshot{
			BatchID: id,
			Mode:    mode,
			Running: true,
			Logs:    []string{},
			Items:   items,
		}
	})
	return id, nil
}

// finish publishes the summary and releases the orchestrator.
func (o *Orchestrator) finish(sum *Summary) {
	o.update(func(s *Snapshot) {
		s.Running = false
		s.Progress = 100
		s.Summary = sum
		s.appendLog(fmt.Sprintf("batch finished: %d succeeded, %d failed", sum.Successful, len(sum.Failed)))
	})
	o.running.Store(false)
}

// resetProgress zeroes the bar unless another batch has started since.
func (o *Orchestrator) resetProgress(batchID string) {
	o.update(func(s *Snapshot) {
		if s.BatchID == batchID && !s.Running {
			s.Progress = 0
		}
	})
}

func (o *Orchestrator) update(fn func(s *Snapshot)) {
	o.mu.Lock()
	fn(&o.snap)
	snap := o.snap.clone()
	listeners := append([]func(Snapshot){}, o.listeners...)
	o.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (o *Orchestrator) setItem(i int, state ItemState, output, errMsg string) {
	o.update(func(s *Snapshot) {
		if i < 0 || i >= len(s.Items) {
			return
		}
		s.Items[i].State = state
		s.Items[i].OutputPath = output
		s.Items[i].Error = errMsg
	})
}

func (o *Orchestrator) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	o.update(func(s *Snapshot) { s.appendLog(line) })
}

func (s *Snapshot) appendLog(line string) {
	s.Logs = append(s.Logs, time.Now().Format("15:04:05")+" "+line)
	if len(s.Logs) > maxLogLines {
		s.Logs = s.Logs[len(s.Logs)-maxLogLines:]
	}
}
