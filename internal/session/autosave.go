package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/logging"
)

const autosaveTimeout = 10 * time.Second

// Saver is what the autosaver writes through. *Reconciler implements it.
type Saver interface {
	UpsertSession(ctx context.Context, video clips.VideoInfo, list []clips.Clip, title string) (Session, error)
}

// SnapshotFunc returns the clip list to save. It is called when the save
// runs, not when it is scheduled.
type SnapshotFunc func() []clips.Clip

type pendingSave struct {
	video    clips.VideoInfo
	snapshot SnapshotFunc
	timer    *time.Timer
}

// Autosaver coalesces bursts of Schedule calls for a video into one save
// after delay. Each video has its own pending save. A delay of zero saves
// synchronously.
type Autosaver struct {
	saver  Saver
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingSave

	saveMu sync.Mutex
}

func NewAutosaver(saver Saver, delay time.Duration, logger *slog.Logger) *Autosaver {
	return &Autosaver{
		saver:   saver,
		delay:   delay,
		logger:  logging.WithComponent(logging.OrDiscard(logger), "autosave"),
		pending: make(map[string]*pendingSave),
	}
}

// Schedule replaces the pending save for video and restarts its debounce
// timer. Pending saves of other videos are untouched.
func (a *Autosaver) Schedule(video clips.VideoInfo, snapshot SnapshotFunc) {
	p := &pendingSave{video: video, snapshot: snapshot}

	if a.delay <= 0 {
		a.save(context.Background(), p)
		return
	}

	key := video.Identity()
	a.mu.Lock()
	defer a.mu.Unlock()
	if old, ok := a.pending[key]; ok {
		old.timer.Stop()
	}
	p.timer = time.AfterFunc(a.delay, func() { a.fire(key, p) })
	a.pending[key] = p
}

// Flush runs every pending save now, in identity order.
func (a *Autosaver) Flush(ctx context.Context) {
	for _, p := range a.takeAll() {
		a.save(ctx, p)
	}
}

// Stop drops all pending saves.
func (a *Autosaver) Stop() {
	a.takeAll()
}

func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Autosaver) fire(key string, p *pendingSave) {
	a.mu.Lock()
	if a.pending[key] != p {
		// rescheduled or flushed since the timer was armed
		a.mu.Unlock()
		return
	}
	delete(a.pending, key)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	a.save(ctx, p)
}

func (a *Autosaver) takeAll() []*pendingSave {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]string, 0, len(a.pending))
	for k := range a.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*pendingSave, 0, len(keys))
	for _, k := range keys {
		p := a.pending[k]
		p.timer.Stop()
		out = append(out, p)
		delete(a.pending, k)
	}
	return out
}

func (a *Autosaver) save(ctx context.Context, p *pendingSave) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	if _, err := a.saver.UpsertSession(ctx, p.video, p.snapshot(), ""); err != nil {
		a.logger.Warn("autosave failed",
			"video", logging.SanitizePath(p.video.Identity()),
			"error", err,
		)
	}
}
