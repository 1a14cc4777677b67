package render

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// Prober reports what the render backend can do.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// CachedProbe keeps the last probe result for a TTL so status requests do
// not spawn ffmpeg every time.
type CachedProbe struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedProbe(prober Prober, logger *slog.Logger) *CachedProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CachedProbe{prober: prober, ttl: defaultProbeTTL, logger: logger}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (p *CachedProbe) Get(ctx context.Context) (*Capabilities, error) {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.cached.ProbedAt) < p.ttl {
		caps := p.cached
		p.mu.RUnlock()
		return caps, nil
	}
	p.mu.RUnlock()

	return p.Refresh(ctx)
}

func (p *CachedProbe) Peek() *Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

// Refresh probes regardless of cache freshness. A failed probe falls back
// to the stale result when there is one.
func (p *CachedProbe) Refresh(ctx context.Context) (*Capabilities, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	caps, err := p.prober.Probe(ctx)
	if err != nil {
		p.logger.Warn("render probe failed", "error", err)
		if p.cached != nil {
			return p.cached, nil
		}
		return caps, err
	}
	p.cached = caps
	return caps, nil
}

func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
