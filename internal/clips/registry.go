package clips

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/heimdex/heimdex-clipper/internal/timecode"
)

// Registry is the ordered clip collection of one source video.
//
// Every mutation builds a new slice and swaps it in whole, so readers only
// ever see complete snapshots. Insertion order is display order.
type Registry struct {
	video VideoInfo

	mu        sync.RWMutex
	clips     []Clip
	listeners []func([]Clip)
}

func NewRegistry(video VideoInfo) *Registry {
	return &Registry{video: video}
}

func (r *Registry) Video() VideoInfo {
	return r.video
}

// OnChange registers fn to receive every new snapshot.
func (r *Registry) OnChange(fn func([]Clip)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Clip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneClips(r.clips)
}

func (r *Registry) Get(id int) (Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clips {
		if c.ID == id {
			return cloneClip(c), nil
		}
	}
	return Clip{}, fmt.Errorf("clip %d: %w", id, ErrNotFound)
}

// Add seeds a clip around the playhead: five seconds before it, ten after,
// clamped to the source bounds. A sourceDuration <= 0 means unknown and
// leaves the upper bound open.
func (r *Registry) Add(currentTime, sourceDuration float64) (Clip, error) {
	if currentTime < 0 || math.IsNaN(currentTime) {
		currentTime = 0
	}
	start := math.Max(0, currentTime-ClipLeadIn)
	end := currentTime + ClipTail
	if sourceDuration > 0 {
		end = math.Min(sourceDuration, end)
	}

	var added Clip
	err := r.swap(func(cur []Clip) ([]Clip, error) {
		id := nextID(cur)
		added = Clip{
			ID:      id,
			Start:   start,
			End:     end,
			Name:    DefaultName(id),
			Score:   DefaultScore,
			Channel: r.video.Channel,
		}
		if !added.validRange() {
			return nil, ErrInvalidRange
		}
		return append(cloneClips(cur), added), nil
	})
	if err != nil {
		return Clip{}, err
	}
	return added, nil
}

// Update sets one field. Time fields accept anything timecode.ParseValue
// understands. OutputPath is not a field; see SetOutputPath.
func (r *Registry) Update(id int, field Field, value any) (Clip, error) {
	return r.mutate(id, func(c *Clip) error {
		switch field {
		case FieldStart:
			c.Start = timecode.ParseValue(value)
		case FieldEnd:
			c.End = timecode.ParseValue(value)
		case FieldName:
			c.Name = strings.TrimSpace(fmt.Sprint(valueOrEmpty(value)))
		case FieldCaption:
			c.Caption = fmt.Sprint(valueOrEmpty(value))
		case FieldScore:
			c.Score = timecode.ParseValue(value)
		default:
			return fmt.Errorf("%q: %w", field, ErrUnknownField)
		}
		if !c.validRange() {
			return ErrInvalidRange
		}
		return nil
	})
}

func (r *Registry) SetStartFromPlayhead(id int, t float64) (Clip, error) {
	return r.Update(id, FieldStart, t)
}

func (r *Registry) SetEndFromPlayhead(id int, t float64) (Clip, error) {
	return r.Update(id, FieldEnd, t)
}

func (r *Registry) Remove(id int) error {
	return r.swap(func(cur []Clip) ([]Clip, error) {
		next := make([]Clip, 0, len(cur))
		found := false
		for _, c := range cur {
			if c.ID == id {
				found = true
				continue
			}
			next = append(next, cloneClip(c))
		}
		if !found {
			return nil, fmt.Errorf("clip %d: %w", id, ErrNotFound)
		}
		return next, nil
	})
}

// BulkReplace swaps in an entire clip list, as when loading a saved session
// or a fresh set of suggestions.
func (r *Registry) BulkReplace(list []Clip) error {
	for _, c := range list {
		if !c.validRange() {
			return fmt.Errorf("clip %d: %w", c.ID, ErrInvalidRange)
		}
	}
	return r.swap(func([]Clip) ([]Clip, error) {
		return cloneClips(list), nil
	})
}

// SetOutputPath records where a clip was produced. Only the batch
// orchestrator calls this; UI edits go through Update.
func (r *Registry) SetOutputPath(id int, path string) error {
	_, err := r.mutate(id, func(c *Clip) error {
		p := path
		c.OutputPath = &p
		return nil
	})
	return err
}

func (r *Registry) mutate(id int, fn func(c *Clip) error) (Clip, error) {
	var updated Clip
	err := r.swap(func(cur []Clip) ([]Clip, error) {
		next := cloneClips(cur)
		for i := range next {
			if next[i].ID != id {
				continue
			}
			if err := fn(&next[i]); err != nil {
				return nil, err
			}
			updated = cloneClip(next[i])
			return next, nil
		}
		return nil, fmt.Errorf("clip %d: %w", id, ErrNotFound)
	})
	return updated, err
}

func (r *Registry) swap(build func(cur []Clip) ([]Clip, error)) error {
	r.mu.Lock()
	next, err := build(r.clips)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.clips = next
	listeners := append([]func([]Clip){}, r.listeners...)
	snapshot := cloneClips(next)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

func nextID(list []Clip) int {
	max := 0
	for _, c := range list {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
