// Package batch runs batches of clip production jobs: sequential local cuts
// of one source video, and chunked concurrent remote processing of many
// sources. A failing job never stops its siblings.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/history"
	"github.com/heimdex/heimdex-clipper/internal/remote"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

const DefaultWidth = 3

var (
	ErrNoSource       = errors.New("no source video selected")
	ErrNoClips        = errors.New("no clips to cut")
	ErrNoJobs         = errors.New("no jobs to process")
	ErrBusy           = errors.New("a batch is already running")
	ErrRemoteDisabled = errors.New("remote processing is not configured")
)

type Mode string

const (
	ModeCut    Mode = "cut"
	ModeRemote Mode = "remote"
)

type ItemState string

const (
	ItemPending ItemState = "pending"
	ItemRunning ItemState = "running"
	ItemDone    ItemState = "done"
	ItemFailed  ItemState = "failed"
)

// ItemStatus is the per-job line of a snapshot.
type ItemStatus struct {
	Index      int       `json:"index"`
	Label      string    `json:"label"`
	State      ItemState `json:"state"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Summary is reported once per batch.
type Summary struct {
	Successful int      `json:"successful"`
	Failed     []string `json:"failed"`
	Fatal      string   `json:"fatal,omitempty"`
}

// Snapshot is the observable orchestrator state.
type Snapshot struct {
	BatchID  string       `json:"batch_id,omitempty"`
	Mode     Mode         `json:"mode,omitempty"`
	Running  bool         `json:"running"`
	Progress int          `json:"progress"`
	Logs     []string     `json:"logs"`
	Items    []ItemStatus `json:"items"`
	Summary  *Summary     `json:"summary,omitempty"`
	Results  []Result     `json:"results,omitempty"`
}

// Waits are the named pauses of a batch. Zero skips the pause.
type Waits struct {
	// InterItem paces sequential cuts.
	InterItem time.Duration
	// Settle lets the remote service finish writing before its file listing
	// is queried.
	Settle time.Duration
	// Display keeps the final progress visible before it resets to 0.
	Display time.Duration
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ClipSource is the registry as seen by a sequential batch. SetOutputPath is
// the only write the orchestrator makes.
type ClipSource interface {
	Snapshot() []clips.Clip
	SetOutputPath(id int, path string) error
}

// Autosaver schedules debounced session saves.
type Autosaver interface {
	Schedule(video clips.VideoInfo, snapshot session.SnapshotFunc)
	Flush(ctx context.Context)
}

// Processor is the remote processing service.
type Processor interface {
	Process(ctx context.Context, payload remote.Payload, src remote.Source) (*remote.Artifact, error)
	ListFiles(ctx context.Context) (*remote.FileListing, error)
	BaseURL() string
}

// HistoryRecorder merges produced artifacts into the result history.
type HistoryRecorder interface {
	Record(ctx context.Context, entries []history.Entry) ([]history.Entry, error)
}
