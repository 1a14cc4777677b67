package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-clipper/internal/history"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/remote"
)

// Result is the outcome of one remote job. URL is empty on failure.
type Result struct {
	Index        int    `json:"index"`
	Label        string `json:"label"`
	URL          string `json:"url"`
	Filename     string `json:"filename,omitempty"`
	DownloadName string `json:"download_name,omitempty"`
	LocalPath    string `json:"local_path,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Error        string `json:"error,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"` // service reported a 5xx
}

func (r Result) OK() bool {
	return r.Error == "" && r.URL != ""
}

// ProcessRemote runs jobs against the remote service in chunks of the
// configured width and blocks until every job has settled. Results are in
// job order.
func (o *Orchestrator) ProcessRemote(ctx context.Context, jobs []Job, opts Options) ([]Result, *Summary, error) {
	batchID, err := o.prepareRemote(jobs)
	if err != nil {
		return nil, nil, err
	}
	results, sum := o.runRemote(ctx, batchID, jobs, opts)
	return results, sum, nil
}

// StartProcessRemote validates like ProcessRemote and runs the batch in the
// background.
func (o *Orchestrator) StartProcessRemote(ctx context.Context, jobs []Job, opts Options) (string, error) {
	batchID, err := o.prepareRemote(jobs)
	if err != nil {
		return "", err
	}
	o.goBackground(func() { o.runRemote(ctx, batchID, jobs, opts) })
	return batchID, nil
}

func (o *Orchestrator) prepareRemote(jobs []Job) (string, error) {
	if o.cfg.Processor == nil {
		return "", ErrRemoteDisabled
	}
	if len(jobs) == 0 {
		return "", ErrNoJobs
	}
	labels := make([]string, len(jobs))
	for i, j := range jobs {
		src := j.source()
		if src.FilePath == "" && src.InputPath == "" {
			return "", fmt.Errorf("%w: job %d has no file", ErrNoSource, i)
		}
		labels[i] = jobLabel(j)
	}
	return o.claim(ModeRemote, labels)
}

func (o *Orchestrator) runRemote(ctx context.Context, batchID string, jobs []Job, opts Options) ([]Result, *Summary) {
	logger := logging.WithBatchID(o.logger, batchID)
	sum := &Summary{Failed: []string{}}
	results := make([]Result, len(jobs))
	for i, j := range jobs {
		results[i] = Result{Index: i, Label: jobLabel(j), Error: "not run"}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				sum.Fatal = fmt.Sprint(r)
				logger.Error("remote batch aborted", "panic", sum.Fatal)
				o.logf("batch aborted: %s", sum.Fatal)
			}
		}()

		indices := make([]int, len(jobs))
		for i := range indices {
			indices[i] = i
		}
		chunks := Chunk(indices, o.cfg.Width)
		logger.Info("remote batch started", "jobs", len(jobs), "chunks", len(chunks), "width", o.cfg.Width)
		o.logf("processing %d jobs in %d chunks", len(jobs), len(chunks))

		var done atomic.Int32
		total := float64(len(jobs))
		for k, chunk := range chunks {
			var g errgroup.Group
			for _, idx := range chunk {
				g.Go(func() error {
					o.setItem(idx, ItemRunning, "", "")
					res := o.processOne(ctx, idx, jobs[idx], opts)
					results[idx] = res

					n := done.Add(1)
					if res.OK() {
						o.setItem(idx, ItemDone, res.LocalPath, "")
					} else {
						o.setItem(idx, ItemFailed, "", res.Error)
						logging.WithJobID(logger, res.Label).Warn("remote job failed", "index", idx, "error", res.Error)
					}
					o.update(func(s *Snapshot) {
						s.Progress = int(float64(n)/total*80) + 10
					})
					return nil
				})
			}
			g.Wait()
			o.logf("chunk %d/%d done", k+1, len(chunks))
		}

		var entries []history.Entry
		for i := range results {
			if !results[i].OK() {
				sum.Failed = append(sum.Failed, results[i].Label)
				continue
			}
			sum.Successful++
			results[i].URL = NormalizeHost(results[i].URL, o.cfg.Processor.BaseURL())
			entries = append(entries, toEntry(results[i], opts))
		}

		if len(entries) > 0 {
			o.record(ctx, logger, entries)
		}
	}()

	o.update(func(s *Snapshot) { s.Results = append([]Result{}, results...) })
	o.finish(sum)
	logger.Info("remote batch finished", "successful", sum.Successful, "failed", len(sum.Failed))

	sleep(ctx, o.cfg.Waits.Display)
	o.resetProgress(batchID)
	return results, sum
}

// processOne is the job boundary; nothing escapes it but a Result.
func (o *Orchestrator) processOne(ctx context.Context, idx int, job Job, opts Options) (res Result) {
	res = Result{Index: idx, Label: jobLabel(job)}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Index: idx, Label: jobLabel(job), Error: fmt.Sprintf("job panicked: %v", r)}
		}
	}()

	art, err := o.cfg.Processor.Process(ctx, BuildPayload(opts, idx), job.source())
	if err != nil {
		res.Error = err.Error()
		var perr *remote.ProcessError
		if errors.As(err, &perr) {
			res.Retryable = perr.IsRetryable()
		}
		return res
	}
	if art == nil || art.URL == "" {
		res.Error = "remote service returned no artifact"
		return res
	}
	res.URL = art.URL
	res.Filename = art.Filename
	res.DownloadName = art.DownloadName
	res.LocalPath = art.LocalPath
	res.Size = art.Size
	return res
}

// record waits for the service to settle, enriches the entries from its
// file listing and merges them into history. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, entries []history.Entry) {
	sleep(ctx, o.cfg.Waits.Settle)

	if listing, err := o.cfg.Processor.ListFiles(ctx); err != nil {
		logger.Warn("existing files listing failed", "error", err)
	} else {
		files := make([]history.ListedFile, 0, len(listing.Cuts)+len(listing.Autocaption))
		for _, f := range listing.All() {
			files = append(files, history.ListedFile{Name: f.Name, Path: f.Path, Size: f.Size, CreatedAt: f.CreatedAt})
		}
		entries = history.Resolve(entries, files)
	}

	if o.cfg.History == nil {
		return
	}
	if _, err := o.cfg.History.Record(ctx, entries); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("history record failed", "error", err)
	}
}

func toEntry(r Result, opts Options) history.Entry {
	src := opts.HistorySource
	if src == "" {
		src = history.SourceUpload
	}
	path := r.LocalPath
	if path == "" {
		path = r.URL
	}
	e := history.Entry{
		OutputPath: path,
		Filename:   r.Filename,
		Title:      r.Label,
		URL:        r.URL,
		Source:     src,
	}
	if r.Size > 0 {
		size := r.Size
		e.FileSize = &size
	}
	return e
}

func jobLabel(j Job) string {
	if j.Label != "" {
		return j.Label
	}
	src := j.source()
	if src.FilePath != "" {
		return filepath.Base(src.FilePath)
	}
	return filepath.Base(src.InputPath)
}
