package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/render"
)

// CutAll cuts every clip of src in order and blocks until the batch is done.
// Validation errors are returned before any job runs; job failures are only
// reported in the summary.
func (o *Orchestrator) CutAll(ctx context.Context, video clips.VideoInfo, src ClipSource) (*Summary, error) {
	batchID, list, err := o.prepareCut(video, src)
	if err != nil {
		return nil, err
	}
	return o.runCut(ctx, batchID, video, src, list), nil
}

// StartCutAll validates like CutAll and then runs the batch in the
// background, returning its id.
func (o *Orchestrator) StartCutAll(ctx context.Context, video clips.VideoInfo, src ClipSource) (string, error) {
	batchID, list, err := o.prepareCut(video, src)
	if err != nil {
		return "", err
	}
	o.goBackground(func() { o.runCut(ctx, batchID, video, src, list) })
	return batchID, nil
}

func (o *Orchestrator) prepareCut(video clips.VideoInfo, src ClipSource) (string, []clips.Clip, error) {
	if video.FilePath == "" {
		return "", nil, ErrNoSource
	}
	if o.cfg.Cutter == nil {
		return "", nil, fmt.Errorf("%w: no cutter configured", ErrNoSource)
	}
	list := src.Snapshot()
	if len(list) == 0 {
		return "", nil, ErrNoClips
	}

	labels := make([]string, len(list))
	for i, c := range list {
		labels[i] = c.Name
	}
	batchID, err := o.claim(ModeCut, labels)
	if err != nil {
		return "", nil, err
	}
	return batchID, list, nil
}

func (o *Orchestrator) runCut(ctx context.Context, batchID string, video clips.VideoInfo, src ClipSource, list []clips.Clip) *Summary {
	logger := logging.WithBatchID(o.logger, batchID)
	sum := &Summary{Failed: []string{}}

	func() {
		defer func() {
			if r := recover(); r != nil {
				sum.Fatal = fmt.Sprint(r)
				logger.Error("cut batch aborted", "panic", sum.Fatal)
				o.logf("batch aborted: %s", sum.Fatal)
			}
		}()

		total := len(list)
		logger.Info("cut batch started", "clips", total, "video", logging.SanitizePath(video.FilePath))
		o.logf("cutting %d clips", total)

		for i, c := range list {
			o.update(func(s *Snapshot) {
				s.Progress = int(float64(i)/float64(total)*80) + 10
			})
			o.setItem(i, ItemRunning, "", "")
			if clips.IsDefaultName(c.Name) {
				o.logf("%s still has a placeholder name", c.Name)
				logger.Warn("cutting clip with placeholder name", "clip_id", c.ID, "name", c.Name)
			}

			out, err := o.cutOne(ctx, video, src, c)
			if err != nil {
				sum.Failed = append(sum.Failed, c.Name)
				o.setItem(i, ItemFailed, "", err.Error())
				o.logf("%s failed: %v", c.Name, err)
				logger.Warn("clip cut failed", "clip_id", c.ID, "error", err)
			} else {
				sum.Successful++
				o.setItem(i, ItemDone, out, "")
				o.logf("%s done", c.Name)
			}

			sleep(ctx, o.cfg.Waits.InterItem)
		}
	}()

	if o.cfg.Autosave != nil {
		o.cfg.Autosave.Flush(context.WithoutCancel(ctx))
	}
	o.finish(sum)
	logger.Info("cut batch finished", "successful", sum.Successful, "failed", len(sum.Failed))

	sleep(ctx, o.cfg.Waits.Display)
	o.resetProgress(batchID)
	return sum
}

// cutOne is the job boundary: every failure, including a panic in the
// cutter, comes back as an error.
func (o *Orchestrator) cutOne(ctx context.Context, video clips.VideoInfo, src ClipSource, c clips.Clip) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cut panicked: %v", r)
		}
	}()

	res, err := o.cfg.Cutter.Cut(ctx, render.CutRequest{
		SourcePath: video.FilePath,
		Start:      strconv.FormatFloat(c.Start, 'f', -1, 64),
		End:        strconv.FormatFloat(c.End, 'f', -1, 64),
		OutputHint: export.ClipFileName(c.Name, c.ID),
	})
	if err != nil {
		return "", err
	}
	if !res.Success || res.OutputPath == "" {
		return "", fmt.Errorf("cut failed: %s", lastLine(res.StderrTail))
	}

	if err := src.SetOutputPath(c.ID, res.OutputPath); err != nil {
		return "", fmt.Errorf("record output: %w", err)
	}
	if o.cfg.Autosave != nil {
		o.cfg.Autosave.Schedule(video, src.Snapshot)
	}
	return res.OutputPath, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "no output produced"
	}
	return s
}
