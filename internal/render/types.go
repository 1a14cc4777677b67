// Package render cuts time ranges out of a source video with an ffmpeg
// subprocess. Both previews and batch cuts go through it.
package render

import (
	"context"
	"time"
)

// CutRequest is one render invocation. Start and End are timestamps in
// any form timecode.Parse accepts.
type CutRequest struct {
	SourcePath string `json:"source_path"`
	Start      string `json:"start"`
	End        string `json:"end"`
	// OutputHint is a file name (or full path) for the artifact. Relative
	// hints are placed in the cutter's output directory.
	OutputHint string `json:"output_hint"`
}

// CutResult is the outcome of a render.
type CutResult struct {
	Success    bool          `json:"success"`
	OutputPath string        `json:"output_path,omitempty"`
	Duration   time.Duration `json:"duration"`
	StderrTail string        `json:"stderr_tail,omitempty"`
}

// Cutter is the render/cut collaborator. Implementations may take minutes;
// callers invoke it once per job.
type Cutter interface {
	Cut(ctx context.Context, req CutRequest) (CutResult, error)
}

// CutterFunc adapts a function to Cutter.
type CutterFunc func(ctx context.Context, req CutRequest) (CutResult, error)

func (f CutterFunc) Cut(ctx context.Context, req CutRequest) (CutResult, error) {
	return f(ctx, req)
}

// Capabilities is what the installed ffmpeg reported.
type Capabilities struct {
	Available bool      `json:"available"`
	Version   string    `json:"version,omitempty"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}
