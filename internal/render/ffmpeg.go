package render

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/timecode"
)

const (
	maxStderrBytes    = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	defaultCutTimeout = 20 * time.Minute
	probeTimeout      = 10 * time.Second
)

// Config holds the cutter's configuration.
type Config struct {
	FFmpegPath string        // path to ffmpeg; empty = look up on PATH
	OutputDir  string        // where relative output hints are written
	Timeout    time.Duration // per cut
	Reencode   bool          // re-encode instead of stream copy (frame accurate)
	Logger     *slog.Logger
}

// FFmpegCutter is the production Cutter.
type FFmpegCutter struct {
	cfg    Config
	ffmpeg string
}

// NewFFmpegCutter resolves the ffmpeg binary and creates the output directory.
func NewFFmpegCutter(cfg Config) (*FFmpegCutter, error) {
	bin, err := resolveFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create output dir: %w", err)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCutTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg.Logger.Info("ffmpeg cutter initialised",
		"ffmpeg", bin,
		"output_dir", logging.SanitizePath(cfg.OutputDir),
	)
	return &FFmpegCutter{cfg: cfg, ffmpeg: bin}, nil
}

func (c *FFmpegCutter) Binary() string {
	return c.ffmpeg
}

// Cut renders [Start, End) of SourcePath into the output hint.
// A non-zero exit is reported as Success=false, not as an error.
func (c *FFmpegCutter) Cut(ctx context.Context, req CutRequest) (CutResult, error) {
	if req.SourcePath == "" {
		return CutResult{}, errors.New("source path is required")
	}
	start := timecode.Parse(req.Start)
	end := timecode.Parse(req.End)
	if end <= start {
		return CutResult{}, fmt.Errorf("invalid range %s-%s", req.Start, req.End)
	}

	outPath := c.outputPath(req.OutputHint)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return CutResult{}, fmt.Errorf("cannot create output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	began := time.Now()
	args := buildCutArgs(req.SourcePath, start, end, outPath, c.cfg.Reencode)
	cmd := exec.CommandContext(ctx, c.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	c.cfg.Logger.Info("executing cut",
		"source", logging.SanitizePath(req.SourcePath),
		"start", req.Start,
		"end", req.End,
		"output", logging.SanitizePath(outPath),
	)

	err := cmd.Run()
	elapsed := time.Since(began)
	result := CutResult{Duration: elapsed, StderrTail: stderrBuf.String()}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("cut aborted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("cannot run ffmpeg: %w", err)
		}
		c.cfg.Logger.Warn("cut failed",
			"exit_code", exitErr.ExitCode(),
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, 512),
		)
		return result, nil
	}

	info, statErr := os.Stat(outPath)
	if statErr != nil || info.Size() == 0 {
		c.cfg.Logger.Warn("cut produced no output", "output", logging.SanitizePath(outPath))
		return result, nil
	}

	result.Success = true
	result.OutputPath = outPath
	c.cfg.Logger.Info("cut succeeded",
		"duration_ms", elapsed.Milliseconds(),
		"size", humanize.Bytes(uint64(info.Size())),
		"output", logging.SanitizePath(outPath),
	)
	return result, nil
}

// Probe runs `ffmpeg -version`.
func (c *FFmpegCutter) Probe(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.ffmpeg, "-hide_banner", "-version").Output()
	caps := &Capabilities{Path: c.ffmpeg, ProbedAt: time.Now()}
	if err != nil {
		caps.Error = err.Error()
		return caps, fmt.Errorf("ffmpeg -version: %w", err)
	}
	caps.Available = true
	caps.Version = parseVersion(string(out))
	return caps, nil
}

func (c *FFmpegCutter) outputPath(hint string) string {
	if hint == "" {
		hint = fmt.Sprintf("cut_%d.mp4", time.Now().UnixNano())
	}
	if filepath.Ext(hint) == "" {
		hint += ".mp4"
	}
	if filepath.IsAbs(hint) || c.cfg.OutputDir == "" {
		return hint
	}
	return filepath.Join(c.cfg.OutputDir, hint)
}

func buildCutArgs(source string, start, end float64, outPath string, reencode bool) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", timecode.FormatPrecise(start),
		"-i", source,
		"-t", timecode.FormatPrecise(end - start),
	}
	if reencode {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-c:a", "aac")
	} else {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	}
	return append(args, "-movflags", "+faststart", outPath)
}

func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	sc := bufio.NewScanner(strings.NewReader(out))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

func resolveFFmpeg(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("no ffmpeg binary found on PATH")
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
