package render

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildCutArgs_StreamCopy(t *testing.T) {
	args := buildCutArgs("/in/talk.mp4", 90, 105.5, "/out/hook.mp4", false)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-ss 00:01:30.000",
		"-i /in/talk.mp4",
		"-t 00:00:15.500",
		"-c copy",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/out/hook.mp4" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
}

func TestBuildCutArgs_Reencode(t *testing.T) {
	joined := strings.Join(buildCutArgs("/in.mp4", 0, 10, "/out.mp4", true), " ")
	if !strings.Contains(joined, "-c:v libx264") || strings.Contains(joined, "-c copy") {
		t.Errorf("reencode args = %q", joined)
	}
}

func TestOutputPath(t *testing.T) {
	c := &FFmpegCutter{cfg: Config{OutputDir: "/data/out"}}

	if got := c.outputPath("hook"); got != filepath.Join("/data/out", "hook.mp4") {
		t.Errorf("outputPath(hook) = %q", got)
	}
	if got := c.outputPath("/abs/clip.mov"); got != "/abs/clip.mov" {
		t.Errorf("outputPath(abs) = %q", got)
	}
	if got := c.outputPath(""); !strings.HasPrefix(filepath.Base(got), "cut_") {
		t.Errorf("outputPath(empty) = %q", got)
	}
}

func TestCut_ValidatesRequest(t *testing.T) {
	c := &FFmpegCutter{cfg: Config{OutputDir: t.TempDir(), Timeout: time.Second}, ffmpeg: "ffmpeg"}

	if _, err := c.Cut(context.Background(), CutRequest{Start: "0", End: "10"}); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := c.Cut(context.Background(), CutRequest{SourcePath: "/in.mp4", Start: "00:10", End: "00:05"}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestParseVersion(t *testing.T) {
	out := "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc"
	if got := parseVersion(out); got != "6.1.1" {
		t.Errorf("parseVersion() = %q, want 6.1.1", got)
	}
}

func TestResolveFFmpeg_PreferredNotFound(t *testing.T) {
	if _, err := resolveFFmpeg("/nonexistent/ffmpeg999"); err == nil {
		t.Fatal("expected error for nonexistent ffmpeg")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	lw.Write([]byte(" world of test data"))

	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 5); got != "...world" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Errorf("truncate() = %q", got)
	}
}

type fakeProber struct {
	calls int
	err   error
}

func (f *fakeProber) Probe(ctx context.Context) (*Capabilities, error) {
	f.calls++
	if f.err != nil {
		return &Capabilities{Error: f.err.Error(), ProbedAt: time.Now()}, f.err
	}
	return &Capabilities{Available: true, Version: "6.1", ProbedAt: time.Now()}, nil
}

func TestCachedProbe_TTL(t *testing.T) {
	fake := &fakeProber{}
	p := NewCachedProbe(fake, nil)
	p.ttl = 50 * time.Millisecond
	ctx := context.Background()

	p.Get(ctx)
	p.Get(ctx)
	if fake.calls != 1 {
		t.Fatalf("calls = %d, want 1 (cached)", fake.calls)
	}

	time.Sleep(80 * time.Millisecond)
	p.Get(ctx)
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2 after TTL", fake.calls)
	}
}

func TestCachedProbe_StaleOnFailure(t *testing.T) {
	fake := &fakeProber{}
	p := NewCachedProbe(fake, nil)
	ctx := context.Background()

	if _, err := p.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	fake.err = errors.New("boom")
	caps, err := p.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() with stale cache error = %v", err)
	}
	if !caps.Available {
		t.Error("expected stale capabilities")
	}

	p.Invalidate()
	if _, err := p.Refresh(ctx); err == nil {
		t.Error("expected error without cache")
	}
}
