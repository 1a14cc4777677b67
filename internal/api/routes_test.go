package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/batch"
	"github.com/heimdex/heimdex-clipper/internal/db"
	"github.com/heimdex/heimdex-clipper/internal/editor"
	"github.com/heimdex/heimdex-clipper/internal/history"
	"github.com/heimdex/heimdex-clipper/internal/playback"
	"github.com/heimdex/heimdex-clipper/internal/preview"
	"github.com/heimdex/heimdex-clipper/internal/render"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

const testToken = "test-token-0123456789"

type testEnv struct {
	cfg       ServerConfig
	router    http.Handler
	dir       string
	outputDir string
}

// writingCutter writes a small file for every request and reports success.
func writingCutter(outDir string) render.CutterFunc {
	return func(ctx context.Context, req render.CutRequest) (render.CutResult, error) {
		out := req.OutputHint
		if !filepath.IsAbs(out) {
			out = filepath.Join(outDir, out)
		}
		if err := os.WriteFile(out, []byte("fake video data"), 0o644); err != nil {
			return render.CutResult{}, err
		}
		return render.CutResult{Success: true, OutputPath: out}, nil
	}
}

func newTestEnv(t *testing.T, cutter func(outDir string) render.Cutter) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	previewDir := filepath.Join(dir, "previews")
	outputDir := filepath.Join(dir, "outputs")
	for _, d := range []string{previewDir, outputDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}

	database, err := db.New(filepath.Join(dir, "clipper.db"), logger)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	kv := db.NewKV(database.Conn())
	if err := kv.Set(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("kv.Set() error = %v", err)
	}

	var c render.Cutter
	if cutter != nil {
		c = cutter(outputDir)
	} else {
		c = writingCutter(outputDir)
	}

	sessions := session.NewReconciler(session.NewSQLiteStore(database.Conn()), logger)
	autosave := session.NewAutosaver(sessions, 0, logger)
	hist := history.NewRecorder(history.NewKVStore(kv), history.DefaultCap, logger)
	pv := preview.NewManager(c, previewDir, logger)
	orch := batch.New(batch.Config{Cutter: c, Autosave: autosave, History: hist, Logger: logger})
	ws := editor.New(sessions, autosave, pv, orch, logger)

	cfg := ServerConfig{
		Tokens:    kv,
		Workspace: ws,
		Batch:     orch,
		Sessions:  sessions,
		History:   hist,
		Preview:   pv,
		Playback:  playback.NewServer(logger, previewDir, outputDir),
		Logger:    logger,
		StartTime: time.Now(),
		Version:   "test",
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg), dir: dir, outputDir: outputDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) open(t *testing.T) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/workspace", map[string]any{
		"video": map[string]any{"title": "Keynote", "file_path": "/videos/keynote.mp4", "duration": 600},
		"suggestions": []map[string]any{
			{"start": 10, "end": 25, "title": "Opening"},
			{"start": "1:00", "end": "1:30", "title": "Demo", "caption": "the demo"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("open workspace status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func waitIdle(t *testing.T, o *batch.Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for o.Running() {
		if time.Now().After(deadline) {
			t.Fatal("batch did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"wrong token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestStatus_NoWorkspace(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if _, ok := body["video"]; ok {
		t.Error("video should be omitted with no workspace")
	}
	if body["remote_enabled"] != false {
		t.Errorf("remote_enabled = %v, want false", body["remote_enabled"])
	}
}

func TestClips_RequireWorkspace(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/clips", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "NO_WORKSPACE" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestOpenWorkspace_NoIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/workspace", map[string]any{"video": map[string]any{"title": "x"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestClipLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)

	rr := env.do(t, http.MethodGet, "/clips", nil)
	var list ClipsResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Clips) != 2 || list.Clips[1].Start != 60 || list.Clips[1].End != 90 {
		t.Fatalf("clips = %+v", list.Clips)
	}

	rr = env.do(t, http.MethodPost, "/clips", AddClipRequest{CurrentTime: 200})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", rr.Code, rr.Body.String())
	}
	added := decodeJSONBody(t, rr)
	if added["id"] != float64(3) || added["start"] != float64(195) || added["end"] != float64(210) {
		t.Errorf("added clip = %v", added)
	}

	rr = env.do(t, http.MethodPatch, "/clips/3", UpdateClipRequest{Field: "name", Value: "  Closing  "})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["name"] != "Closing" {
		t.Errorf("name = %v, want Closing", body["name"])
	}

	rr = env.do(t, http.MethodPatch, "/clips/3", UpdateClipRequest{Field: "end", Value: "00:01:00"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid range status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = env.do(t, http.MethodPatch, "/clips/3", UpdateClipRequest{Field: "color", Value: "red"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = env.do(t, http.MethodPost, "/clips/3/start", PlayheadRequest{Time: 198})
	if rr.Code != http.StatusOK {
		t.Fatalf("set start status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["start"] != float64(198) {
		t.Errorf("start = %v, want 198", body["start"])
	}

	rr = env.do(t, http.MethodDelete, "/clips/1", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodDelete, "/clips/1", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	rr = env.do(t, http.MethodDelete, "/clips/abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOpenWorkspace_ResumesSavedSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)

	// zero autosave delay: every edit is saved before the handler returns
	env.do(t, http.MethodPost, "/clips", AddClipRequest{CurrentTime: 300})
	env.do(t, http.MethodPost, "/clips", AddClipRequest{CurrentTime: 400})

	rr := env.do(t, http.MethodPost, "/workspace", map[string]any{
		"video":       map[string]any{"file_path": "/videos/keynote.mp4", "duration": 600},
		"suggestions": []map[string]any{{"start": 1, "end": 2, "title": "ignored"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("reopen status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["resumed"] != true {
		t.Errorf("resumed = %v, want true", body["resumed"])
	}
	if got := len(body["clips"].([]any)); got != 4 {
		t.Errorf("resumed clips = %d, want 4", got)
	}

	rr = env.do(t, http.MethodGet, "/sessions", nil)
	var sessions SessionsResponse
	if err := json.NewDecoder(rr.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions.Sessions))
	}
	if sessions.Sessions[0].ID != session.HashID("/videos/keynote.mp4") {
		t.Errorf("session id = %q", sessions.Sessions[0].ID)
	}
	if sessions.Sessions[0].Title != "Keynote" {
		t.Errorf("title = %q, want Keynote", sessions.Sessions[0].Title)
	}
}

func TestPreview_SelectAndServe(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)

	rr := env.do(t, http.MethodPost, "/clips/2/preview", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body = %s", rr.Code, rr.Body.String())
	}
	state := decodeJSONBody(t, rr)
	if state["ready"] != true || state["clip_id"] != float64(2) {
		t.Fatalf("preview state = %v", state)
	}

	rr = env.do(t, http.MethodGet, "/preview/file", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview file status = %d", rr.Code)
	}
	if rr.Body.String() != "fake video data" {
		t.Errorf("preview body = %q", rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/preview", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("deselect status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/preview/file", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("preview file after deselect = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPreview_Unavailable(t *testing.T) {
	env := newTestEnv(t, func(string) render.Cutter {
		return render.CutterFunc(func(ctx context.Context, req render.CutRequest) (render.CutResult, error) {
			return render.CutResult{Success: true, OutputPath: req.OutputHint}, nil
		})
	})
	env.open(t)

	rr := env.do(t, http.MethodPost, "/clips/1/preview", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "PREVIEW_UNAVAILABLE" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestOutputFile_OutsideRoots(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/outputs/file?path=/etc/passwd", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestBatchCut(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)

	rr := env.do(t, http.MethodPost, "/batch/cut", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["batch_id"] == "" {
		t.Error("batch_id missing")
	}
	waitIdle(t, env.cfg.Batch)

	snap := env.cfg.Batch.Snapshot()
	if snap.Summary == nil || snap.Summary.Successful != 2 || len(snap.Summary.Failed) != 0 {
		t.Fatalf("summary = %+v", snap.Summary)
	}

	rr = env.do(t, http.MethodGet, "/clips", nil)
	var list ClipsResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, c := range list.Clips {
		if c.OutputPath == nil {
			t.Errorf("clip %d has no output path", c.ID)
			continue
		}
		if _, err := os.Stat(*c.OutputPath); err != nil {
			t.Errorf("clip %d output missing: %v", c.ID, err)
		}
	}

	rr = env.do(t, http.MethodGet, "/batch", nil)
	if body := decodeJSONBody(t, rr); body["running"] != false {
		t.Errorf("running = %v", body["running"])
	}
}

func TestBatchCut_Busy(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, func(outDir string) render.Cutter {
		w := writingCutter(outDir)
		return render.CutterFunc(func(ctx context.Context, req render.CutRequest) (render.CutResult, error) {
			<-release
			return w(ctx, req)
		})
	})
	env.open(t)

	if rr := env.do(t, http.MethodPost, "/batch/cut", nil); rr.Code != http.StatusAccepted {
		t.Fatalf("first status = %d", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/batch/cut", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("second status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "BUSY" {
		t.Errorf("code = %v, want BUSY", body["code"])
	}

	close(release)
	waitIdle(t, env.cfg.Batch)
}

func TestBatchCut_NoClips(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/workspace", map[string]any{
		"video": map[string]any{"file_path": "/videos/empty.mp4"},
	})

	rr := env.do(t, http.MethodPost, "/batch/cut", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestBatchRemote_Disabled(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/batch/remote", RemoteBatchRequest{
		Jobs: []batch.Job{{Label: "a", FilePath: "/videos/a.mp4"}},
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestSessionExport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)

	rr := env.do(t, http.MethodPost, "/sessions", SaveSessionRequest{Title: "Keynote Cuts"})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d", rr.Code)
	}
	saved := decodeJSONBody(t, rr)
	id, _ := saved["id"].(string)
	if saved["title"] != "Keynote Cuts" || saved["clips_count"] != float64(2) {
		t.Fatalf("saved = %v", saved)
	}

	exportDir := t.TempDir()
	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/export", map[string]any{
		"format": "edl", "frame_rate": 25, "output_dir": exportDir,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["clip_count"] != float64(2) {
		t.Errorf("clip_count = %v", body["clip_count"])
	}
	out, _ := body["output_path"].(string)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read edl: %v", err)
	}
	if !bytes.Contains(data, []byte("TITLE: Keynote Cuts")) {
		t.Errorf("edl missing title:\n%s", data)
	}
	if !bytes.Contains(data, []byte("/videos/keynote.mp4")) {
		t.Errorf("edl missing source path:\n%s", data)
	}
}

func TestSessionExport_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	dir := t.TempDir()

	rr := env.do(t, http.MethodPost, "/sessions/session_x/export", map[string]any{"format": "xml", "output_dir": dir})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/session_x/export", map[string]any{"output_dir": "../x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/session_x/export", map[string]any{"output_dir": dir})
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)
	env.do(t, http.MethodPost, "/sessions", nil)

	id := session.HashID("/videos/keynote.mp4")
	if rr := env.do(t, http.MethodDelete, "/sessions/"+id, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/sessions/"+id, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHistory_Empty(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/history", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Body.String(); got != "{\"entries\":[]}\n" {
		t.Errorf("body = %q", got)
	}
}
