package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/db"
)

func newSQLiteReconciler(t *testing.T) (*Reconciler, *SQLiteStore) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := NewSQLiteStore(database.Conn())
	return NewReconciler(store, nil), store
}

func sampleClips(names ...string) []clips.Clip {
	out := make([]clips.Clip, len(names))
	for i, n := range names {
		out[i] = clips.Clip{ID: i + 1, Start: float64(i * 10), End: float64(i*10 + 5), Name: n, Score: 5}
	}
	return out
}

func TestHashID(t *testing.T) {
	if got := HashID("abc"); got != "session_22ci" {
		t.Errorf("HashID(abc) = %q, want session_22ci", got)
	}
	if HashID("/videos/talk.mp4") != HashID("/videos/talk.mp4") {
		t.Error("HashID is not deterministic")
	}
	if HashID("/videos/a.mp4") == HashID("/videos/b.mp4") {
		t.Error("expected different ids for different paths")
	}
}

func TestUpsertSession_RepeatedSavesKeepOneRecord(t *testing.T) {
	r, store := newSQLiteReconciler(t)
	ctx := context.Background()
	video := clips.VideoInfo{Title: "Talk", FilePath: "/videos/talk.mp4"}

	var last []clips.Clip
	for i := 0; i < 5; i++ {
		last = sampleClips("a", "b", "c")[:i%3+1]
		if _, err := r.UpsertSession(ctx, video, last, ""); err != nil {
			t.Fatalf("UpsertSession() #%d error = %v", i, err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("sessions = %d, want 1", len(all))
	}
	if len(all[0].Clips) != len(last) {
		t.Errorf("clips = %d, want %d (last save)", len(all[0].Clips), len(last))
	}
	if all[0].ID != HashID(video.FilePath) {
		t.Errorf("id = %q, want hash of path", all[0].ID)
	}
}

func TestUpsertSession_ReusesExistingID(t *testing.T) {
	r, store := newSQLiteReconciler(t)
	ctx := context.Background()
	video := clips.VideoInfo{URL: "https://example.com/watch?v=1"}

	if err := store.Put(ctx, Session{ID: "legacy-id", Title: "Named", Video: video, SavedAt: time.Now()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	sess, err := r.UpsertSession(ctx, video, sampleClips("x"), "")
	if err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}
	if sess.ID != "legacy-id" {
		t.Errorf("ID = %q, want legacy-id", sess.ID)
	}
	if sess.Title != "Named" {
		t.Errorf("Title = %q, want stored title kept", sess.Title)
	}
}

func TestUpsertSession_NoIdentity(t *testing.T) {
	r, _ := newSQLiteReconciler(t)
	_, err := r.UpsertSession(context.Background(), clips.VideoInfo{Title: "x"}, nil, "")
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestResumeSession(t *testing.T) {
	r, _ := newSQLiteReconciler(t)
	ctx := context.Background()
	video := clips.VideoInfo{FilePath: "/videos/talk.mp4", Duration: 100}

	if _, err := r.ResumeSession(ctx, video); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResumeSession() before save err = %v, want ErrNotFound", err)
	}

	out := "/out/a.mp4"
	saved := sampleClips("intro", "hook")
	saved[0].OutputPath = &out
	if _, err := r.UpsertSession(ctx, video, saved, "My talk"); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}

	sess, err := r.ResumeSession(ctx, video)
	if err != nil {
		t.Fatalf("ResumeSession() error = %v", err)
	}
	if len(sess.Clips) != 2 || sess.Clips[1].Name != "hook" {
		t.Errorf("clips = %+v", sess.Clips)
	}
	if sess.Clips[0].OutputPath == nil || *sess.Clips[0].OutputPath != out {
		t.Error("output path not persisted")
	}
	if sess.Clips[1].OutputPath != nil {
		t.Error("unproduced clip should have nil output path")
	}
	if sess.Title != "My talk" || sess.Video.Duration != 100 {
		t.Errorf("session = %+v", sess)
	}
}

func TestReconciler_GetDelete(t *testing.T) {
	r, _ := newSQLiteReconciler(t)
	ctx := context.Background()
	sess, _ := r.UpsertSession(ctx, clips.VideoInfo{FilePath: "/v.mp4"}, sampleClips("a"), "")

	got, err := r.Get(ctx, sess.ID)
	if err != nil || got.ID != sess.ID {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if err := r.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := r.Delete(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() err = %v, want ErrNotFound", err)
	}
	if _, err := r.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete err = %v", err)
	}
}

type fakeSaver struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  []clips.Clip
	saved map[string]int
}

func (f *fakeSaver) UpsertSession(ctx context.Context, video clips.VideoInfo, list []clips.Clip, title string) (Session, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = list
	if f.saved == nil {
		f.saved = make(map[string]int)
	}
	f.saved[video.Identity()] = len(list)
	f.mu.Unlock()
	return Session{}, nil
}

func TestAutosaver_CoalescesBursts(t *testing.T) {
	saver := &fakeSaver{}
	a := NewAutosaver(saver, time.Hour, nil)
	video := clips.VideoInfo{FilePath: "/v.mp4"}

	for i := 1; i <= 5; i++ {
		list := sampleClips("a", "b", "c", "d", "e")[:i]
		a.Schedule(video, func() []clips.Clip { return list })
	}
	if got := a.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	a.Flush(context.Background())

	if got := saver.calls.Load(); got != 1 {
		t.Errorf("saves = %d, want 1", got)
	}
	if len(saver.last) != 5 {
		t.Errorf("saved %d clips, want latest snapshot of 5", len(saver.last))
	}
	a.Flush(context.Background())
	if got := saver.calls.Load(); got != 1 {
		t.Errorf("second Flush saved again: %d", got)
	}
}

func TestAutosaver_KeepsPendingSavePerVideo(t *testing.T) {
	saver := &fakeSaver{}
	a := NewAutosaver(saver, time.Hour, nil)

	a.Schedule(clips.VideoInfo{FilePath: "/a.mp4"}, func() []clips.Clip { return sampleClips("a", "b", "c") })
	a.Schedule(clips.VideoInfo{FilePath: "/b.mp4"}, func() []clips.Clip { return sampleClips("x") })
	if got := a.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
	a.Flush(context.Background())

	want := map[string]int{"/a.mp4": 3, "/b.mp4": 1}
	if len(saver.saved) != len(want) {
		t.Fatalf("saved = %v, want %v", saver.saved, want)
	}
	for video, n := range want {
		if saver.saved[video] != n {
			t.Errorf("saved[%s] = %d clips, want %d", video, saver.saved[video], n)
		}
	}
	if got := a.Pending(); got != 0 {
		t.Errorf("Pending() after Flush = %d, want 0", got)
	}
}

func TestAutosaver_TimerFires(t *testing.T) {
	saver := &fakeSaver{}
	a := NewAutosaver(saver, 10*time.Millisecond, nil)
	a.Schedule(clips.VideoInfo{FilePath: "/v.mp4"}, func() []clips.Clip { return nil })

	deadline := time.Now().Add(2 * time.Second)
	for saver.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := saver.calls.Load(); got != 1 {
		t.Errorf("saves = %d, want 1", got)
	}
}

func TestAutosaver_StopDropsPending(t *testing.T) {
	saver := &fakeSaver{}
	a := NewAutosaver(saver, time.Hour, nil)
	a.Schedule(clips.VideoInfo{FilePath: "/v.mp4"}, func() []clips.Clip { return nil })
	a.Stop()
	a.Flush(context.Background())
	if got := saver.calls.Load(); got != 0 {
		t.Errorf("saves = %d, want 0", got)
	}
}

func TestAutosaver_ZeroDelaySavesImmediately(t *testing.T) {
	saver := &fakeSaver{}
	a := NewAutosaver(saver, 0, nil)
	a.Schedule(clips.VideoInfo{FilePath: "/v.mp4"}, func() []clips.Clip { return nil })
	if got := saver.calls.Load(); got != 1 {
		t.Errorf("saves = %d, want 1", got)
	}
}
