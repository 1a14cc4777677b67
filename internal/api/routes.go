package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/heimdex/heimdex-clipper/internal/batch"
	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/editor"
	"github.com/heimdex/heimdex-clipper/internal/preview"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/workspace", openWorkspaceHandler(cfg))

		r.Get("/clips", listClipsHandler(cfg))
		r.Post("/clips", addClipHandler(cfg))
		r.Patch("/clips/{id}", updateClipHandler(cfg))
		r.Delete("/clips/{id}", deleteClipHandler(cfg))
		r.Post("/clips/{id}/start", playheadHandler(cfg, (*editor.Workspace).SetStart))
		r.Post("/clips/{id}/end", playheadHandler(cfg, (*editor.Workspace).SetEnd))
		r.Post("/clips/{id}/preview", selectPreviewHandler(cfg))

		r.Get("/preview", previewStateHandler(cfg))
		r.Delete("/preview", deselectPreviewHandler(cfg))

		r.Post("/batch/cut", cutBatchHandler(cfg))
		r.Post("/batch/remote", remoteBatchHandler(cfg))
		r.Get("/batch", batchSnapshotHandler(cfg))

		r.Get("/sessions", listSessionsHandler(cfg))
		r.Post("/sessions", saveSessionHandler(cfg))
		r.Delete("/sessions/{id}", deleteSessionHandler(cfg))
		r.Post("/sessions/{id}/export", exportSessionHandler(cfg))

		r.Get("/history", historyHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(LoopbackGuard())
			r.Get("/preview/file", previewFileHandler(cfg))
			r.Get("/outputs/file", outputFileHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Batch.Snapshot()

		resp := StatusResponse{
			State:         "idle",
			Progress:      snap.Progress,
			RemoteEnabled: cfg.Batch.RemoteEnabled(),
			LastSummary:   snap.Summary,
		}
		if snap.Running {
			resp.State = "running"
		} else if snap.Summary != nil && snap.Summary.Fatal != "" {
			resp.State = "error"
		}

		if video, err := cfg.Workspace.Video(); err == nil {
			resp.Video = &video
			if list, err := cfg.Workspace.Clips(); err == nil {
				resp.ClipsCount = len(list)
			}
		}

		if cfg.Probe != nil {
			if caps := cfg.Probe.Peek(); caps != nil {
				resp.Renderer = &RendererResponse{
					Available: caps.Available,
					Version:   caps.Version,
					Error:     caps.Error,
				}
				if !caps.ProbedAt.IsZero() {
					resp.Renderer.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func openWorkspaceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenWorkspaceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		res, err := cfg.Workspace.Open(r.Context(), req.Video, req.Suggestions)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Workspace.Clips()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipsResponse{Clips: list})
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		c, err := cfg.Workspace.Add(req.CurrentTime)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, c)
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := clipID(w, r)
		if !ok {
			return
		}

		var req UpdateClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		c, err := cfg.Workspace.Update(r.Context(), id, clips.Field(req.Field), req.Value)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, c)
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := clipID(w, r)
		if !ok {
			return
		}
		if err := cfg.Workspace.Remove(id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type playheadFunc func(ws *editor.Workspace, ctx context.Context, id int, t float64) (clips.Clip, error)

func playheadHandler(cfg ServerConfig, set playheadFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := clipID(w, r)
		if !ok {
			return
		}

		var req PlayheadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		c, err := set(cfg.Workspace, r.Context(), id, req.Time)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, c)
	}
}

func selectPreviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := clipID(w, r)
		if !ok {
			return
		}

		state, err := cfg.Workspace.Select(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func previewStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Preview.State())
	}
}

func deselectPreviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Workspace.Deselect()
		w.WriteHeader(http.StatusNoContent)
	}
}

func previewFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := cfg.Preview.Path()
		if path == "" {
			WriteError(w, http.StatusNotFound, "no preview is ready", "NOT_FOUND")
			return
		}
		if err := cfg.Playback.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("preview playback error", "error", err)
		}
	}
}

func outputFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if err := cfg.Playback.ServeFile(w, r, path); err != nil {
			cfg.Logger.Warn("output playback error", "error", err)
		}
	}
}

func clipID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "clip id must be a positive integer", "BAD_REQUEST")
		return 0, false
	}
	return id, true
}

// writeDomainError maps package errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrNoWorkspace):
		WriteError(w, http.StatusConflict, err.Error(), "NO_WORKSPACE")
	case errors.Is(err, clips.ErrNotFound), errors.Is(err, session.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, batch.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case errors.Is(err, batch.ErrRemoteDisabled):
		WriteError(w, http.StatusServiceUnavailable, err.Error(), "REMOTE_DISABLED")
	case errors.Is(err, preview.ErrSuperseded):
		WriteError(w, http.StatusConflict, err.Error(), "SUPERSEDED")
	case errors.Is(err, preview.ErrUnavailable):
		WriteError(w, http.StatusBadGateway, err.Error(), "PREVIEW_UNAVAILABLE")
	case errors.Is(err, clips.ErrInvalidRange),
		errors.Is(err, clips.ErrUnknownField),
		errors.Is(err, session.ErrNoIdentity),
		errors.Is(err, batch.ErrNoSource),
		errors.Is(err, batch.ErrNoClips),
		errors.Is(err, batch.ErrNoJobs):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
