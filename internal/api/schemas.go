package api

import (
	"github.com/heimdex/heimdex-clipper/internal/batch"
	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/history"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string            `json:"state"`
	Video         *clips.VideoInfo  `json:"video,omitempty"`
	ClipsCount    int               `json:"clips_count"`
	Progress      int               `json:"progress"`
	RemoteEnabled bool              `json:"remote_enabled"`
	LastSummary   *batch.Summary    `json:"last_summary,omitempty"`
	Renderer      *RendererResponse `json:"renderer,omitempty"`
}

type RendererResponse struct {
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type OpenWorkspaceRequest struct {
	Video       clips.VideoInfo    `json:"video"`
	Suggestions []clips.Suggestion `json:"suggestions,omitempty"`
}

type AddClipRequest struct {
	CurrentTime float64 `json:"current_time"`
}

type UpdateClipRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type PlayheadRequest struct {
	Time float64 `json:"time"`
}

type ClipsResponse struct {
	Clips []clips.Clip `json:"clips"`
}

type BatchStartResponse struct {
	BatchID string `json:"batch_id"`
}

type RemoteBatchRequest struct {
	Jobs    []batch.Job   `json:"jobs"`
	Options batch.Options `json:"options"`
}

type SaveSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type SessionResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Identity   string `json:"identity"`
	ClipsCount int    `json:"clips_count"`
	SavedAt    string `json:"saved_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func SessionToResponse(s session.Session) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		Title:      s.Title,
		Identity:   s.Video.Identity(),
		ClipsCount: len(s.Clips),
		SavedAt:    s.SavedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
