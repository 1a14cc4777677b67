package api

import (
	"encoding/json"
	"net/http"

	"github.com/heimdex/heimdex-clipper/internal/batch"
)

// cutBatchHandler starts a sequential cut of every clip of the open video.
// The batch outlives the request, so it runs on the server's batch context.
func cutBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := cfg.Workspace.CutAll(cfg.batchContext())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		cfg.Logger.Info("cut batch started", "batch_id", batchID)
		WriteJSON(w, http.StatusAccepted, BatchStartResponse{BatchID: batchID})
	}
}

func remoteBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RemoteBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		batchID, err := cfg.Batch.StartProcessRemote(cfg.batchContext(), req.Jobs, req.Options)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		cfg.Logger.Info("remote batch started", "batch_id", batchID, "jobs", len(req.Jobs))
		WriteJSON(w, http.StatusAccepted, BatchStartResponse{BatchID: batchID})
	}
}

func batchSnapshotHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Batch.Snapshot()
		if snap.Results == nil {
			snap.Results = []batch.Result{}
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}
