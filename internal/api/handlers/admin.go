package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/worker"
)

// AdminHandler handles worker lifecycle and health-check requests. A
// worker no longer owns a specific queue or priority band, so pause and
// resume act on a worker id regardless of which queues it services.
type AdminHandler struct {
	client    *redis.Client
	publisher events.Publisher
}

// NewAdminHandler creates a new admin handler over the Redis client
// backing worker heartbeat/pause keys. publisher may be nil, in which
// case pause/resume never publish worker.paused/worker.resumed events.
func NewAdminHandler(client *redis.Client, publisher events.Publisher) *AdminHandler {
	return &AdminHandler{client: client, publisher: publisher}
}

func (h *AdminHandler) publish(ctx context.Context, typ events.EventType, workerID, state string) {
	if h.publisher == nil {
		return
	}
	evt := events.NewEvent(typ, events.WorkerEventData(workerID, state, nil))
	_ = h.publisher.Publish(ctx, evt)
}

// ListWorkers handles GET /admin/workers.
func (h *AdminHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := worker.GetActiveWorkers(r.Context(), h.client)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get active workers")
		respondError(w, http.StatusInternalServerError, "failed to get workers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"workers": workers,
		"count":   len(workers),
	})
}

// GetWorker handles GET /admin/workers/{workerID}.
func (h *AdminHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		respondError(w, http.StatusBadRequest, "worker ID is required")
		return
	}

	alive, err := worker.IsWorkerAlive(r.Context(), h.client, workerID)
	if err != nil {
		logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to check worker status")
		respondError(w, http.StatusInternalServerError, "failed to get worker")
		return
	}
	if !alive {
		respondError(w, http.StatusNotFound, "worker not found or not active")
		return
	}

	workers, err := worker.GetActiveWorkers(r.Context(), h.client)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get worker details")
		return
	}
	for _, wk := range workers {
		if wk.ID == workerID {
			respondJSON(w, http.StatusOK, wk)
			return
		}
	}
	respondError(w, http.StatusNotFound, "worker not found")
}

// PauseWorker handles POST /admin/workers/{workerID}/pause.
func (h *AdminHandler) PauseWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		respondError(w, http.StatusBadRequest, "worker ID is required")
		return
	}

	alive, err := worker.IsWorkerAlive(r.Context(), h.client, workerID)
	if err != nil {
		logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to check worker status")
		respondError(w, http.StatusInternalServerError, "failed to check worker status")
		return
	}
	if !alive {
		respondError(w, http.StatusNotFound, "worker not found or not active")
		return
	}

	pauseKey := "worker:" + workerID + ":paused"
	if err := h.client.Set(r.Context(), pauseKey, "1", 0).Err(); err != nil {
		logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to pause worker")
		respondError(w, http.StatusInternalServerError, "failed to pause worker")
		return
	}
	h.publish(r.Context(), events.EventWorkerPaused, workerID, "paused")

	logger.Info().Str("worker_id", workerID).Msg("worker paused")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "worker paused",
		"worker_id": workerID,
	})
}

// ResumeWorker handles POST /admin/workers/{workerID}/resume.
func (h *AdminHandler) ResumeWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		respondError(w, http.StatusBadRequest, "worker ID is required")
		return
	}

	alive, err := worker.IsWorkerAlive(r.Context(), h.client, workerID)
	if err != nil {
		logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to check worker status")
		respondError(w, http.StatusInternalServerError, "failed to check worker status")
		return
	}
	if !alive {
		respondError(w, http.StatusNotFound, "worker not found or not active")
		return
	}

	pauseKey := "worker:" + workerID + ":paused"
	if err := h.client.Del(r.Context(), pauseKey).Err(); err != nil {
		logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to resume worker")
		respondError(w, http.StatusInternalServerError, "failed to resume worker")
		return
	}
	h.publish(r.Context(), events.EventWorkerResumed, workerID, "active")

	logger.Info().Str("worker_id", workerID).Msg("worker resumed")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "worker resumed",
		"worker_id": workerID,
	})
}

// HealthCheck handles GET /admin/health.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()).Err(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"redis":  "disconnected",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"redis":  "connected",
	})
}
