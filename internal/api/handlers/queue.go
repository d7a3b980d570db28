package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/queue"
)

// QueueHandler handles the queue-scoped HTTP surface: enqueue,
// introspection reads, and reschedule, per spec.md §4 and §6.
type QueueHandler struct {
	client       *queue.Client
	maxQueueSize int64
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(client *queue.Client, maxQueueSize int64) *QueueHandler {
	return &QueueHandler{client: client, maxQueueSize: maxQueueSize}
}

func (h *QueueHandler) queueFromPath(r *http.Request) (*queue.Queue, string, error) {
	name := chi.URLParam(r, "queue")
	q, err := h.client.Queue(r.Context(), name)
	return q, name, err
}

// EnqueueRequest is the body of POST /api/v1/queues/{queue}/tasks: the
// positional argument list spec.md §6's encoding table names `args`.
type EnqueueRequest struct {
	Args []interface{} `json:"args"`
}

// Enqueue handles POST /api/v1/queues/{queue}/tasks.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Args) == 0 {
		respondError(w, http.StatusBadRequest, "args must be a non-empty array")
		return
	}

	if h.maxQueueSize > 0 {
		if stats, err := q.Statistics(r.Context()); err == nil {
			if stats.Total-stats.Finished >= h.maxQueueSize {
				respondError(w, http.StatusServiceUnavailable, "queue at capacity")
				return
			}
		}
	}

	if err := q.Enqueue(r.Context(), req.Args, nil); err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to enqueue task")
		respondError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{"status": "enqueued"})
}

// Statistics handles GET /api/v1/queues/{queue}/statistics.
func (h *QueueHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := q.Statistics(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to read statistics")
		respondError(w, http.StatusInternalServerError, "failed to read statistics")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Failed handles GET /api/v1/queues/{queue}/failed.
func (h *QueueHandler) Failed(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := q.FailedTasks(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to list failed tasks")
		respondError(w, http.StatusInternalServerError, "failed to list failed tasks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Blocked handles GET /api/v1/queues/{queue}/blocked.
func (h *QueueHandler) Blocked(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	groups, err := q.BlockedGroups(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to list blocked groups")
		respondError(w, http.StatusInternalServerError, "failed to list blocked groups")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// Recent handles GET /api/v1/queues/{queue}/recent.
func (h *QueueHandler) Recent(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := q.RecentlyFinishedTasks(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to list recent tasks")
		respondError(w, http.StatusInternalServerError, "failed to list recent tasks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Slowest handles GET /api/v1/queues/{queue}/slowest.
func (h *QueueHandler) Slowest(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := q.SlowestTasks(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to list slowest tasks")
		respondError(w, http.StatusInternalServerError, "failed to list slowest tasks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Processing handles GET /api/v1/queues/{queue}/processing.
func (h *QueueHandler) Processing(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := q.ProcessingTasks(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to list processing tasks")
		respondError(w, http.StatusInternalServerError, "failed to list processing tasks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Reschedule handles POST /api/v1/queues/{queue}/reschedule.
func (h *QueueHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	q, name, err := h.queueFromPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	moved, err := q.Reschedule(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("queue", name).Msg("failed to reschedule")
		respondError(w, http.StatusInternalServerError, "failed to reschedule")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"moved": moved})
}

// ListQueues handles GET /api/v1/queues.
func (h *QueueHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	names, err := h.client.Queues(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to list queues")
		respondError(w, http.StatusInternalServerError, "failed to list queues")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"queues": names})
}
