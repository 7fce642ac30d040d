package jobs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
)

// Handler serves the operator endpoints under /jobs.
type Handler struct {
	inspector *asynq.Inspector
	enqueuer  Enqueuer
	logger    *slog.Logger
}

// NewHandler constructs a Handler. Without an inspector health reports empty
// queues; without an enqueuer the POST routes answer 503.
func NewHandler(inspector *asynq.Inspector, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/warm", h.warm)
	r.Post("/invalidate", h.invalidate)
}

type queueStats struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Failed  int    `json:"failed"`
}

type healthResponse struct {
	Queues []queueStats `json:"queues"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	res := healthResponse{Queues: make([]queueStats, 0, 2)}
	for _, queue := range []string{QueueCritical, QueueDefault} {
		stats := queueStats{Queue: queue}
		if h.inspector != nil {
			info, err := h.inspector.GetQueueInfo(queue)
			switch {
			case errors.Is(err, asynq.ErrQueueNotFound):
			case err != nil:
				h.logger.Warn("jobs health", slog.String("queue", queue), slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue inspector unavailable")
				return
			default:
				stats.Pending, stats.Active, stats.Failed = info.Pending, info.Active, info.Retry+info.Archived
			}
		}
		res.Queues = append(res.Queues, stats)
	}
	httpx.JSON(w, http.StatusOK, res)
}

type warmRequest struct {
	Views []string `json:"views"`
}

type taskResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

func (h *Handler) warm(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		h.unavailable(w)
		return
	}
	var req warmRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
	}
	info, err := h.enqueuer.EnqueueViewsWarmup(r.Context(), req.Views...)
	h.accepted(w, "warmup", info, err)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		h.unavailable(w)
		return
	}
	info, err := h.enqueuer.EnqueueViewsInvalidate(r.Context())
	if errors.Is(err, asynq.ErrDuplicateTask) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.accepted(w, "invalidate", info, err)
}

func (h *Handler) accepted(w http.ResponseWriter, op string, info *asynq.TaskInfo, err error) {
	if err != nil {
		h.logger.Error("enqueue "+op, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "could not enqueue "+op)
		return
	}
	httpx.JSON(w, http.StatusAccepted, taskResponse{TaskID: info.ID, Queue: info.Queue})
}

func (h *Handler) unavailable(w http.ResponseWriter) {
	httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue not configured")
}
