package jobs

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Enqueuer submits integrity runs.
type Enqueuer interface {
	EnqueueLedgerIntegrity(ctx context.Context, payload LedgerIntegrityPayload) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue state. *asynq.Inspector satisfies it.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	SchedulerEntries() ([]*asynq.SchedulerEntry, error)
}

// Handler exposes the job queue over HTTP.
type Handler struct {
	inspector QueueInspector
	enqueuer  Enqueuer
	logger    *slog.Logger
}

func NewHandler(inspector QueueInspector, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, enqueuer: enqueuer, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/schedule", h.schedule)
	r.Post("/ledger-integrity", h.triggerIntegrity)
}

func (h *Handler) triggerIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue not configured")
		return
	}
	var payload LedgerIntegrityPayload
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	info, err := h.enqueuer.EnqueueLedgerIntegrity(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue ledger integrity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
	Paused    bool   `json:"paused"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	health := queueHealth{Queue: QueueDefault}
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, health)
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "")
		return
	}
	if info != nil {
		health = queueHealth{
			Queue: info.Queue, Size: info.Size, Pending: info.Pending, Active: info.Active,
			Scheduled: info.Scheduled, Retry: info.Retry, Failed: info.Failed, Paused: info.Paused,
		}
	}
	httpx.JSON(w, http.StatusOK, health)
}

type scheduleEntry struct {
	ID   string     `json:"id"`
	Spec string     `json:"spec"`
	Task string     `json:"task"`
	Next time.Time  `json:"next"`
	Prev *time.Time `json:"prev,omitempty"`
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.OK(w, http.StatusOK, []scheduleEntry{})
		return
	}
	entries, err := h.inspector.SchedulerEntries()
	if err != nil {
		h.logger.Warn("jobs schedule", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "")
		return
	}
	out := make([]scheduleEntry, 0, len(entries))
	for _, e := range entries {
		entry := scheduleEntry{ID: e.ID, Spec: e.Spec, Task: e.Task.Type(), Next: e.Next}
		if !e.Prev.IsZero() {
			prev := e.Prev
			entry.Prev = &prev
		}
		out = append(out, entry)
	}
	httpx.OK(w, http.StatusOK, out)
}
