// Package queue exposes operator endpoints over the asynq queues that carry
// sale recording tasks.
package queue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/common"
)

// Inspector is the subset of *asynq.Inspector used by AdminHandler.
type Inspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

// AdminHandler lists queue depth and replays archived (dead-lettered) tasks.
type AdminHandler struct {
	Inspector Inspector
	PageSize  int
	Logger    zerolog.Logger
}

type queueStats struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Paused    bool   `json:"paused"`
	LatencyMS int64  `json:"latencyMs"`
}

type archivedTask struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Retried      int        `json:"retried"`
	MaxRetry     int        `json:"maxRetry"`
	LastError    string     `json:"lastError,omitempty"`
	LastFailedAt *time.Time `json:"lastFailedAt,omitempty"`
	Payload      string     `json:"payload"`
}

// Routes mounts the admin endpoints on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/", h.ListQueues)
	r.Get("/{queue}/archived", h.ListArchived)
	r.Post("/{queue}/archived/{taskID}/run", h.Replay)
}

// ListQueues reports size and throughput for every known queue.
func (h *AdminHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	names, err := h.Inspector.Queues()
	if err != nil {
		common.WriteError(w, common.Internal(err))
		return
	}
	out := make([]queueStats, 0, len(names))
	for _, name := range names {
		info, err := h.Inspector.GetQueueInfo(name)
		if err != nil {
			h.Logger.Warn().Err(err).Str("queue", name).Msg("queue_info_failed")
			continue
		}
		out = append(out, queueStats{
			Queue:     info.Queue,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
			Paused:    info.Paused,
			LatencyMS: info.Latency.Milliseconds(),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// ListArchived pages through tasks that exhausted their retries.
func (h *AdminHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	size, page := parsePagination(r, h.pageSize())
	tasks, err := h.Inspector.ListArchivedTasks(queue, asynq.PageSize(size), asynq.Page(page))
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	items := make([]archivedTask, 0, len(tasks))
	for _, t := range tasks {
		item := archivedTask{
			ID:        t.ID,
			Type:      t.Type,
			Retried:   t.Retried,
			MaxRetry:  t.MaxRetry,
			LastError: t.LastErr,
			Payload:   string(t.Payload),
		}
		if !t.LastFailedAt.IsZero() {
			failed := t.LastFailedAt.UTC()
			item.LastFailedAt = &failed
		}
		items = append(items, item)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "page": page, "pageSize": size})
}

// Replay moves an archived task back to pending. Sale tasks are keyed by
// receipt id and the ledger ignores repeats, so replaying is safe.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "taskID")
	if err := h.Inspector.RunTask(queue, id); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	h.Logger.Info().Str("queue", queue).Str("task_id", id).Msg("archived_task_replayed")
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"id": id, "queue": queue}})
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

func mapError(err error) error {
	switch {
	case errors.Is(err, asynq.ErrQueueNotFound):
		return common.NotFound("QUEUE_NOT_FOUND", "queue not found", err)
	case errors.Is(err, asynq.ErrTaskNotFound):
		return common.NotFound("TASK_NOT_FOUND", "task not found", err)
	default:
		return common.Internal(err)
	}
}

// parsePagination reads limit and page (1-based) query parameters.
func parsePagination(r *http.Request, defaultLimit int) (limit, page int) {
	limit, page = defaultLimit, 1
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return limit, page
}
