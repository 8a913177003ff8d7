package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/monitor"
	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	monitor *monitor.Service
	logger  *slog.Logger
}

func NewTaskHandler(m *monitor.Service, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{monitor: m, logger: logger}
}

var validStatuses = map[domain.JobStatus]bool{
	domain.JobQueued:   true,
	domain.JobRequeued: true,
	domain.JobStarted:  true,
	domain.JobRetry:    true,
	domain.JobSuccess:  true,
	domain.JobFailure:  true,
}

func parseJobFilter(r *http.Request) (domain.JobFilter, error) {
	q := r.URL.Query()
	f := domain.JobFilter{
		Kind:   domain.NotificationKind(q.Get("kind")),
		Status: domain.JobStatus(q.Get("status")),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return f, fmt.Errorf("unknown kind %q", f.Kind)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}

	var err error
	if f.From, err = parseTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTime(r, "to"); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, errors.New("to must not be before from")
	}
	return f, nil
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseJobFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.monitor.Filter(r.Context(), f)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to list tasks")
		return
	}

	respondJSON(w, http.StatusOK, jobs)
}

func (h *TaskHandler) Count(w http.ResponseWriter, r *http.Request) {
	f, err := parseJobFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.monitor.Count(r.Context(), f)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to count tasks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.monitor.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to get task")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func (h *TaskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	newID, err := h.monitor.Retry(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to retry task")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"job_id": newID, "retry_of": id})
}

// RetryFailed retries every failed task created between from and to.
func (h *TaskHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTime(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.monitor.RetryFailed(r.Context(), from, to)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to retry tasks")
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

func (h *TaskHandler) Purge(w http.ResponseWriter, r *http.Request) {
	cutoff, err := requireTime(r, "older_than")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.monitor.Purge(r.Context(), cutoff)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to purge tasks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
