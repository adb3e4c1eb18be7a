package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/handler/http/response"
	"github.com/tecolab/ssptime-go/internal/pkg/portal"
	"github.com/tecolab/ssptime-go/internal/pkg/validator"
	"go.uber.org/zap"
)

type jobStatus string

const (
	jobRunning   jobStatus = "running"
	jobCompleted jobStatus = "completed"
	jobFailed    jobStatus = "failed"
)

type fetchJob struct {
	ID         string
	Account    string
	Status     jobStatus
	Result     *attendance.FetchResult
	Err        error
	StartedAt  time.Time
	FinishedAt *time.Time
	cancel     context.CancelFunc
}

// FetchHandler exposes the fetch pipeline to a GUI shell over loopback
// HTTP. Jobs live in memory for the lifetime of the process only.
type FetchHandler struct {
	service attendance.FetchService
	log     *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*fetchJob
}

func NewFetchHandler(service attendance.FetchService, log *zap.Logger) *FetchHandler {
	return &FetchHandler{
		service: service,
		log:     log,
		jobs:    make(map[string]*fetchJob),
	}
}

type startFetchRequest struct {
	Account string `json:"account"`
	Secret  string `json:"secret"`
}

type jobResponse struct {
	ID         string                  `json:"id"`
	Status     jobStatus               `json:"status"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Result     *attendance.FetchResult `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// StartFetch launches a background fetch and returns its job id. One
// fetch at a time: a second request while one runs gets 409.
func (h *FetchHandler) StartFetch(w http.ResponseWriter, r *http.Request) {
	var body startFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "invalid request body", nil)
		return
	}

	req := attendance.FetchRequest{Account: body.Account, Secret: body.Secret}
	if err := req.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.ValidationError(w, verrs.ToMap())
			return
		}
		response.BadRequest(w, err.Error(), nil)
		return
	}

	h.mu.Lock()
	if h.hasRunningLocked() {
		h.mu.Unlock()
		response.Conflict(w, "a fetch is already in progress")
		return
	}

	// The worker must outlive this request; cancellation comes from the
	// job's own cancel, not from the request context.
	ctx, cancel := context.WithCancel(context.Background())
	job := &fetchJob{
		ID:        uuid.NewString(),
		Account:   req.Account,
		Status:    jobRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	h.jobs[job.ID] = job
	h.mu.Unlock()

	done, err := h.service.Start(ctx, req)
	if err != nil {
		h.finishJob(job.ID, nil, err)
		cancel()
		response.BadRequest(w, err.Error(), nil)
		return
	}

	go func() {
		defer cancel()
		outcome := <-done
		if outcome.Err != nil {
			h.log.Warn("fetch job failed",
				zap.String("job_id", job.ID),
				zap.Error(outcome.Err))
			h.finishJob(job.ID, nil, outcome.Err)
			return
		}
		h.finishJob(job.ID, &outcome.Result, nil)
	}()

	response.Accepted(w, "fetch started", jobResponse{
		ID:        job.ID,
		Status:    jobRunning,
		StartedAt: job.StartedAt,
	})
}

// GetFetch reports a job's status, with results and warnings once done.
func (h *FetchHandler) GetFetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.RLock()
	job, ok := h.jobs[id]
	h.mu.RUnlock()
	if !ok {
		response.NotFound(w, "fetch job not found")
		return
	}

	resp := jobResponse{
		ID:         job.ID,
		Status:     job.Status,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Result:     job.Result,
	}
	if job.Err != nil {
		resp.Error = errorCategory(job.Err)
	}
	response.Success(w, resp)
}

// CancelFetch cancels a running job. Partial results are discarded.
func (h *FetchHandler) CancelFetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.RLock()
	job, ok := h.jobs[id]
	h.mu.RUnlock()
	if !ok {
		response.NotFound(w, "fetch job not found")
		return
	}
	if job.Status != jobRunning {
		response.Conflict(w, "fetch job is not running")
		return
	}

	job.cancel()
	response.Success(w, map[string]string{"id": id, "status": "cancelling"})
}

func (h *FetchHandler) hasRunningLocked() bool {
	for _, job := range h.jobs {
		if job.Status == jobRunning {
			return true
		}
	}
	return false
}

func (h *FetchHandler) finishJob(id string, result *attendance.FetchResult, err error) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	job, ok := h.jobs[id]
	if !ok {
		return
	}
	job.FinishedAt = &now
	if err != nil {
		job.Status = jobFailed
		job.Err = err
		return
	}
	job.Status = jobCompleted
	job.Result = result
}

// errorCategory flattens the error taxonomy into the stable categories a
// presenter displays.
func errorCategory(err error) string {
	var reqErr *portal.RequestError
	switch {
	case errors.Is(err, portal.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, attendance.ErrTooManyPages):
		return "too_many_pages"
	case errors.Is(err, attendance.ErrUnexpectedPageShape):
		return "unexpected_page_shape"
	case errors.Is(err, attendance.ErrFetchInProgress):
		return "fetch_in_progress"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &reqErr):
		return string(reqErr.Kind)
	case errors.Is(err, portal.ErrUnexpectedResponse):
		return "unexpected_response"
	default:
		return "unexpected"
	}
}
