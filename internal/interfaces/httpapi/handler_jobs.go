package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/usecase"
)

type createJobRequest struct {
	Type      string  `json:"type" validate:"required,oneof=new_matches update_results"`
	FromDate  string  `json:"fromDate" validate:"required"`
	ToDate    string  `json:"toDate" validate:"required"`
	LeagueIDs []int64 `json:"leagueIds" validate:"omitempty,dive,gt=0"`
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateJob")
	defer span.End()

	var req createJobRequest
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	fromDate, err := parseDateField("fromDate", req.FromDate)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	toDate, err := parseDateField("toDate", req.ToDate)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	job, err := h.jobService.Create(ctx, usecase.CreateJobInput{
		Type:      importjob.Type(req.Type),
		FromDate:  fromDate,
		ToDate:    toDate,
		LeagueIDs: req.LeagueIDs,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create job failed", "type", req.Type, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, jobToDTO(ctx, job))
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobs")
	defer span.End()

	includeHidden := parseBoolQuery(r, "include_hidden")
	limit := parseIntQuery(r, "limit")

	jobs, err := h.jobService.List(ctx, includeHidden, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "list jobs failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, jobToDTO(ctx, job))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetJob")
	defer span.End()

	id, err := jobIDFromPath(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	job, err := h.jobService.Get(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "get job failed", "job_id", id, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, jobToDTO(ctx, job))
}

func (h *Handler) ListJobFailures(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobFailures")
	defer span.End()

	id, err := jobIDFromPath(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	failures, err := h.jobService.ListFailures(ctx, id, parseIntQuery(r, "limit"))
	if err != nil {
		h.logger.WarnContext(ctx, "list job failures failed", "job_id", id, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]failureDTO, 0, len(failures))
	for _, failure := range failures {
		items = append(items, failureToDTO(failure))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PauseJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "pause", h.jobService.Pause)
}

func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ResumeJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "resume", h.jobService.Resume)
}

func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RetryJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "retry", h.jobService.Retry)
}

func (h *Handler) RestartJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RestartJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "restart", h.jobService.Restart)
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "cancel", h.jobService.Cancel)
}

func (h *Handler) HideJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.HideJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "hide", func(ctx context.Context, id int64) (*importjob.Job, error) {
		return h.jobService.SetHidden(ctx, id, true)
	})
}

func (h *Handler) UnhideJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UnhideJob")
	defer span.End()

	h.transitionJob(ctx, w, r, "unhide", func(ctx context.Context, id int64) (*importjob.Job, error) {
		return h.jobService.SetHidden(ctx, id, false)
	})
}

func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteJob")
	defer span.End()

	id, err := jobIDFromPath(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.jobService.Delete(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "delete job failed", "job_id", id, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (h *Handler) transitionJob(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	action string,
	transition func(context.Context, int64) (*importjob.Job, error),
) {
	id, err := jobIDFromPath(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	job, err := transition(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "job transition failed", "job_id", id, "action", action, "error", err)
		writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "job transition applied", "job_id", id, "action", action, "status", job.Status)
	writeSuccess(ctx, w, http.StatusOK, jobToDTO(ctx, job))
}

func parseDateField(field, value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must use YYYY-MM-DD format", usecase.ErrInvalidInput, field)
	}
	return parsed, nil
}

func parseBoolQuery(r *http.Request, key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && parsed
}

func parseIntQuery(r *http.Request, key string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return parsed
}
