package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/usecase"
)

const dateLayout = "2006-01-02"

type Handler struct {
	jobService *usecase.JobService
	logger     *logging.Logger
	validator  *validator.Validate
}

func NewHandler(jobService *usecase.JobService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		jobService: jobService,
		logger:     logger,
		validator:  validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func jobIDFromPath(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("jobID"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid job id %q", usecase.ErrInvalidInput, raw)
	}
	return id, nil
}

type jobDTO struct {
	ID                 int64    `json:"id"`
	Type               string   `json:"type"`
	Status             string   `json:"status"`
	FromDate           string   `json:"fromDate"`
	ToDate             string   `json:"toDate"`
	LeagueIDs          []int64  `json:"leagueIds,omitempty"`
	CompletedLeagues   []int64  `json:"completedLeagues"`
	CurrentLeagueID    *int64   `json:"currentLeagueId,omitempty"`
	CurrentDate        *string  `json:"currentDate,omitempty"`
	ImportedCount      int      `json:"importedCount"`
	UpdatedCount       int      `json:"updatedCount"`
	SkippedCount       int      `json:"skippedCount"`
	ErrorCount         int      `json:"errorCount"`
	RateLimitRemaining *int     `json:"rateLimitRemaining,omitempty"`
	RateLimitResetAt   *string  `json:"rateLimitResetAt,omitempty"`
	LastError          *string  `json:"lastError,omitempty"`
	Hidden             bool     `json:"hidden"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          string   `json:"updatedAt"`
	StartedAt          *string  `json:"startedAt,omitempty"`
	FinishedAt         *string  `json:"finishedAt,omitempty"`
}

type failureDTO struct {
	ID         int64  `json:"id"`
	JobID      int64  `json:"jobId"`
	FixtureID  int64  `json:"fixtureId"`
	LeagueID   int64  `json:"leagueId"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

func jobToDTO(ctx context.Context, job *importjob.Job) jobDTO {
	ctx, span := startSpan(ctx, "httpapi.jobToDTO")
	defer span.End()

	return jobDTO{
		ID:                 job.ID,
		Type:               string(job.Type),
		Status:             string(job.Status),
		FromDate:           job.FromDate.Format(dateLayout),
		ToDate:             job.ToDate.Format(dateLayout),
		LeagueIDs:          append([]int64(nil), job.LeagueIDs...),
		CompletedLeagues:   append([]int64{}, job.CompletedLeagues...),
		CurrentLeagueID:    job.CurrentLeagueID,
		CurrentDate:        formatDatePtr(job.CurrentDate),
		ImportedCount:      job.ImportedCount,
		UpdatedCount:       job.UpdatedCount,
		SkippedCount:       job.SkippedCount,
		ErrorCount:         job.ErrorCount,
		RateLimitRemaining: job.RateLimitRemaining,
		RateLimitResetAt:   formatTimePtr(job.RateLimitResetAt),
		LastError:          job.LastError,
		Hidden:             job.Hidden,
		CreatedAt:          job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.UTC().Format(time.RFC3339),
		StartedAt:          formatTimePtr(job.StartedAt),
		FinishedAt:         formatTimePtr(job.FinishedAt),
	}
}

func failureToDTO(failure *importjob.Failure) failureDTO {
	return failureDTO{
		ID:         failure.ID,
		JobID:      failure.JobID,
		FixtureID:  failure.FixtureID,
		LeagueID:   failure.LeagueID,
		Reason:     string(failure.Reason),
		Detail:     failure.Detail,
		OccurredAt: failure.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(dateLayout)
	return &formatted
}
