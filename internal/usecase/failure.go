package usecase

import (
	"context"
	"errors"

	"github.com/betassistant/server/internal/domain/importjob"
)

// ClassifyFailure maps an error to the reason stored on the failure record.
// Database errors are classified at the call site because only the caller
// knows the operation touched storage.
func ClassifyFailure(err error) importjob.FailureReason {
	if err == nil {
		return importjob.FailureOther
	}

	var rateLimited *RateLimitError
	switch {
	case errors.As(err, &rateLimited):
		return importjob.FailureRateLimit
	case errors.Is(err, ErrInvalidInput):
		return importjob.FailureValidationError
	case errors.Is(err, ErrDependencyUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return importjob.FailureNetworkError
	default:
		return importjob.FailureOther
	}
}
