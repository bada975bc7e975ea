package httpapi

import (
	"net/http"

	"github.com/betassistant/server/internal/platform/logging"
)

func NewRouter(
	handler *Handler,
	logger *logging.Logger,
	corsAllowedOrigins []string,
	adminToken string,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler)
	registerJobReadRoutes(mux, handler)
	registerJobControlRoutes(mux, handler, adminToken)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerJobReadRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/jobs", handler.ListJobs)
	mux.HandleFunc("GET /v1/jobs/{jobID}", handler.GetJob)
	mux.HandleFunc("GET /v1/jobs/{jobID}/failures", handler.ListJobFailures)
}

func registerJobControlRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("POST /v1/jobs", RequireAdminToken(adminToken, http.HandlerFunc(handler.CreateJob)))
	mux.Handle("POST /v1/jobs/{jobID}/pause", RequireAdminToken(adminToken, http.HandlerFunc(handler.PauseJob)))
	mux.Handle("POST /v1/jobs/{jobID}/resume", RequireAdminToken(adminToken, http.HandlerFunc(handler.ResumeJob)))
	mux.Handle("POST /v1/jobs/{jobID}/retry", RequireAdminToken(adminToken, http.HandlerFunc(handler.RetryJob)))
	mux.Handle("POST /v1/jobs/{jobID}/restart", RequireAdminToken(adminToken, http.HandlerFunc(handler.RestartJob)))
	mux.Handle("POST /v1/jobs/{jobID}/cancel", RequireAdminToken(adminToken, http.HandlerFunc(handler.CancelJob)))
	mux.Handle("POST /v1/jobs/{jobID}/hide", RequireAdminToken(adminToken, http.HandlerFunc(handler.HideJob)))
	mux.Handle("POST /v1/jobs/{jobID}/unhide", RequireAdminToken(adminToken, http.HandlerFunc(handler.UnhideJob)))
	mux.Handle("DELETE /v1/jobs/{jobID}", RequireAdminToken(adminToken, http.HandlerFunc(handler.DeleteJob)))
}
