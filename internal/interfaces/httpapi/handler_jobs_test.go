package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/betassistant/server/internal/infrastructure/repository/memory"
	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/usecase"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	jobRepo := memory.NewImportJobRepository()
	failureRepo := memory.NewImportFailureRepository()
	leagueRepo := memory.NewLeagueRepository(memory.DefaultLeagues()...)
	jobService := usecase.NewJobService(jobRepo, failureRepo, leagueRepo, nil, logging.NewNop())

	handler := NewHandler(jobService, logging.NewNop())
	return NewRouter(handler, logging.NewNop(), []string{"*"}, "")
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	return body
}

func TestCreateJob_ReturnsPendingJob(t *testing.T) {
	router := newTestRouter(t)

	payload := `{"type":"new_matches","fromDate":"2025-08-01","toDate":"2025-08-31"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeEnvelope(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in response")
	}
	if got, _ := data["status"].(string); got != "pending" {
		t.Fatalf("expected status pending, got %v", data["status"])
	}
	if got, _ := data["type"].(string); got != "new_matches" {
		t.Fatalf("expected type new_matches, got %v", data["type"])
	}
}

func TestCreateJob_SecondJobQueues(t *testing.T) {
	router := newTestRouter(t)

	first := httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"type":"new_matches","fromDate":"2025-08-01","toDate":"2025-08-31"}`))
	firstRec := httptest.NewRecorder()
	router.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for first job, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"type":"update_results","fromDate":"2025-08-01","toDate":"2025-08-31"}`))
	secondRec := httptest.NewRecorder()
	router.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for second job, got %d", secondRec.Code)
	}

	body := decodeEnvelope(t, secondRec)
	data := body["data"].(map[string]any)
	if got, _ := data["status"].(string); got != "in_queue" {
		t.Fatalf("expected second job status in_queue, got %v", data["status"])
	}
}

func TestCreateJob_RejectsInvalidPayload(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name    string
		payload string
	}{
		{"unknown type", `{"type":"backfill","fromDate":"2025-08-01","toDate":"2025-08-31"}`},
		{"missing dates", `{"type":"new_matches"}`},
		{"malformed date", `{"type":"new_matches","fromDate":"01-08-2025","toDate":"2025-08-31"}`},
		{"unknown field", `{"type":"new_matches","fromDate":"2025-08-01","toDate":"2025-08-31","foo":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(tc.payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetJob_UnknownIDReturnsNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestPauseAndResumeJob(t *testing.T) {
	router := newTestRouter(t)

	create := httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"type":"new_matches","fromDate":"2025-08-01","toDate":"2025-08-31"}`))
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, create)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", createRec.Code)
	}

	pause := httptest.NewRequest(http.MethodPost, "/v1/jobs/1/pause", nil)
	pauseRec := httptest.NewRecorder()
	router.ServeHTTP(pauseRec, pause)
	if pauseRec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for pause, got %d: %s", pauseRec.Code, pauseRec.Body.String())
	}
	pauseBody := decodeEnvelope(t, pauseRec)
	if got, _ := pauseBody["data"].(map[string]any)["status"].(string); got != "paused" {
		t.Fatalf("expected status paused, got %v", got)
	}

	resume := httptest.NewRequest(http.MethodPost, "/v1/jobs/1/resume", nil)
	resumeRec := httptest.NewRecorder()
	router.ServeHTTP(resumeRec, resume)
	if resumeRec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for resume, got %d", resumeRec.Code)
	}
	resumeBody := decodeEnvelope(t, resumeRec)
	if got, _ := resumeBody["data"].(map[string]any)["status"].(string); got != "pending" {
		t.Fatalf("expected status pending after resume, got %v", got)
	}
}

func TestDeleteJob_NonTerminalReturnsConflict(t *testing.T) {
	router := newTestRouter(t)

	create := httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"type":"new_matches","fromDate":"2025-08-01","toDate":"2025-08-31"}`))
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, create)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", createRec.Code)
	}

	del := httptest.NewRequest(http.MethodDelete, "/v1/jobs/1", nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, del)
	if delRec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", delRec.Code, delRec.Body.String())
	}
}

func TestHideJob_ExcludedFromDefaultListing(t *testing.T) {
	router := newTestRouter(t)

	create := httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"type":"new_matches","fromDate":"2025-08-01","toDate":"2025-08-31"}`))
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, create)

	hide := httptest.NewRequest(http.MethodPost, "/v1/jobs/1/hide", nil)
	hideRec := httptest.NewRecorder()
	router.ServeHTTP(hideRec, hide)
	if hideRec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for hide, got %d", hideRec.Code)
	}

	list := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, list)
	listBody := decodeEnvelope(t, listRec)
	if items, ok := listBody["data"].([]any); ok && len(items) != 0 {
		t.Fatalf("expected hidden job to be excluded, got %d items", len(items))
	}

	listAll := httptest.NewRequest(http.MethodGet, "/v1/jobs?include_hidden=true", nil)
	listAllRec := httptest.NewRecorder()
	router.ServeHTTP(listAllRec, listAll)
	listAllBody := decodeEnvelope(t, listAllRec)
	items, ok := listAllBody["data"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one job with include_hidden=true, got %v", listAllBody["data"])
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}
