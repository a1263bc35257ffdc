package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-restaurant-analysis/internal/assembler"
	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/pipeline"
	"ai-restaurant-analysis/internal/preprocess"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/internal/scorer"
	"ai-restaurant-analysis/internal/selector"
	mocks "ai-restaurant-analysis/internal/testing"
	"ai-restaurant-analysis/pkg/logging"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func newTestRouter(t *testing.T, repo *mocks.MockRepository, pingErr error) http.Handler {
	return newTestRouterAI(t, repo, pingErr, &mocks.MockCompleter{
		Replies: map[string]string{
			"recommendations": `{"recommendations": []}`,
		},
		Default: "8.0",
	})
}

func newTestRouterAI(t *testing.T, repo *mocks.MockRepository, pingErr error, ai *mocks.MockCompleter) http.Handler {
	t.Helper()
	pm, err := prompts.NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	log := logging.NewNop()
	search := &mocks.MockSearcher{
		Places: []models.Place{
			{ID: "a", Name: "Alpha", Address: "addr a",
				Reviews: []models.Review{{Text: "good", Rating: 4}}},
		},
	}
	engine := pipeline.NewEngine(
		pipeline.NewTracker(repo, log),
		preprocess.New(ai, pm, log),
		search,
		scorer.NewReviewScorer(ai, pm, 10, 3, log),
		selector.New(ai, pm, 2, log),
		assembler.New(repo, search, log),
		pipeline.EngineConfig{},
		log,
	)
	return Router(engine, repo, stubPinger{err: pingErr}, ai, pm, log)
}

func analysisBody() string {
	return `{
		"groupId": "g-1",
		"analysisId": 5,
		"memberSettingList": [
			{"memberId": 1, "xPosition": 37.5, "yPosition": 127.0, "inputText": "spicy"}
		]
	}`
}

func TestAnalyzeEndpoint(t *testing.T) {
	repo := mocks.NewMockRepository()
	router := newTestRouter(t, repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(analysisBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Errorf("response missing request id header")
	}

	var resp models.AnalysisResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.GroupID != "g-1" {
		t.Errorf("groupId = %q", resp.GroupID)
	}
	if len(resp.AnalysisResult[models.ResultKeyRecommendations]) == 0 {
		t.Errorf("no recommendations in response")
	}
}

func TestAnalyzeEndpointBadBody(t *testing.T) {
	router := newTestRouter(t, mocks.NewMockRepository(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	ai := &mocks.MockCompleter{
		Replies: map[string]string{
			"usable dining wish": `{"isValid": false, "message": "please describe what you want to eat"}`,
		},
	}
	router := newTestRouterAI(t, mocks.NewMockRepository(), nil, ai)

	req := httptest.NewRequest(http.MethodPost, "/api/validate",
		strings.NewReader(`{"userInput": "asdfgh"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		IsValid bool   `json:"isValid"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IsValid || resp.Message == "" {
		t.Errorf("verdict = %+v, want invalid with a message", resp)
	}
}

func TestValidateEndpointAIUnavailable(t *testing.T) {
	ai := &mocks.MockCompleter{Default: clova.FailureSentinel}
	router := newTestRouterAI(t, mocks.NewMockRepository(), nil, ai)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/validate",
		strings.NewReader(`{"userInput": "quiet place for four"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestValidateEndpointBadBody(t *testing.T) {
	router := newTestRouter(t, mocks.NewMockRepository(), nil)

	for _, body := range []string{"{nope", `{"userInput": ""}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/validate",
			strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestListExecutionsFilters(t *testing.T) {
	repo := mocks.NewMockRepository()
	seedExecution(t, repo, 1, models.StatusSucceeded)
	seedExecution(t, repo, 2, models.StatusRunning)
	router := newTestRouter(t, repo, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline-executions?status=RUNNING", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []models.PipelineExecution
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].AnalysisID != 2 {
		t.Errorf("filtered list = %+v", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline-executions?status=BOGUS", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status: code = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline-executions?analysisId=999", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty result: code %d body %q, want 200 []", rec.Code, rec.Body.String())
	}
}

func TestJobExecutionsEndpoint(t *testing.T) {
	repo := mocks.NewMockRepository()
	_, _ = repo.CreatePipelineJobExecution(context.Background(), models.PipelineJobExecution{
		PipelineJobID: 1, AnalysisID: 5, Status: models.StatusSucceeded, StartTime: time.Now(),
	})
	router := newTestRouter(t, repo, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline-executions/5/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var jobs []models.PipelineJobExecution
	if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 || jobs[0].AnalysisID != 5 {
		t.Errorf("jobs = %+v", jobs)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline-executions/abc/jobs", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: code = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, mocks.NewMockRepository(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy: code = %d, want 200", rec.Code)
	}

	router = newTestRouter(t, mocks.NewMockRepository(), errors.New("connection refused"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded: code = %d, want 503", rec.Code)
	}
}

func seedExecution(t *testing.T, repo *mocks.MockRepository, analysisID int64, status string) {
	t.Helper()
	id, err := repo.CreatePipelineExecution(context.Background(), models.PipelineExecution{
		PipelineID: pipeline.PipelineID, AnalysisID: analysisID,
		Status: models.StatusRunning, StartTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed execution: %v", err)
	}
	if status != models.StatusRunning {
		s := status
		if err := repo.UpdatePipelineExecution(context.Background(), id, models.PipelineExecutionUpdate{Status: &s}); err != nil {
			t.Fatalf("seed status: %v", err)
		}
	}
}
