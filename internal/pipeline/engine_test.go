package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-restaurant-analysis/internal/assembler"
	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/preprocess"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/internal/scorer"
	"ai-restaurant-analysis/internal/selector"
	mocks "ai-restaurant-analysis/internal/testing"
	pkgerrors "ai-restaurant-analysis/pkg/errors"
	"ai-restaurant-analysis/pkg/logging"
)

func newTestEngine(t *testing.T, repo *mocks.MockRepository, ai clova.Completer, search *mocks.MockSearcher) *Engine {
	t.Helper()
	pm, err := prompts.NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	log := logging.NewNop()
	return NewEngine(
		NewTracker(repo, log),
		preprocess.New(ai, pm, log),
		search,
		scorer.NewReviewScorer(ai, pm, 10, 3, log),
		selector.New(ai, pm, 2, log),
		assembler.New(repo, search, log),
		EngineConfig{RadiusMeters: 500, MaxResults: 20},
		log,
	)
}

func ptr(v float64) *float64 { return &v }

func request(analysisID int64, members int) *models.AIAnalysisRequest {
	req := &models.AIAnalysisRequest{GroupID: "g-1", AnalysisID: analysisID}
	for i := 0; i < members; i++ {
		req.MemberSettingList = append(req.MemberSettingList, models.MemberSetting{
			MemberID:  int64(i + 1),
			XPosition: ptr(37.5), YPosition: ptr(127.0),
			InputText: "spicy and cheap",
		})
	}
	return req
}

func candidate(id, name, reviewText string) models.Place {
	return models.Place{
		ID: id, Name: name, Address: "addr " + id,
		Reviews: []models.Review{{Text: reviewText, Rating: 4}},
	}
}

func TestRunEndToEnd(t *testing.T) {
	repo := mocks.NewMockRepository()
	ai := &mocks.MockCompleter{
		Replies: map[string]string{
			"dining wishes":   "Wants spicy food on a budget.",
			"Alpha":           "9.0",
			"Beta":            "7.5",
			"Gamma":           "3.0",
			"recommendations": `{"recommendations": [{"placeId": "g", "score": 7, "message": "calm spot"}]}`,
		},
	}
	search := &mocks.MockSearcher{
		Places: []models.Place{
			candidate("a", "Alpha", "Great tteokbokki"),
			candidate("b", "Beta", "Solid lunch set"),
			candidate("g", "Gamma", "A bit bland"),
		},
		Photos: map[string][]string{"a": {"http://img/a1"}},
	}

	e := newTestEngine(t, repo, ai, search)
	resp, err := e.Run(context.Background(), request(10, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	details := resp.AnalysisResult[models.ResultKeyRecommendations]
	if len(details) != 3 {
		t.Fatalf("got %d recommendations, want 3 (2 ranked + 1 curated)", len(details))
	}
	if details[0].Place.PlaceName != "Alpha" || details[1].Place.PlaceName != "Beta" {
		t.Errorf("ranked order wrong: %q, %q", details[0].Place.PlaceName, details[1].Place.PlaceName)
	}
	if len(details[0].Place.PlaceImageList) != 1 {
		t.Errorf("photos not attached: %+v", details[0].Place)
	}
	if details[2].Content != "calm spot" {
		t.Errorf("curated content = %q", details[2].Content)
	}

	exec := repo.Executions[1]
	if exec.Status != models.StatusSucceeded || exec.Stage != StageBuildResult {
		t.Errorf("execution row = status %q stage %d", exec.Status, exec.Stage)
	}
	for stage := StageAnalysisRequest; stage <= StageBuildResult; stage++ {
		job := repo.JobByStage(int64(stage))
		if job == nil {
			t.Fatalf("no job row for stage %d", stage)
		}
		if job.Status != models.StatusSucceeded {
			t.Errorf("stage %d job status = %q", stage, job.Status)
		}
	}
}

func TestRunCollectFailureFailsExecution(t *testing.T) {
	repo := mocks.NewMockRepository()
	ai := &mocks.MockCompleter{Default: clova.FailureSentinel}
	search := &mocks.MockSearcher{SearchErr: errors.New("places quota exceeded")}

	e := newTestEngine(t, repo, ai, search)
	if _, err := e.Run(context.Background(), request(11, 1)); err == nil {
		t.Fatalf("want error from collect stage")
	}

	exec := repo.Executions[1]
	if exec.Status != models.StatusFailed {
		t.Errorf("execution status = %q, want FAILED", exec.Status)
	}
	if exec.Stage != StageCollectingData {
		t.Errorf("execution stage = %d, want %d", exec.Stage, StageCollectingData)
	}

	job := repo.JobByStage(StageCollectingData)
	if job == nil || job.Status != models.StatusFailed {
		t.Fatalf("collect job row = %+v, want FAILED", job)
	}
	if desc, _ := job.ResultData["error"].(string); !strings.Contains(desc, "places quota exceeded") {
		t.Errorf("FAILED job result_data = %v, want the error description", job.ResultData)
	}
	if repo.JobByStage(StageAnalysisStart) != nil || repo.JobByStage(StageBuildResult) != nil {
		t.Errorf("later stages opened job rows after a failure")
	}
}

func TestRunModelOutageStillSucceeds(t *testing.T) {
	// Every model call fails. Summaries fall back, review scores degrade to
	// defaults, curation yields nothing, and the run still succeeds.
	repo := mocks.NewMockRepository()
	ai := &mocks.MockCompleter{Default: clova.FailureSentinel}
	search := &mocks.MockSearcher{
		Places: []models.Place{
			candidate("a", "Alpha", "fine"),
			candidate("b", "Beta", "fine"),
			candidate("g", "Gamma", "fine"),
		},
	}

	e := newTestEngine(t, repo, ai, search)
	resp, err := e.Run(context.Background(), request(12, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	details := resp.AnalysisResult[models.ResultKeyRecommendations]
	if len(details) != 2 {
		t.Fatalf("got %d recommendations, want the 2 ranked picks", len(details))
	}
	for _, d := range details {
		if len(d.AnalysisBasisList) == 0 || d.AnalysisBasisList[0].StarScore != 1 {
			t.Errorf("degraded pick basis = %+v, want 1-star review entries", d.AnalysisBasisList)
		}
	}
	if repo.Executions[1].Status != models.StatusSucceeded {
		t.Errorf("execution status = %q, want SUCCEEDED", repo.Executions[1].Status)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	repo := mocks.NewMockRepository()
	e := newTestEngine(t, repo, &mocks.MockCompleter{}, &mocks.MockSearcher{})

	_, err := e.Run(context.Background(), &models.AIAnalysisRequest{GroupID: "", AnalysisID: 13})
	if !pkgerrors.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}

	exec := repo.Executions[1]
	if exec.Status != models.StatusFailed || exec.Stage != StageAnalysisRequest {
		t.Errorf("execution row = status %q stage %d", exec.Status, exec.Stage)
	}
	if job := repo.JobByStage(StageAnalysisRequest); job == nil || job.Status != models.StatusFailed {
		t.Errorf("request job row = %+v, want FAILED", job)
	}
}

func TestRunNoPlacesFound(t *testing.T) {
	repo := mocks.NewMockRepository()
	ai := &mocks.MockCompleter{Default: clova.FailureSentinel}
	search := &mocks.MockSearcher{} // empty results

	e := newTestEngine(t, repo, ai, search)
	_, err := e.Run(context.Background(), request(14, 1))
	if !pkgerrors.IsBiz(err) {
		t.Fatalf("got %v, want business error", err)
	}
	if repo.Executions[1].Status != models.StatusFailed {
		t.Errorf("execution status = %q, want FAILED", repo.Executions[1].Status)
	}
}
