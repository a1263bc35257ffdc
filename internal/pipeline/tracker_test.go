package pipeline

import (
	"context"
	"errors"
	"testing"

	"ai-restaurant-analysis/internal/models"
	mocks "ai-restaurant-analysis/internal/testing"
	"ai-restaurant-analysis/pkg/logging"
)

func newTracker(repo *mocks.MockRepository) *Tracker {
	return NewTracker(repo, logging.NewNop())
}

func TestExecutionLifecycle(t *testing.T) {
	repo := mocks.NewMockRepository()
	tr := newTracker(repo)
	ctx := context.Background()

	exec, err := tr.StartExecution(ctx, 7)
	if err != nil {
		t.Fatalf("StartExecution: %v", err)
	}

	row := repo.Executions[exec.ID()]
	if row.Status != models.StatusRunning || row.Stage != 0 {
		t.Errorf("new row = status %q stage %d, want RUNNING stage 0", row.Status, row.Stage)
	}

	if err := exec.AdvanceStage(ctx, StagePreprocessing); err != nil {
		t.Fatalf("AdvanceStage: %v", err)
	}
	if row.Stage != StagePreprocessing {
		t.Errorf("stage = %d after advance, want %d", row.Stage, StagePreprocessing)
	}

	var noErr error
	exec.Finish(ctx, &noErr)
	if row.Status != models.StatusSucceeded {
		t.Errorf("status = %q, want SUCCEEDED", row.Status)
	}
	if row.EndTime == nil || row.Duration == nil {
		t.Errorf("terminal update missing end time or duration: %+v", row)
	}
}

func TestExecutionFinishFailedAndIdempotent(t *testing.T) {
	repo := mocks.NewMockRepository()
	tr := newTracker(repo)
	ctx := context.Background()

	exec, err := tr.StartExecution(ctx, 7)
	if err != nil {
		t.Fatalf("StartExecution: %v", err)
	}

	failure := errors.New("stage blew up")
	exec.Finish(ctx, &failure)

	row := repo.Executions[exec.ID()]
	if row.Status != models.StatusFailed {
		t.Errorf("status = %q, want FAILED", row.Status)
	}
	firstEnd := *row.EndTime

	// A second Finish must not touch the row again.
	var noErr error
	exec.Finish(ctx, &noErr)
	if row.Status != models.StatusFailed || !row.EndTime.Equal(firstEnd) {
		t.Errorf("second Finish altered the row: %+v", row)
	}
}

func TestJobCloseRecordsResultOnce(t *testing.T) {
	repo := mocks.NewMockRepository()
	tr := newTracker(repo)
	ctx := context.Background()

	exec, _ := tr.StartExecution(ctx, 7)
	job, err := exec.StartJob(ctx, StageCollectingData, models.JSONMap{"keywords": []string{"ramen"}})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	row := repo.JobByStage(StageCollectingData)
	if row.Status != models.StatusRunning || row.PipelineJobID != StageCollectingData {
		t.Errorf("new job row: %+v", row)
	}

	job.AttachResult(ctx, models.JSONMap{"placeCount": 5})
	var noErr error
	job.Close(ctx, &noErr)

	row = repo.JobByStage(StageCollectingData)
	if row.Status != models.StatusSucceeded {
		t.Errorf("status = %q, want SUCCEEDED", row.Status)
	}
	if row.ResultData["placeCount"] != 5 {
		t.Errorf("result data = %v", row.ResultData)
	}
	if got := repo.JobUpdates[row.ID]; got != 1 {
		t.Errorf("job updated %d times, want 1", got)
	}

	// Closing again is a no-op.
	failure := errors.New("late failure")
	job.Close(ctx, &failure)
	row = repo.JobByStage(StageCollectingData)
	if row.Status != models.StatusSucceeded || repo.JobUpdates[row.ID] != 1 {
		t.Errorf("second Close altered the row: %+v", row)
	}
}

func TestJobCloseFailureRecordsErrorDescription(t *testing.T) {
	repo := mocks.NewMockRepository()
	tr := newTracker(repo)
	ctx := context.Background()

	exec, _ := tr.StartExecution(ctx, 7)
	job, _ := exec.StartJob(ctx, StageCollectingData, nil)

	// A result attached before the failure is replaced by the error
	// description: the FAILED row must explain itself.
	job.AttachResult(ctx, models.JSONMap{"placeCount": 5})
	failure := errors.New("places quota exceeded")
	job.Close(ctx, &failure)

	row := repo.JobByStage(StageCollectingData)
	if row.Status != models.StatusFailed {
		t.Fatalf("status = %q, want FAILED", row.Status)
	}
	if row.ResultData["error"] != "places quota exceeded" {
		t.Errorf("FAILED job result_data = %v, want an error description", row.ResultData)
	}
}

func TestStagePersistenceErrorIsFatal(t *testing.T) {
	repo := mocks.NewMockRepository()
	tr := newTracker(repo)
	ctx := context.Background()

	exec, err := tr.StartExecution(ctx, 7)
	if err != nil {
		t.Fatalf("StartExecution: %v", err)
	}

	repo.UpdateExecutionErr = errors.New("connection lost")
	if err := exec.AdvanceStage(ctx, StagePreprocessing); err == nil {
		t.Errorf("AdvanceStage swallowed the persistence error")
	}
	if _, err := exec.StartJob(ctx, StagePreprocessing, nil); err == nil {
		t.Errorf("StartJob swallowed the stage-advance error")
	}
	if len(repo.Jobs) != 0 {
		t.Errorf("job row created despite the failed stage advance")
	}
}

func TestJobAttachResultAfterClose(t *testing.T) {
	repo := mocks.NewMockRepository()
	tr := newTracker(repo)
	ctx := context.Background()

	exec, _ := tr.StartExecution(ctx, 7)
	job, _ := exec.StartJob(ctx, StageBuildResult, nil)

	var noErr error
	job.Close(ctx, &noErr)

	// Late result: the payload lands, the terminal status does not move.
	job.AttachResult(ctx, models.JSONMap{"late": true})

	row := repo.JobByStage(StageBuildResult)
	if row.Status != models.StatusSucceeded {
		t.Errorf("late attach changed status to %q", row.Status)
	}
	if row.ResultData["late"] != true {
		t.Errorf("late result not recorded: %v", row.ResultData)
	}
	if row.EndTime == nil {
		t.Errorf("terminal fields lost: %+v", row)
	}
}
