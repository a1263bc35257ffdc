// Package pipeline runs the five-stage restaurant analysis and records
// every run and stage in the pipeline execution tables.
package pipeline

import (
	"context"
	"sync"
	"time"

	"ai-restaurant-analysis/internal/domain"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/pkg/logging"
	"ai-restaurant-analysis/pkg/metrics"
)

// Tracker opens execution and job scopes backed by repository rows. Scopes
// guarantee each row gets exactly one terminal update.
type Tracker struct {
	repo    domain.PipelineRepository
	log     *logging.ComponentLogger
	metrics *metrics.Registry
}

func NewTracker(repo domain.PipelineRepository, log *logging.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		log:     log.WithComponent("tracker"),
		metrics: metrics.Default,
	}
}

// ExecutionScope tracks one RUNNING pipeline execution row.
type ExecutionScope struct {
	t          *Tracker
	id         int64
	analysisID int64
	start      time.Time

	mu   sync.Mutex
	done bool
}

// StartExecution inserts a RUNNING execution row at stage 0.
func (t *Tracker) StartExecution(ctx context.Context, analysisID int64) (*ExecutionScope, error) {
	now := time.Now()
	id, err := t.repo.CreatePipelineExecution(ctx, models.PipelineExecution{
		PipelineID: PipelineID,
		AnalysisID: analysisID,
		Status:     models.StatusRunning,
		Stage:      0,
		StartTime:  now,
	})
	if err != nil {
		return nil, err
	}
	t.metrics.Counter("pipeline_executions_started_total", "Pipeline executions opened").Inc()
	t.log.Info("execution started",
		logging.AnalysisID(analysisID), logging.Int64("executionId", id))
	return &ExecutionScope{t: t, id: id, analysisID: analysisID, start: now}, nil
}

// ID returns the execution row id.
func (s *ExecutionScope) ID() int64 { return s.id }

// AdvanceStage moves the execution's stage marker forward. A persistence
// error here is fatal to the run: an execution row that lies about its
// stage is worse than a failed one.
func (s *ExecutionScope) AdvanceStage(ctx context.Context, stage int) error {
	if err := s.t.repo.UpdatePipelineExecution(ctx, s.id, models.PipelineExecutionUpdate{
		Stage: &stage,
	}); err != nil {
		s.t.log.Error("record stage advance",
			logging.AnalysisID(s.analysisID), logging.Int("stage", stage), logging.Err(err))
		return err
	}
	return nil
}

// Finish applies the execution's single terminal update. Designed for
// defer: pass a pointer to the function's named error.
func (s *ExecutionScope) Finish(ctx context.Context, runErr *error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	status := models.StatusSucceeded
	if runErr != nil && *runErr != nil {
		status = models.StatusFailed
	}
	end := time.Now()
	duration := int64(end.Sub(s.start).Seconds())

	if err := s.t.repo.UpdatePipelineExecution(ctx, s.id, models.PipelineExecutionUpdate{
		Status:   &status,
		EndTime:  &end,
		Duration: &duration,
	}); err != nil {
		s.t.log.Error("record execution finish",
			logging.AnalysisID(s.analysisID), logging.Err(err))
	}

	s.t.metrics.Counter("pipeline_executions_finished_total", "Pipeline executions finished").Inc()
	if status == models.StatusFailed {
		s.t.metrics.Counter("pipeline_executions_failed_total", "Pipeline executions that failed").Inc()
	}
	s.t.metrics.Histogram("pipeline_execution_seconds", "End-to-end execution wall time", nil).
		Observe(end.Sub(s.start).Seconds())
	s.t.log.Info("execution finished",
		logging.AnalysisID(s.analysisID),
		logging.String("status", status),
		logging.Duration("elapsed", end.Sub(s.start)))
}

// JobScope tracks one RUNNING job execution row within a stage.
type JobScope struct {
	t          *Tracker
	id         int64
	analysisID int64
	stage      int
	start      time.Time

	mu     sync.Mutex
	done   bool
	result models.JSONMap
}

// StartJob advances the execution to the stage and inserts that stage's
// RUNNING job row.
func (s *ExecutionScope) StartJob(ctx context.Context, stage int, requestData models.JSONMap) (*JobScope, error) {
	if err := s.AdvanceStage(ctx, stage); err != nil {
		return nil, err
	}

	now := time.Now()
	id, err := s.t.repo.CreatePipelineJobExecution(ctx, models.PipelineJobExecution{
		PipelineJobID: int64(stage),
		AnalysisID:    s.analysisID,
		Status:        models.StatusRunning,
		StartTime:     now,
		RequestData:   requestData,
	})
	if err != nil {
		return nil, err
	}
	s.t.log.Info("job started",
		logging.AnalysisID(s.analysisID),
		logging.String("job", JobName(stage)),
		logging.Int64("jobExecutionId", id))
	return &JobScope{t: s.t, id: id, analysisID: s.analysisID, stage: stage, start: now}, nil
}

// AttachResult records the job's result payload. Before the terminal update
// it is held and written together with the status; after it, only the
// result column is rewritten and the status row stays as it is.
func (j *JobScope) AttachResult(ctx context.Context, result models.JSONMap) {
	j.mu.Lock()
	closed := j.done
	if !closed {
		j.result = result
	}
	j.mu.Unlock()

	if !closed {
		return
	}
	j.t.log.Warn("result attached after job close, updating result only",
		logging.AnalysisID(j.analysisID), logging.String("job", JobName(j.stage)))
	if err := j.t.repo.UpdatePipelineJobExecution(ctx, j.id, models.PipelineJobExecutionUpdate{
		ResultData: result,
	}); err != nil {
		j.t.log.Error("record late job result",
			logging.AnalysisID(j.analysisID), logging.Err(err))
	}
}

// Close applies the job's single terminal update. Designed for defer with a
// pointer to the enclosing function's named error.
func (j *JobScope) Close(ctx context.Context, runErr *error) {
	j.mu.Lock()
	if j.done {
		j.mu.Unlock()
		return
	}
	j.done = true
	result := j.result
	j.mu.Unlock()

	status := models.StatusSucceeded
	if runErr != nil && *runErr != nil {
		status = models.StatusFailed
		// A FAILED row explains itself; the error description is the
		// result payload.
		result = models.JSONMap{"error": (*runErr).Error()}
	}
	end := time.Now()
	duration := int64(end.Sub(j.start).Seconds())

	if err := j.t.repo.UpdatePipelineJobExecution(ctx, j.id, models.PipelineJobExecutionUpdate{
		Status:     &status,
		EndTime:    &end,
		Duration:   &duration,
		ResultData: result,
	}); err != nil {
		j.t.log.Error("record job finish",
			logging.AnalysisID(j.analysisID), logging.String("job", JobName(j.stage)), logging.Err(err))
	}

	j.t.metrics.Histogram("pipeline_job_seconds", "Per-stage job wall time", nil).
		Observe(end.Sub(j.start).Seconds())
	j.t.log.Info("job finished",
		logging.AnalysisID(j.analysisID),
		logging.String("job", JobName(j.stage)),
		logging.String("status", status))
}
