// Package testing provides in-memory fakes for the repository and external
// clients, shared by the package tests.
package testing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ai-restaurant-analysis/internal/models"
)

// MockRepository keeps execution and job rows in memory and records every
// update applied to them.
type MockRepository struct {
	mu sync.Mutex

	Executions map[int64]*models.PipelineExecution
	Jobs       map[int64]*models.PipelineJobExecution
	Templates  map[string][]models.AIMessageTemplate

	// JobUpdates counts terminal/partial updates per job row id.
	JobUpdates map[int64]int

	CreateExecutionErr error
	UpdateExecutionErr error
	CreateJobErr       error
	// FailCreateJobForStage makes CreatePipelineJobExecution fail for one
	// pipeline job id. Zero disables it.
	FailCreateJobForStage int64

	nextExecID int64
	nextJobID  int64
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Executions: make(map[int64]*models.PipelineExecution),
		Jobs:       make(map[int64]*models.PipelineJobExecution),
		Templates:  make(map[string][]models.AIMessageTemplate),
		JobUpdates: make(map[int64]int),
	}
}

func (m *MockRepository) CreatePipelineExecution(_ context.Context, exec models.PipelineExecution) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateExecutionErr != nil {
		return 0, m.CreateExecutionErr
	}
	m.nextExecID++
	exec.ID = m.nextExecID
	m.Executions[exec.ID] = &exec
	return exec.ID, nil
}

func (m *MockRepository) UpdatePipelineExecution(_ context.Context, id int64, upd models.PipelineExecutionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateExecutionErr != nil {
		return m.UpdateExecutionErr
	}
	exec, ok := m.Executions[id]
	if !ok {
		return fmt.Errorf("execution %d not found", id)
	}
	if upd.Status != nil {
		exec.Status = *upd.Status
	}
	if upd.Stage != nil {
		exec.Stage = *upd.Stage
	}
	if upd.EndTime != nil {
		exec.EndTime = upd.EndTime
	}
	if upd.Duration != nil {
		exec.Duration = upd.Duration
	}
	return nil
}

func (m *MockRepository) GetPipelineExecution(_ context.Context, id int64) (*models.PipelineExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.Executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %d not found", id)
	}
	cp := *exec
	return &cp, nil
}

func (m *MockRepository) ListPipelineExecutions(_ context.Context, f models.ExecutionFilter) ([]models.PipelineExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PipelineExecution
	for id := int64(1); id <= m.nextExecID; id++ {
		exec, ok := m.Executions[id]
		if !ok {
			continue
		}
		if f.AnalysisID != nil && exec.AnalysisID != *f.AnalysisID {
			continue
		}
		if f.Status != nil && exec.Status != *f.Status {
			continue
		}
		if f.Stage != nil && exec.Stage != *f.Stage {
			continue
		}
		if f.OnlyActive && exec.Status != models.StatusRunning {
			continue
		}
		out = append(out, *exec)
	}
	return out, nil
}

func (m *MockRepository) CreatePipelineJobExecution(_ context.Context, job models.PipelineJobExecution) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateJobErr != nil {
		return 0, m.CreateJobErr
	}
	if m.FailCreateJobForStage != 0 && job.PipelineJobID == m.FailCreateJobForStage {
		return 0, fmt.Errorf("create job for stage %d refused", job.PipelineJobID)
	}
	m.nextJobID++
	job.ID = m.nextJobID
	m.Jobs[job.ID] = &job
	return job.ID, nil
}

func (m *MockRepository) UpdatePipelineJobExecution(_ context.Context, id int64, upd models.PipelineJobExecutionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return fmt.Errorf("job execution %d not found", id)
	}
	m.JobUpdates[id]++
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.EndTime != nil {
		job.EndTime = upd.EndTime
	}
	if upd.Duration != nil {
		job.Duration = upd.Duration
	}
	if upd.ResultData != nil {
		job.ResultData = upd.ResultData
	}
	return nil
}

func (m *MockRepository) ListJobExecutionsByAnalysis(_ context.Context, analysisID int64) ([]models.PipelineJobExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PipelineJobExecution
	for id := int64(1); id <= m.nextJobID; id++ {
		job, ok := m.Jobs[id]
		if !ok || job.AnalysisID != analysisID {
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

func (m *MockRepository) GetTemplatesByBasisType(_ context.Context, basisType string) ([]models.AIMessageTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Templates[basisType], nil
}

// JobByStage returns the first job row recorded for a pipeline job id.
func (m *MockRepository) JobByStage(stage int64) *models.PipelineJobExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := int64(1); id <= m.nextJobID; id++ {
		if job, ok := m.Jobs[id]; ok && job.PipelineJobID == stage {
			cp := *job
			return &cp
		}
	}
	return nil
}

// MockCompleter routes prompts to canned replies by substring match. Longer
// keys win over shorter ones so specific routes beat generic ones.
type MockCompleter struct {
	mu      sync.Mutex
	Replies map[string]string
	Default string
	Calls   []string
}

func (m *MockCompleter) Complete(_ context.Context, prompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, prompt)

	keys := make([]string, 0, len(m.Replies))
	for key := range m.Replies {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, key := range keys {
		if strings.Contains(prompt, key) {
			return m.Replies[key]
		}
	}
	return m.Default
}

// MockSearcher serves canned search results, keyed by keyword with a
// fallback list, and canned photo URLs per place id.
type MockSearcher struct {
	mu        sync.Mutex
	ByKeyword map[string][]models.Place
	Places    []models.Place
	Photos    map[string][]string
	SearchErr error
	PhotosErr error
	Searches  []string
}

func (m *MockSearcher) SearchNearby(_ context.Context, _, _, _ float64, keyword string, _ int) ([]models.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, keyword)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if batch, ok := m.ByKeyword[keyword]; ok {
		return append([]models.Place{}, batch...), nil
	}
	return append([]models.Place{}, m.Places...), nil
}

func (m *MockSearcher) FetchPhotos(_ context.Context, placeID string, _ int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PhotosErr != nil {
		return nil, m.PhotosErr
	}
	return m.Photos[placeID], nil
}
