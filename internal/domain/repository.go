// Package domain declares the persistence interfaces the pipeline depends
// on. Implementations live under internal/infrastructure; tests use the
// mocks in internal/testing.
package domain

import (
	"context"

	"ai-restaurant-analysis/internal/models"
)

// PipelineRepository owns the execution/job row lifecycles. All updates are
// partial: only non-nil fields of the update structs are applied.
type PipelineRepository interface {
	CreatePipelineExecution(ctx context.Context, exec models.PipelineExecution) (int64, error)
	UpdatePipelineExecution(ctx context.Context, id int64, upd models.PipelineExecutionUpdate) error
	GetPipelineExecution(ctx context.Context, id int64) (*models.PipelineExecution, error)
	ListPipelineExecutions(ctx context.Context, f models.ExecutionFilter) ([]models.PipelineExecution, error)

	CreatePipelineJobExecution(ctx context.Context, job models.PipelineJobExecution) (int64, error)
	UpdatePipelineJobExecution(ctx context.Context, id int64, upd models.PipelineJobExecutionUpdate) error
	ListJobExecutionsByAnalysis(ctx context.Context, analysisID int64) ([]models.PipelineJobExecution, error)
}

// TemplateRepository serves the result assembler's message pools.
type TemplateRepository interface {
	GetTemplatesByBasisType(ctx context.Context, basisType string) ([]models.AIMessageTemplate, error)
}

// Repository is the full persistence surface the application wires.
type Repository interface {
	PipelineRepository
	TemplateRepository
}
