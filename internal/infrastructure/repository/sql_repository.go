// Package repository adapts pkg/database to the domain interfaces. It keeps
// business code decoupled from the SQL layer.
package repository

import (
	"context"

	"ai-restaurant-analysis/internal/domain"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/pkg/database"
)

type SQLRepository struct {
	db *database.DB
}

func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

var _ domain.Repository = (*SQLRepository)(nil)

func (r *SQLRepository) CreatePipelineExecution(ctx context.Context, exec models.PipelineExecution) (int64, error) {
	return r.db.CreatePipelineExecution(ctx, exec)
}

func (r *SQLRepository) UpdatePipelineExecution(ctx context.Context, id int64, upd models.PipelineExecutionUpdate) error {
	return r.db.UpdatePipelineExecution(ctx, id, upd)
}

func (r *SQLRepository) GetPipelineExecution(ctx context.Context, id int64) (*models.PipelineExecution, error) {
	return r.db.GetPipelineExecution(ctx, id)
}

func (r *SQLRepository) ListPipelineExecutions(ctx context.Context, f models.ExecutionFilter) ([]models.PipelineExecution, error) {
	return r.db.ListPipelineExecutions(ctx, f)
}

func (r *SQLRepository) CreatePipelineJobExecution(ctx context.Context, job models.PipelineJobExecution) (int64, error) {
	return r.db.CreatePipelineJobExecution(ctx, job)
}

func (r *SQLRepository) UpdatePipelineJobExecution(ctx context.Context, id int64, upd models.PipelineJobExecutionUpdate) error {
	return r.db.UpdatePipelineJobExecution(ctx, id, upd)
}

func (r *SQLRepository) ListJobExecutionsByAnalysis(ctx context.Context, analysisID int64) ([]models.PipelineJobExecution, error) {
	return r.db.ListJobExecutionsByAnalysis(ctx, analysisID)
}

func (r *SQLRepository) GetTemplatesByBasisType(ctx context.Context, basisType string) ([]models.AIMessageTemplate, error) {
	return r.db.GetTemplatesByBasisType(ctx, basisType)
}
