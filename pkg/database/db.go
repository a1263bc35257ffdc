// Package database is the MySQL access layer. It owns connection pooling,
// statement preparation and the CRUD operations for pipeline execution
// tracking and message templates. Business code talks to it through the
// interfaces in internal/domain.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/pkg/config"
	errs "ai-restaurant-analysis/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
)

type DB struct {
	conn         *sql.DB
	stmts        map[string]*sql.Stmt
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New opens a pool with default settings. Prefer NewWithConfig in main.
func New(databaseURL string) (*DB, error) {
	return open(databaseURL, 25, 10, 10*time.Minute, 8*time.Second, 6*time.Second)
}

// NewWithConfig opens a pool using the configured limits and timeouts.
func NewWithConfig(cfg *config.Config) (*DB, error) {
	return open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns,
		cfg.DBConnMaxLifetime, cfg.DBReadTimeout, cfg.DBWriteTimeout)
}

func open(url string, maxOpen, maxIdle int, lifetime, readTO, writeTO time.Duration) (*DB, error) {
	conn, err := sql.Open("mysql", url)
	if err != nil {
		return nil, errs.NewDB("database.open", "open connection", err)
	}

	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(lifetime)

	if err := conn.Ping(); err != nil {
		return nil, errs.NewDB("database.open", "ping", err)
	}

	db := &DB{
		conn:         conn,
		stmts:        make(map[string]*sql.Stmt),
		readTimeout:  readTO,
		writeTimeout: writeTO,
	}
	if err := db.prepareStatements(); err != nil {
		return nil, err
	}
	return db, nil
}

// prepareStatements prepares the hot-path inserts. Partial updates are built
// dynamically and go through conn directly.
func (db *DB) prepareStatements() error {
	statements := map[string]string{
		"insertExecution": `INSERT INTO pipeline_execution
			(pipeline_id, analysis_id, pipeline_execution_status, pipeline_execution_stage, pipeline_execution_start_time)
			VALUES (?, ?, ?, ?, ?)`,
		"insertJobExecution": `INSERT INTO pipeline_job_execution
			(pipeline_job_id, analysis_id, job_execution_status, job_execution_start_time, job_execution_request_data)
			VALUES (?, ?, ?, ?, ?)`,
	}

	for name, query := range statements {
		stmt, err := db.conn.Prepare(query)
		if err != nil {
			return errs.NewDB("database.prepareStatements", fmt.Sprintf("prepare %s", name), err)
		}
		db.stmts[name] = stmt
	}
	return nil
}

// Close releases prepared statements and the pool.
func (db *DB) Close() error {
	for _, s := range db.stmts {
		_ = s.Close()
	}
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.readTimeout)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Pipeline executions

func (db *DB) CreatePipelineExecution(ctx context.Context, exec models.PipelineExecution) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, db.writeTimeout)
	defer cancel()

	res, err := db.stmts["insertExecution"].ExecContext(ctx,
		exec.PipelineID, exec.AnalysisID, exec.Status, exec.Stage, exec.StartTime)
	if err != nil {
		return 0, errs.NewDB("database.CreatePipelineExecution", "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.NewDB("database.CreatePipelineExecution", "last insert id", err)
	}
	return id, nil
}

func (db *DB) UpdatePipelineExecution(ctx context.Context, id int64, upd models.PipelineExecutionUpdate) error {
	var sets []string
	var args []any

	if upd.Status != nil {
		sets = append(sets, "pipeline_execution_status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Stage != nil {
		sets = append(sets, "pipeline_execution_stage = ?")
		args = append(args, *upd.Stage)
	}
	if upd.EndTime != nil {
		sets = append(sets, "pipeline_execution_end_time = ?")
		args = append(args, *upd.EndTime)
	}
	if upd.Duration != nil {
		sets = append(sets, "pipeline_execution_duration = ?")
		args = append(args, *upd.Duration)
	}
	if len(sets) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, db.writeTimeout)
	defer cancel()

	query := fmt.Sprintf("UPDATE pipeline_execution SET %s WHERE pipeline_execution_id = ?", strings.Join(sets, ", "))
	args = append(args, id)
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return errs.NewDB("database.UpdatePipelineExecution", "update", err)
	}
	return nil
}

func (db *DB) GetPipelineExecution(ctx context.Context, id int64) (*models.PipelineExecution, error) {
	ctx, cancel := context.WithTimeout(ctx, db.readTimeout)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT pipeline_execution_id, pipeline_id, analysis_id,
		       pipeline_execution_status, pipeline_execution_stage,
		       pipeline_execution_start_time, pipeline_execution_end_time, pipeline_execution_duration
		  FROM pipeline_execution
		 WHERE pipeline_execution_id = ?`, id)

	var e models.PipelineExecution
	err := row.Scan(&e.ID, &e.PipelineID, &e.AnalysisID, &e.Status, &e.Stage,
		&e.StartTime, &e.EndTime, &e.Duration)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDB("database.GetPipelineExecution", "scan", err)
	}
	return &e, nil
}

func (db *DB) ListPipelineExecutions(ctx context.Context, f models.ExecutionFilter) ([]models.PipelineExecution, error) {
	var where []string
	var args []any

	if f.AnalysisID != nil {
		where = append(where, "analysis_id = ?")
		args = append(args, *f.AnalysisID)
	}
	if f.Status != nil {
		where = append(where, "pipeline_execution_status = ?")
		args = append(args, *f.Status)
	}
	if f.Stage != nil {
		where = append(where, "pipeline_execution_stage = ?")
		args = append(args, *f.Stage)
	}
	if f.OnlyActive {
		where = append(where, "pipeline_execution_end_time IS NULL")
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT pipeline_execution_id, pipeline_id, analysis_id,
	       pipeline_execution_status, pipeline_execution_stage,
	       pipeline_execution_start_time, pipeline_execution_end_time, pipeline_execution_duration
	  FROM pipeline_execution`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY pipeline_execution_start_time DESC, pipeline_execution_id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	ctx, cancel := context.WithTimeout(ctx, db.readTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB("database.ListPipelineExecutions", "query", err)
	}
	defer rows.Close()

	var out []models.PipelineExecution
	for rows.Next() {
		var e models.PipelineExecution
		if err := rows.Scan(&e.ID, &e.PipelineID, &e.AnalysisID, &e.Status, &e.Stage,
			&e.StartTime, &e.EndTime, &e.Duration); err != nil {
			return nil, errs.NewDB("database.ListPipelineExecutions", "scan", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Job executions

func (db *DB) CreatePipelineJobExecution(ctx context.Context, job models.PipelineJobExecution) (int64, error) {
	reqData, err := marshalJSONMap(job.RequestData)
	if err != nil {
		return 0, errs.NewDB("database.CreatePipelineJobExecution", "marshal request data", err)
	}

	ctx, cancel := context.WithTimeout(ctx, db.writeTimeout)
	defer cancel()

	res, err := db.stmts["insertJobExecution"].ExecContext(ctx,
		job.PipelineJobID, job.AnalysisID, job.Status, job.StartTime, reqData)
	if err != nil {
		return 0, errs.NewDB("database.CreatePipelineJobExecution", "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.NewDB("database.CreatePipelineJobExecution", "last insert id", err)
	}
	return id, nil
}

func (db *DB) UpdatePipelineJobExecution(ctx context.Context, id int64, upd models.PipelineJobExecutionUpdate) error {
	var sets []string
	var args []any

	if upd.Status != nil {
		sets = append(sets, "job_execution_status = ?")
		args = append(args, *upd.Status)
	}
	if upd.EndTime != nil {
		sets = append(sets, "job_execution_end_time = ?")
		args = append(args, *upd.EndTime)
	}
	if upd.Duration != nil {
		sets = append(sets, "job_execution_duration = ?")
		args = append(args, *upd.Duration)
	}
	if upd.ResultData != nil {
		data, err := marshalJSONMap(upd.ResultData)
		if err != nil {
			return errs.NewDB("database.UpdatePipelineJobExecution", "marshal result data", err)
		}
		sets = append(sets, "job_execution_result_data = ?")
		args = append(args, data)
	}
	if len(sets) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, db.writeTimeout)
	defer cancel()

	query := fmt.Sprintf("UPDATE pipeline_job_execution SET %s WHERE pipeline_job_execution_id = ?", strings.Join(sets, ", "))
	args = append(args, id)
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return errs.NewDB("database.UpdatePipelineJobExecution", "update", err)
	}
	return nil
}

func (db *DB) ListJobExecutionsByAnalysis(ctx context.Context, analysisID int64) ([]models.PipelineJobExecution, error) {
	ctx, cancel := context.WithTimeout(ctx, db.readTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT pipeline_job_execution_id, pipeline_job_id, analysis_id,
		       job_execution_status, job_execution_start_time, job_execution_end_time,
		       job_execution_duration, job_execution_request_data, job_execution_result_data
		  FROM pipeline_job_execution
		 WHERE analysis_id = ?
		 ORDER BY pipeline_job_execution_id ASC`, analysisID)
	if err != nil {
		return nil, errs.NewDB("database.ListJobExecutionsByAnalysis", "query", err)
	}
	defer rows.Close()

	var out []models.PipelineJobExecution
	for rows.Next() {
		var j models.PipelineJobExecution
		var reqRaw, resRaw sql.NullString
		if err := rows.Scan(&j.ID, &j.PipelineJobID, &j.AnalysisID, &j.Status,
			&j.StartTime, &j.EndTime, &j.Duration, &reqRaw, &resRaw); err != nil {
			return nil, errs.NewDB("database.ListJobExecutionsByAnalysis", "scan", err)
		}
		j.RequestData = unmarshalJSONMap(reqRaw)
		j.ResultData = unmarshalJSONMap(resRaw)
		out = append(out, j)
	}
	return out, rows.Err()
}

// Message templates

func (db *DB) GetTemplatesByBasisType(ctx context.Context, basisType string) ([]models.AIMessageTemplate, error) {
	ctx, cancel := context.WithTimeout(ctx, db.readTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT ai_message_template_id, ai_message_template_title,
		       ai_message_template_content, ai_analysis_basis_type
		  FROM ai_message_template
		 WHERE ai_analysis_basis_type = ?
		 ORDER BY ai_message_template_id ASC`, basisType)
	if err != nil {
		return nil, errs.NewDB("database.GetTemplatesByBasisType", "query", err)
	}
	defer rows.Close()

	var out []models.AIMessageTemplate
	for rows.Next() {
		var t models.AIMessageTemplate
		if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.BasisType); err != nil {
			return nil, errs.NewDB("database.GetTemplatesByBasisType", "scan", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// JSON column helpers. Null/empty columns map to nil, bad blobs degrade to
// nil rather than failing a listing.

func marshalJSONMap(m models.JSONMap) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONMap(raw sql.NullString) models.JSONMap {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m models.JSONMap
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}
