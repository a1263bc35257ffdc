package models

import "time"

// Execution and job statuses. A row is created RUNNING and receives exactly
// one terminal update to SUCCEEDED or FAILED.
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// PipelineExecution is one row per end-to-end analysis run.
type PipelineExecution struct {
	ID         int64      `json:"pipelineExecutionId"`
	PipelineID int64      `json:"pipelineId"`
	AnalysisID int64      `json:"analysisId"`
	Status     string     `json:"status"`
	Stage      int        `json:"stage"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	Duration   *int64     `json:"duration"` // seconds, set once on the terminal update
}

// PipelineExecutionUpdate carries a partial update; nil fields are left
// untouched by the persistence layer.
type PipelineExecutionUpdate struct {
	Status   *string
	Stage    *int
	EndTime  *time.Time
	Duration *int64
}

// JSONMap is the opaque request/result payload stored in JSON columns.
type JSONMap map[string]any

// PipelineJobExecution is one row per stage-scoped unit of work.
type PipelineJobExecution struct {
	ID            int64      `json:"pipelineJobExecutionId"`
	PipelineJobID int64      `json:"pipelineJobId"`
	AnalysisID    int64      `json:"analysisId"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	Duration      *int64     `json:"duration"`
	RequestData   JSONMap    `json:"requestData"`
	ResultData    JSONMap    `json:"resultData"`
}

// PipelineJobExecutionUpdate is the partial-update form for job rows.
type PipelineJobExecutionUpdate struct {
	Status     *string
	EndTime    *time.Time
	Duration   *int64
	ResultData JSONMap
}

// ExecutionFilter narrows pipeline execution listings.
type ExecutionFilter struct {
	AnalysisID *int64
	Status     *string
	Stage      *int
	OnlyActive bool
	Limit      int
	Offset     int
}
