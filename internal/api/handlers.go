// Package api exposes the HTTP surface: the analysis endpoint and the
// pipeline execution query endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/domain"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/pipeline"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/pkg/errors"
	"ai-restaurant-analysis/pkg/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsBiz(err):
		status = http.StatusUnprocessableEntity
	case errors.IsExternal(err):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// AnalyzeHandler runs the full pipeline for one analysis request.
func AnalyzeHandler(engine *pipeline.Engine, log *logging.Logger) http.HandlerFunc {
	l := log.WithComponent("api")
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AIAnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.NewValidation("api.Analyze", "malformed request body", err))
			return
		}

		resp, err := engine.Run(r.Context(), &req)
		if err != nil {
			l.Error("analysis failed",
				logging.AnalysisID(req.AnalysisID), logging.Err(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ListExecutionsHandler queries pipeline execution rows with optional
// analysisId, status, stage, active, limit and offset parameters.
func ListExecutionsHandler(repo domain.PipelineRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			writeError(w, err)
			return
		}

		executions, err := repo.ListPipelineExecutions(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		if executions == nil {
			executions = []models.PipelineExecution{}
		}
		writeJSON(w, http.StatusOK, executions)
	}
}

func parseFilter(r *http.Request) (models.ExecutionFilter, error) {
	var f models.ExecutionFilter
	q := r.URL.Query()

	if s := q.Get("analysisId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, errors.NewValidation("api.ListExecutions", "analysisId must be an integer", err)
		}
		f.AnalysisID = &id
	}
	if s := q.Get("status"); s != "" {
		switch s {
		case models.StatusRunning, models.StatusSucceeded, models.StatusFailed:
			status := s
			f.Status = &status
		default:
			return f, errors.NewValidation("api.ListExecutions", "unknown status "+s, nil)
		}
	}
	if s := q.Get("stage"); s != "" {
		stage, err := strconv.Atoi(s)
		if err != nil {
			return f, errors.NewValidation("api.ListExecutions", "stage must be an integer", err)
		}
		f.Stage = &stage
	}
	if s := q.Get("active"); s == "true" || s == "1" {
		f.OnlyActive = true
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return f, errors.NewValidation("api.ListExecutions", "limit must be a non-negative integer", err)
		}
		f.Limit = limit
	}
	if s := q.Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil || offset < 0 {
			return f, errors.NewValidation("api.ListExecutions", "offset must be a non-negative integer", err)
		}
		f.Offset = offset
	}
	return f, nil
}

// JobExecutionsHandler lists the per-stage job rows recorded for one
// analysis.
func JobExecutionsHandler(repo domain.PipelineRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := mux.Vars(r)["analysisId"]
		analysisID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, errors.NewValidation("api.JobExecutions", "analysisId must be an integer", err))
			return
		}

		jobs, err := repo.ListJobExecutionsByAnalysis(r.Context(), analysisID)
		if err != nil {
			writeError(w, err)
			return
		}
		if jobs == nil {
			jobs = []models.PipelineJobExecution{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

type validateRequest struct {
	UserInput string `json:"userInput"`
}

type validateResponse struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// ValidateHandler checks one member's free-text dining wish with a single
// AI call, before the text is committed to a group analysis.
func ValidateHandler(ai clova.Completer, pm *prompts.Manager, log *logging.Logger) http.HandlerFunc {
	l := log.WithComponent("api")
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.NewValidation("api.Validate", "malformed request body", err))
			return
		}
		if req.UserInput == "" {
			writeError(w, errors.NewValidation("api.Validate", "userInput is required", nil))
			return
		}

		prompt, err := pm.Render(prompts.InputValidation, map[string]string{
			"UserInput": req.UserInput,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		reply := ai.Complete(r.Context(), prompt)
		var resp validateResponse
		if clova.IsFailure(reply) ||
			json.Unmarshal(clova.ExtractJSON(reply), &resp) != nil {
			l.Error("input validation unavailable", logging.String("reply", reply))
			writeError(w, errors.NewExternal("api.Validate", "clova", "validation unavailable", nil))
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Pinger is the health probe dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded", "database": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
