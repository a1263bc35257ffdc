package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"ai-restaurant-analysis/internal/assembler"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/places"
	"ai-restaurant-analysis/internal/preprocess"
	"ai-restaurant-analysis/internal/scorer"
	"ai-restaurant-analysis/internal/selector"
	"ai-restaurant-analysis/pkg/errors"
	"ai-restaurant-analysis/pkg/logging"
)

// Engine runs one analysis end to end, one tracked job per stage. A stage
// error fails the execution and stops later stages from opening rows.
type Engine struct {
	tracker   *Tracker
	pre       *preprocess.Preprocessor
	search    places.Searcher
	scorer    *scorer.ReviewScorer
	selector  *selector.Selector
	assembler *assembler.Assembler

	radiusMeters float64
	maxResults   int
	log          *logging.ComponentLogger
}

type EngineConfig struct {
	RadiusMeters float64
	MaxResults   int
}

func NewEngine(
	tracker *Tracker,
	pre *preprocess.Preprocessor,
	search places.Searcher,
	sc *scorer.ReviewScorer,
	sel *selector.Selector,
	asm *assembler.Assembler,
	cfg EngineConfig,
	log *logging.Logger,
) *Engine {
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = 500
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	return &Engine{
		tracker:      tracker,
		pre:          pre,
		search:       search,
		scorer:       sc,
		selector:     sel,
		assembler:    asm,
		radiusMeters: cfg.RadiusMeters,
		maxResults:   cfg.MaxResults,
		log:          log.WithComponent("engine"),
	}
}

// Run executes the pipeline for one request.
func (e *Engine) Run(ctx context.Context, req *models.AIAnalysisRequest) (*models.AnalysisResponse, error) {
	exec, err := e.tracker.StartExecution(ctx, req.AnalysisID)
	if err != nil {
		return nil, errors.NewDB("engine.Run", "open pipeline execution", err)
	}

	var runErr error
	defer exec.Finish(ctx, &runErr)

	if runErr = e.acceptRequest(ctx, exec, req); runErr != nil {
		return nil, runErr
	}

	result, summary, preErr := e.preprocessStage(ctx, exec, req)
	if preErr != nil {
		runErr = preErr
		return nil, runErr
	}

	candidates, collectErr := e.collectStage(ctx, exec, result, summary)
	if collectErr != nil {
		runErr = collectErr
		return nil, runErr
	}

	selected, analyzeErr := e.analyzeStage(ctx, exec, result, summary, candidates)
	if analyzeErr != nil {
		runErr = analyzeErr
		return nil, runErr
	}

	resp, buildErr := e.buildStage(ctx, exec, req, selected, summary)
	if buildErr != nil {
		runErr = buildErr
		return nil, runErr
	}
	return resp, nil
}

func (e *Engine) acceptRequest(ctx context.Context, exec *ExecutionScope, req *models.AIAnalysisRequest) (err error) {
	job, jerr := exec.StartJob(ctx, StageAnalysisRequest, models.JSONMap{
		"groupId":     req.GroupID,
		"memberCount": len(req.MemberSettingList),
	})
	if jerr != nil {
		return errors.NewDB("engine.acceptRequest", "open job row", jerr)
	}
	defer job.Close(ctx, &err)

	if strings.TrimSpace(req.GroupID) == "" {
		err = errors.NewValidation("engine.acceptRequest", "groupId is required", nil)
		return err
	}
	if len(req.MemberSettingList) == 0 {
		err = errors.NewValidation("engine.acceptRequest", "memberSettingList is empty", nil)
		return err
	}

	job.AttachResult(ctx, models.JSONMap{"accepted": true})
	return nil
}

func (e *Engine) preprocessStage(ctx context.Context, exec *ExecutionScope, req *models.AIAnalysisRequest) (result *models.PreprocessResult, summary *models.GroupPreferenceSummary, err error) {
	job, jerr := exec.StartJob(ctx, StagePreprocessing, models.JSONMap{
		"memberCount": len(req.MemberSettingList),
	})
	if jerr != nil {
		return nil, nil, errors.NewDB("engine.preprocessStage", "open job row", jerr)
	}
	defer job.Close(ctx, &err)

	result, summary, err = e.pre.Prepare(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	job.AttachResult(ctx, toJSONMap(result))
	return result, summary, nil
}

func (e *Engine) collectStage(ctx context.Context, exec *ExecutionScope, result *models.PreprocessResult, summary *models.GroupPreferenceSummary) (candidates []models.Place, err error) {
	keywords := summary.CategoryKeywords
	if len(keywords) == 0 {
		keywords = []string{""}
	}

	job, jerr := exec.StartJob(ctx, StageCollectingData, models.JSONMap{
		"keywords": keywords,
		"base":     models.JSONMap{"x": result.BasePosition.X, "y": result.BasePosition.Y},
	})
	if jerr != nil {
		return nil, errors.NewDB("engine.collectStage", "open job row", jerr)
	}
	defer job.Close(ctx, &err)

	var batches [][]models.Place
	for _, kw := range keywords {
		batch, serr := e.search.SearchNearby(ctx,
			result.BasePosition.X, result.BasePosition.Y, e.radiusMeters, kw, e.maxResults)
		if serr != nil {
			err = serr
			return nil, err
		}
		batches = append(batches, batch)
	}

	candidates = places.Dedup(batches...)
	if len(candidates) == 0 {
		err = errors.NewBiz("engine.collectStage", "no places found around the base position", nil)
		return nil, err
	}

	job.AttachResult(ctx, models.JSONMap{"placeCount": len(candidates)})
	e.log.Info("candidates collected",
		logging.Int("places", len(candidates)), logging.Int("keywords", len(keywords)))
	return candidates, nil
}

func (e *Engine) analyzeStage(ctx context.Context, exec *ExecutionScope, result *models.PreprocessResult, summary *models.GroupPreferenceSummary, candidates []models.Place) (selected []models.Place, err error) {
	job, jerr := exec.StartJob(ctx, StageAnalysisStart, models.JSONMap{
		"candidateCount": len(candidates),
	})
	if jerr != nil {
		return nil, errors.NewDB("engine.analyzeStage", "open job row", jerr)
	}
	defer job.Close(ctx, &err)

	e.scorer.ScorePlaces(ctx, summary.ConditionSummary, candidates)
	selected = e.selector.Select(ctx, result.BasePosition, summary.CategoryKeywords, candidates)
	if len(selected) == 0 {
		err = errors.NewBiz("engine.analyzeStage", "selection produced no places", nil)
		return nil, err
	}

	scores := make([]float64, len(selected))
	for i, p := range selected {
		scores[i] = p.AggregateScore()
	}
	job.AttachResult(ctx, models.JSONMap{
		"selectedCount": len(selected),
		"scores":        scores,
	})
	return selected, nil
}

func (e *Engine) buildStage(ctx context.Context, exec *ExecutionScope, req *models.AIAnalysisRequest, selected []models.Place, summary *models.GroupPreferenceSummary) (resp *models.AnalysisResponse, err error) {
	job, jerr := exec.StartJob(ctx, StageBuildResult, models.JSONMap{
		"selectedCount": len(selected),
	})
	if jerr != nil {
		return nil, errors.NewDB("engine.buildStage", "open job row", jerr)
	}
	defer job.Close(ctx, &err)

	resp = e.assembler.Build(ctx, req.GroupID, selected, summary.CategoryKeywords)
	job.AttachResult(ctx, toJSONMap(resp))
	return resp, nil
}

// toJSONMap round-trips a value through JSON into the opaque payload shape
// stored in job rows. Unmarshalable values degrade to nil.
func toJSONMap(v any) models.JSONMap {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m models.JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
