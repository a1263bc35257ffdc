// Package scorer grades each candidate place's reviews against the group's
// stated preferences and rolls the kept scores up into a single aggregate
// per place.
package scorer

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/pkg/logging"
	"ai-restaurant-analysis/pkg/metrics"
)

type ReviewScorer struct {
	ai          clova.Completer
	prompts     *prompts.Manager
	concurrency int
	topReviews  int
	log         *logging.ComponentLogger
	metrics     *metrics.Registry
}

func NewReviewScorer(ai clova.Completer, pm *prompts.Manager, concurrency, topReviews int, log *logging.Logger) *ReviewScorer {
	if concurrency <= 0 {
		concurrency = 10
	}
	if topReviews <= 0 {
		topReviews = 3
	}
	return &ReviewScorer{
		ai:          ai,
		prompts:     pm,
		concurrency: concurrency,
		topReviews:  topReviews,
		log:         log.WithComponent("scorer"),
		metrics:     metrics.Default,
	}
}

// ScorePlaces scores every place concurrently and mutates the slice in
// place. A failed model call degrades that place to default review scores;
// it never fails the batch.
func (s *ReviewScorer) ScorePlaces(ctx context.Context, conditionSummary string, places []models.Place) {
	start := time.Now()
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i := range places {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *models.Place) {
			defer wg.Done()
			defer func() { <-sem }()
			s.scorePlace(ctx, conditionSummary, p)
		}(&places[i])
	}
	wg.Wait()

	s.metrics.Histogram("scorer_batch_seconds", "Wall time of a scoring batch", nil).
		Observe(time.Since(start).Seconds())
	s.log.Info("scored places",
		logging.Int("count", len(places)),
		logging.Duration("elapsed", time.Since(start)))
}

func (s *ReviewScorer) scorePlace(ctx context.Context, conditionSummary string, p *models.Place) {
	if len(p.Reviews) == 0 {
		zero := 0.0
		p.Score = &zero
		return
	}

	prompted := p.Reviews
	if len(prompted) > maxReviewsPerPrompt {
		prompted = prompted[:maxReviewsPerPrompt]
	}
	reviewTexts := make([]string, len(prompted))
	for i, r := range prompted {
		reviewTexts[i] = r.Text
	}

	prompt, err := s.prompts.Render(prompts.ReviewScore, map[string]any{
		"ConditionSummary": conditionSummary,
		"PlaceName":        p.Name,
		"Reviews":          reviewTexts,
	})
	if err != nil {
		s.log.Error("render score prompt", logging.PlaceID(p.ID), logging.Err(err))
		s.applyScores(p, defaultScores(len(p.Reviews)))
		return
	}

	reply := s.ai.Complete(ctx, prompt)
	if clova.IsFailure(reply) {
		s.metrics.Counter("scorer_place_failures_total", "Places scored with default scores after model failure").Inc()
		s.log.Warn("model scoring failed, using defaults", logging.PlaceID(p.ID))
		s.applyScores(p, defaultScores(len(p.Reviews)))
		return
	}

	s.applyScores(p, ParseScores(reply, len(p.Reviews)))
}

// applyScores attaches per-review scores, keeps the highest-scored reviews,
// and sets the place aggregate to the mean of the kept scores.
func (s *ReviewScorer) applyScores(p *models.Place, scores []float64) {
	for i := range p.Reviews {
		v := scores[i]
		p.Reviews[i].Score = &v
	}

	kept := append([]models.Review{}, p.Reviews...)
	sort.SliceStable(kept, func(i, j int) bool {
		return *kept[i].Score > *kept[j].Score
	})
	if len(kept) > s.topReviews {
		kept = kept[:s.topReviews]
	}
	p.TopReviews = kept

	var sum float64
	for _, r := range kept {
		sum += *r.Score
	}
	agg := sum / float64(len(kept))
	p.Score = &agg
}

func defaultScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = DefaultReviewScore
	}
	return scores
}
