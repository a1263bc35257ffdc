// Package selector picks the final recommendation list: the highest-scored
// places on review evidence, plus extra picks curated by the model from the
// remaining candidates.
package selector

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/pkg/logging"
	"ai-restaurant-analysis/pkg/metrics"
)

const (
	// maxCandidatesForAI caps the places offered to the model for curation.
	maxCandidatesForAI = 10

	minAIScore     = 6.0
	maxAIScore     = 10.0
	defaultAIScore = 8.0
)

type Selector struct {
	ai       clova.Completer
	prompts  *prompts.Manager
	topCount int
	log      *logging.ComponentLogger
	metrics  *metrics.Registry
}

func New(ai clova.Completer, pm *prompts.Manager, topCount int, log *logging.Logger) *Selector {
	if topCount <= 0 {
		topCount = 2
	}
	return &Selector{
		ai:       ai,
		prompts:  pm,
		topCount: topCount,
		log:      log.WithComponent("selector"),
		metrics:  metrics.Default,
	}
}

// aiPick keeps score as raw JSON: models emit numbers, quoted numbers and
// plain junk there, and one bad score must not discard the other picks.
type aiPick struct {
	PlaceID string          `json:"placeId"`
	Score   json.RawMessage `json:"score"`
	Message string          `json:"message"`
}

type curationReply struct {
	Recommendations []aiPick `json:"recommendations"`
}

// Select returns the recommended places. Score-ranked picks come first,
// tagged with the review basis; model-curated picks follow, tagged with the
// AI basis. A failed or unparseable curation call drops the AI picks only.
func (s *Selector) Select(ctx context.Context, base models.BasePosition, keywords []string, places []models.Place) []models.Place {
	ranked := append([]models.Place{}, places...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AggregateScore() > ranked[j].AggregateScore()
	})

	top := ranked
	if len(top) > s.topCount {
		top = top[:s.topCount]
	}
	selected := make([]models.Place, 0, s.topCount+maxCandidatesForAI)
	for _, p := range top {
		p.Basis = models.BasisReview
		selected = append(selected, p)
	}

	candidates := ranked[len(top):]
	if len(candidates) > maxCandidatesForAI {
		candidates = candidates[:maxCandidatesForAI]
	}
	if len(candidates) == 0 {
		return selected
	}

	picks := s.curate(ctx, base, keywords, candidates)
	return append(selected, picks...)
}

func (s *Selector) curate(ctx context.Context, base models.BasePosition, keywords []string, candidates []models.Place) []models.Place {
	type promptCandidate struct {
		ID      string
		Name    string
		Address string
	}
	pcs := make([]promptCandidate, len(candidates))
	byID := make(map[string]models.Place, len(candidates))
	for i, c := range candidates {
		pcs[i] = promptCandidate{ID: c.ID, Name: c.Name, Address: c.Address}
		byID[c.ID] = c
	}

	prompt, err := s.prompts.Render(prompts.Curation, map[string]any{
		"BaseX":      base.X,
		"BaseY":      base.Y,
		"Keywords":   keywords,
		"Candidates": pcs,
	})
	if err != nil {
		s.log.Error("render curation prompt", logging.Err(err))
		return nil
	}

	reply := s.ai.Complete(ctx, prompt)
	if clova.IsFailure(reply) {
		s.metrics.Counter("selector_curation_failures_total", "Curation calls that returned no usable picks").Inc()
		s.log.Warn("curation call failed, returning score-ranked picks only")
		return nil
	}

	var parsed curationReply
	if err := json.Unmarshal(clova.ExtractJSON(reply), &parsed); err != nil {
		s.metrics.Counter("selector_curation_failures_total", "Curation calls that returned no usable picks").Inc()
		s.log.Warn("curation reply not parseable", logging.Err(err))
		return nil
	}

	var picks []models.Place
	for _, rec := range parsed.Recommendations {
		place, ok := byID[rec.PlaceID]
		if !ok {
			s.log.Warn("curation pick not in candidate set", logging.PlaceID(rec.PlaceID))
			continue
		}
		if strings.TrimSpace(rec.Message) == "" {
			s.log.Warn("curation pick missing message", logging.PlaceID(rec.PlaceID))
			continue
		}
		score := clampAIScore(rec.Score)
		place.Score = &score
		place.Basis = models.BasisAI
		place.AIMessage = strings.TrimSpace(rec.Message)
		picks = append(picks, place)
		delete(byID, rec.PlaceID)
	}
	return picks
}

func clampAIScore(raw json.RawMessage) float64 {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return defaultAIScore
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return defaultAIScore
		}
		v = parsed
	}
	switch {
	case v < minAIScore:
		return minAIScore
	case v > maxAIScore:
		return maxAIScore
	}
	return v
}

