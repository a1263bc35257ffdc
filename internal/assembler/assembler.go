// Package assembler turns the selected places into the response payload:
// outward place shapes with photos, basis entries with star scores, and a
// templated message per recommendation.
package assembler

import (
	"context"
	"math"
	"math/rand"
	"strings"

	"ai-restaurant-analysis/internal/domain"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/places"
	"ai-restaurant-analysis/pkg/logging"
)

const (
	maxPhotosPerPlace = 3

	// Shown when the template pool for a basis type is empty or unreachable.
	defaultTemplateMessage = "이 장소를 추천드려요!"
)

type Assembler struct {
	templates domain.TemplateRepository
	photos    places.Searcher
	log       *logging.ComponentLogger
	pick      func(n int) int
}

func New(templates domain.TemplateRepository, photos places.Searcher, log *logging.Logger) *Assembler {
	return &Assembler{
		templates: templates,
		photos:    photos,
		log:       log.WithComponent("assembler"),
		pick:      rand.Intn,
	}
}

// Build assembles the final response. Photo and template lookups degrade to
// empty lists and the default message; they never fail the build.
func (a *Assembler) Build(ctx context.Context, groupID string, selected []models.Place, keywords []string) *models.AnalysisResponse {
	details := make([]models.AnalysisResultDetail, 0, len(selected))
	for _, p := range selected {
		photos, err := a.photos.FetchPhotos(ctx, p.ID, maxPhotosPerPlace)
		if err != nil {
			a.log.Warn("photo fetch failed", logging.PlaceID(p.ID), logging.Err(err))
			photos = nil
		}

		details = append(details, models.AnalysisResultDetail{
			Place: models.PlaceResponse{
				PlaceName:            p.Name,
				PlaceRoadNameAddress: p.Address,
				PlaceImageList:       photos,
			},
			Content:           contentFor(p),
			TemplateMessage:   a.templateMessage(ctx, p.Basis),
			AnalysisBasisList: basisEntries(p),
			CategoryKeywords:  keywords,
		})
	}

	return &models.AnalysisResponse{
		GroupID: groupID,
		AnalysisResult: map[string][]models.AnalysisResultDetail{
			models.ResultKeyRecommendations: details,
		},
	}
}

// contentFor picks the headline line for a recommendation: the AI's message
// for curated picks, the best review excerpt for score-ranked ones.
func contentFor(p models.Place) string {
	if p.Basis == models.BasisAI {
		return p.AIMessage
	}
	if len(p.TopReviews) > 0 {
		return firstLine(p.TopReviews[0].Text)
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func (a *Assembler) templateMessage(ctx context.Context, basis models.Basis) string {
	pool, err := a.templates.GetTemplatesByBasisType(ctx, string(basis))
	if err != nil {
		a.log.Warn("template pool lookup failed", logging.String("basis", string(basis)), logging.Err(err))
		return defaultTemplateMessage
	}
	if len(pool) == 0 {
		return defaultTemplateMessage
	}
	return pool[a.pick(len(pool))].Content
}

func basisEntries(p models.Place) []models.AnalysisBasis {
	if p.Basis == models.BasisAI {
		return []models.AnalysisBasis{{
			Type:      string(models.BasisAI),
			Content:   p.AIMessage,
			StarScore: starScore(p.AggregateScore()),
		}}
	}

	// Every review entry carries the place's star rating; the excerpts
	// differ, the verdict is one per place.
	stars := starScore(p.AggregateScore())
	entries := make([]models.AnalysisBasis, 0, len(p.TopReviews))
	for _, r := range p.TopReviews {
		entries = append(entries, models.AnalysisBasis{
			Type:      string(models.BasisReview),
			Content:   r.Text,
			StarScore: stars,
		})
	}
	return entries
}

// starScore maps a 0-10 score onto 1-5 stars.
func starScore(score float64) int {
	stars := int(math.Round(score / 2))
	if stars < 1 {
		return 1
	}
	if stars > 5 {
		return 5
	}
	return stars
}
