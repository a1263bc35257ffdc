package assembler

import (
	"context"
	"testing"

	"ai-restaurant-analysis/internal/models"
	mocks "ai-restaurant-analysis/internal/testing"
	"ai-restaurant-analysis/pkg/logging"
)

func newAssembler(repo *mocks.MockRepository, search *mocks.MockSearcher) *Assembler {
	a := New(repo, search, logging.NewNop())
	a.pick = func(int) int { return 0 }
	return a
}

func reviewPlace(id, name string, scores ...float64) models.Place {
	p := models.Place{ID: id, Name: name, Address: "addr " + id, Basis: models.BasisReview}
	for i, s := range scores {
		v := s
		r := models.Review{Text: "review " + string(rune('a'+i)), Score: &v}
		p.Reviews = append(p.Reviews, r)
		p.TopReviews = append(p.TopReviews, r)
	}
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		agg := sum / float64(len(scores))
		p.Score = &agg
	}
	return p
}

func TestBuildReviewBasedDetail(t *testing.T) {
	repo := mocks.NewMockRepository()
	repo.Templates[string(models.BasisReview)] = []models.AIMessageTemplate{
		{ID: 1, Content: "리뷰가 좋아요", BasisType: string(models.BasisReview)},
	}
	search := &mocks.MockSearcher{Photos: map[string][]string{"p1": {"http://img/1", "http://img/2"}}}
	a := newAssembler(repo, search)

	resp := a.Build(context.Background(), "g-1",
		[]models.Place{reviewPlace("p1", "Alpha", 9.0, 7.0)}, []string{"korean"})

	details := resp.AnalysisResult[models.ResultKeyRecommendations]
	if len(details) != 1 {
		t.Fatalf("got %d details, want 1", len(details))
	}
	d := details[0]
	if d.Place.PlaceName != "Alpha" || len(d.Place.PlaceImageList) != 2 {
		t.Errorf("place = %+v", d.Place)
	}
	if d.Content != "review a" {
		t.Errorf("content = %q, want best review excerpt", d.Content)
	}
	if d.TemplateMessage != "리뷰가 좋아요" {
		t.Errorf("template message = %q", d.TemplateMessage)
	}
	if len(d.AnalysisBasisList) != 2 {
		t.Fatalf("basis entries = %d, want 2", len(d.AnalysisBasisList))
	}
	// Stars come from the place aggregate (8.0 -> 4), the same on every entry.
	for i, b := range d.AnalysisBasisList {
		if b.Type != string(models.BasisReview) || b.StarScore != 4 {
			t.Errorf("basis[%d] = %+v, want a 4-star review entry", i, b)
		}
	}
	if len(d.CategoryKeywords) != 1 || d.CategoryKeywords[0] != "korean" {
		t.Errorf("keywords = %v", d.CategoryKeywords)
	}
}

func TestBuildAIBasedDetail(t *testing.T) {
	repo := mocks.NewMockRepository()
	a := newAssembler(repo, &mocks.MockSearcher{})

	score := 8.0
	place := models.Place{
		ID: "p2", Name: "Beta", Address: "addr p2",
		Basis: models.BasisAI, AIMessage: "조용하고 분위기가 좋아요", Score: &score,
	}
	resp := a.Build(context.Background(), "g-1", []models.Place{place}, nil)

	d := resp.AnalysisResult[models.ResultKeyRecommendations][0]
	if d.Content != "조용하고 분위기가 좋아요" {
		t.Errorf("content = %q, want the AI message", d.Content)
	}
	if d.TemplateMessage != defaultTemplateMessage {
		t.Errorf("empty pool should fall back to default, got %q", d.TemplateMessage)
	}
	if len(d.AnalysisBasisList) != 1 {
		t.Fatalf("basis entries = %d, want 1", len(d.AnalysisBasisList))
	}
	b := d.AnalysisBasisList[0]
	if b.Type != string(models.BasisAI) || b.Content != place.AIMessage || b.StarScore != 4 {
		t.Errorf("AI basis = %+v", b)
	}
}

func TestBuildPhotoFailureDegrades(t *testing.T) {
	repo := mocks.NewMockRepository()
	search := &mocks.MockSearcher{PhotosErr: context.DeadlineExceeded}
	a := newAssembler(repo, search)

	resp := a.Build(context.Background(), "g-1",
		[]models.Place{reviewPlace("p1", "Alpha", 6.0)}, nil)

	d := resp.AnalysisResult[models.ResultKeyRecommendations][0]
	if len(d.Place.PlaceImageList) != 0 {
		t.Errorf("photos = %v, want empty on fetch failure", d.Place.PlaceImageList)
	}
}

func TestStarScoreBounds(t *testing.T) {
	cases := []struct {
		score float64
		want  int
	}{
		{0.0, 1}, {1.0, 1}, {4.9, 2}, {7.0, 4}, {10.0, 5}, {12.0, 5},
	}
	for _, tc := range cases {
		if got := starScore(tc.score); got != tc.want {
			t.Errorf("starScore(%v) = %d, want %d", tc.score, got, tc.want)
		}
	}
}
