// Package preprocess turns a raw analysis request into the inputs the rest
// of the pipeline consumes: a base position, tallied category votes, and an
// AI-summarized preference digest.
package preprocess

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/pkg/errors"
	"ai-restaurant-analysis/pkg/geography"
	"ai-restaurant-analysis/pkg/logging"
)

// maxCategoryKeywords caps the keyword list handed to the place search.
const maxCategoryKeywords = 3

type Preprocessor struct {
	ai      clova.Completer
	prompts *prompts.Manager
	log     *logging.ComponentLogger
}

func New(ai clova.Completer, pm *prompts.Manager, log *logging.Logger) *Preprocessor {
	return &Preprocessor{ai: ai, prompts: pm, log: log.WithComponent("preprocess")}
}

// Prepare validates and condenses the request. It fails only on requests no
// later stage could work with; AI summarization failures fall back to
// deterministic digests.
func (p *Preprocessor) Prepare(ctx context.Context, req *models.AIAnalysisRequest) (*models.PreprocessResult, *models.GroupPreferenceSummary, error) {
	if len(req.MemberSettingList) == 0 {
		return nil, nil, errors.NewValidation("preprocess.Prepare", "request has no member settings", nil)
	}

	var points []geography.Point
	for _, m := range req.MemberSettingList {
		if m.XPosition != nil && m.YPosition != nil {
			points = append(points, geography.Point{X: *m.XPosition, Y: *m.YPosition})
		}
	}
	if len(points) == 0 {
		return nil, nil, errors.NewValidation("preprocess.Prepare", "no member has a position", nil)
	}
	base, isGroup := geography.BasePosition(points)

	votes := tallyVotes(req.MemberSettingList)

	var texts []string
	for _, m := range req.MemberSettingList {
		if t := strings.TrimSpace(m.InputText); t != "" {
			texts = append(texts, t)
		}
	}

	result := &models.PreprocessResult{
		GroupID:            req.GroupID,
		IsGroup:            isGroup,
		MemberCount:        len(req.MemberSettingList),
		BasePosition:       models.BasePosition{X: base.X, Y: base.Y},
		CategoryPreference: votes,
		InputTexts:         texts,
	}

	summary, err := p.summarize(ctx, votes, texts)
	if err != nil {
		return nil, nil, err
	}

	p.log.Info("preprocessing done",
		logging.AnalysisID(req.AnalysisID),
		logging.Int("members", result.MemberCount),
		logging.Bool("group", isGroup),
		logging.Int("keywords", len(summary.CategoryKeywords)))
	return result, summary, nil
}

func tallyVotes(members []models.MemberSetting) map[string]models.CategoryVote {
	votes := make(map[string]models.CategoryVote)
	for _, m := range members {
		for _, c := range m.CategoryList {
			v := votes[c.CategoryName]
			if c.Preferred {
				v.Preferred++
			} else {
				v.NonPreferred++
			}
			votes[c.CategoryName] = v
		}
	}
	return votes
}

// summarize runs the two digests in parallel. Each falls back on its own:
// top-voted category names when keyword extraction fails, the joined input
// texts when condition summarization fails.
func (p *Preprocessor) summarize(ctx context.Context, votes map[string]models.CategoryVote, texts []string) (*models.GroupPreferenceSummary, error) {
	summary := &models.GroupPreferenceSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary.CategoryKeywords = p.categoryKeywords(gctx, votes)
		return nil
	})
	g.Go(func() error {
		summary.ConditionSummary = p.conditionSummary(gctx, texts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (p *Preprocessor) categoryKeywords(ctx context.Context, votes map[string]models.CategoryVote) []string {
	if len(votes) == 0 {
		return nil
	}

	prompt, err := p.prompts.Render(prompts.CategorySummary, map[string]any{
		"Votes":       votes,
		"MaxKeywords": maxCategoryKeywords,
	})
	if err != nil {
		p.log.Error("render category prompt", logging.Err(err))
		return topVotedCategories(votes, maxCategoryKeywords)
	}

	reply := p.ai.Complete(ctx, prompt)
	if clova.IsFailure(reply) {
		p.log.Warn("category summarization failed, using vote ranking")
		return topVotedCategories(votes, maxCategoryKeywords)
	}

	var keywords []string
	if err := json.Unmarshal(clova.ExtractJSON(reply), &keywords); err != nil || len(keywords) == 0 {
		p.log.Warn("category reply not parseable, using vote ranking", logging.Err(err))
		return topVotedCategories(votes, maxCategoryKeywords)
	}
	if len(keywords) > maxCategoryKeywords {
		keywords = keywords[:maxCategoryKeywords]
	}
	return keywords
}

func (p *Preprocessor) conditionSummary(ctx context.Context, texts []string) string {
	if len(texts) == 0 {
		return ""
	}

	prompt, err := p.prompts.Render(prompts.ConditionSummary, map[string]any{
		"InputTexts": texts,
	})
	if err != nil {
		p.log.Error("render condition prompt", logging.Err(err))
		return strings.Join(texts, " / ")
	}

	reply := p.ai.Complete(ctx, prompt)
	if clova.IsFailure(reply) || strings.TrimSpace(reply) == "" {
		p.log.Warn("condition summarization failed, joining raw texts")
		return strings.Join(texts, " / ")
	}
	return strings.TrimSpace(reply)
}

// topVotedCategories ranks categories by net preference and returns up to
// max names. Ties break alphabetically so the fallback is deterministic.
func topVotedCategories(votes map[string]models.CategoryVote, max int) []string {
	type ranked struct {
		name string
		net  int
	}
	all := make([]ranked, 0, len(votes))
	for name, v := range votes {
		all = append(all, ranked{name: name, net: v.Preferred - v.NonPreferred})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].net != all[j].net {
			return all[i].net > all[j].net
		}
		return all[i].name < all[j].name
	})

	var out []string
	for _, r := range all {
		if len(out) == max {
			break
		}
		if r.net <= 0 && len(out) > 0 {
			break
		}
		out = append(out, r.name)
	}
	return out
}
