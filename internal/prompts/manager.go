// Package prompts loads, compiles and renders the AI prompt templates.
// Templates are embedded and compiled once at startup; variants can be added
// as new files without code changes.
package prompts

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	errs "ai-restaurant-analysis/pkg/errors"
)

// Template names used by the pipeline.
const (
	ReviewScore      = "review_score"
	Curation         = "curation"
	CategorySummary  = "category_summary"
	ConditionSummary = "condition_summary"
	InputValidation  = "input_validation"
)

type Manager struct {
	mu   sync.RWMutex
	tpls map[string]*template.Template
}

// NewManager parses all embedded templates.
func NewManager() (*Manager, error) {
	m := &Manager{tpls: make(map[string]*template.Template)}

	err := fs.WalkDir(FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".txt.tmpl") {
			return nil
		}
		b, rerr := fs.ReadFile(FS(), p)
		if rerr != nil {
			return fmt.Errorf("read template %s: %w", p, rerr)
		}
		name := strings.TrimSuffix(filepath.Base(p), ".txt.tmpl")
		tpl, perr := template.New(name).Parse(string(b))
		if perr != nil {
			return fmt.Errorf("parse template %s: %w", p, perr)
		}
		m.tpls[name] = tpl
		return nil
	})
	if err != nil {
		return nil, errs.NewBiz("prompts.NewManager", "failed to load prompts", err)
	}
	return m, nil
}

// Render executes a named template and returns the prompt text.
func (m *Manager) Render(name string, data any) (string, error) {
	m.mu.RLock()
	tpl, ok := m.tpls[name]
	m.mu.RUnlock()
	if !ok {
		return "", errs.NewValidation("prompts.Render", fmt.Sprintf("prompt template not found: %s", name), nil)
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", errs.NewBiz("prompts.Render", fmt.Sprintf("execute template %s", name), err)
	}
	return sb.String(), nil
}
