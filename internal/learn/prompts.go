package learn

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kontoworks/konto/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Prompts renders the oracle prompts from embedded templates.
type Prompts struct {
	templates map[string]*template.Template
}

// NewPrompts loads and parses all prompt templates.
func NewPrompts() (*Prompts, error) {
	p := &Prompts{templates: make(map[string]*template.Template)}

	funcMap := template.FuncMap{
		"formatAmount": formatAmount,
		"formatDate":   formatDate,
		"truncate":     truncate,
		"join":         strings.Join,
	}

	for _, name := range []string{"propose", "review"} {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		tmpl, err := template.New(name + ".tmpl").Funcs(funcMap).ParseFS(templateFS, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	return p, nil
}

// proposeData feeds the pattern proposal prompt.
type proposeData struct {
	Partner    *model.Partner
	Positive   []model.Transaction
	Collisions []model.Transaction
	Removals   []model.ManualRemoval
}

// Propose renders the first-round prompt asking for wildcard patterns derived
// from the partner's confirmed transactions.
func (p *Prompts) Propose(partner *model.Partner, positive, collisions []model.Transaction, removals []model.ManualRemoval) (string, error) {
	data := proposeData{
		Partner:    partner,
		Positive:   positive,
		Collisions: collisions,
		Removals:   removals,
	}

	var buf bytes.Buffer
	if err := p.templates["propose"].ExecuteTemplate(&buf, "propose.tmpl", data); err != nil {
		return "", fmt.Errorf("failed to execute propose template: %w", err)
	}
	return buf.String(), nil
}

// reviewData feeds the dry-run review prompt.
type reviewData struct {
	Partner *model.Partner
	Reports []Report
}

// Review renders the second-round prompt that presents each pattern's real
// match results and asks for a judgment.
func (p *Prompts) Review(partner *model.Partner, reports []Report) (string, error) {
	data := reviewData{Partner: partner, Reports: reports}

	var buf bytes.Buffer
	if err := p.templates["review"].ExecuteTemplate(&buf, "review.tmpl", data); err != nil {
		return "", fmt.Errorf("failed to execute review template: %w", err)
	}
	return buf.String(), nil
}

// Template helper functions.

func formatAmount(minor int64, currency string) string {
	s := decimal.New(minor, -2).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
