package model

import (
	"fmt"
	"time"
)

// Category explains transactions that will never have a matching receipt
// file. Structurally a lighter partner: it carries the same pattern mechanics
// and is matched through the same scorer.
type Category struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ID              string
	UserID          string
	Name            string
	Keywords        []string
	LearnedPatterns []LearnedPattern
	IsActive        bool
}

// Validate ensures the category has the minimum required data.
func (c *Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("category name is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("categories require a user id")
	}
	return nil
}

// NameCandidates returns the category name followed by its keywords, for
// similarity scoring.
func (c *Category) NameCandidates() []string {
	out := make([]string, 0, len(c.Keywords)+1)
	if c.Name != "" {
		out = append(out, c.Name)
	}
	out = append(out, c.Keywords...)
	return out
}
