// Package engine orchestrates match runs over the stored transaction corpus.
// Scoring lives in internal/match; the engine loads the candidate partners and
// categories, ranks them per transaction, applies the auto-assign rule and
// persists changed rows in pages. It never revokes an assignment: taking
// matches away is the cascade's job in internal/learn.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/identity"
	"github.com/kontoworks/konto/internal/match"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

const (
	// DefaultAutoApplyThreshold is the confidence at or above which the top
	// suggestion is written as an assignment instead of only recorded.
	DefaultAutoApplyThreshold = 89

	// DefaultScanCap bounds how many transactions a full-corpus run touches.
	DefaultScanCap = 10000

	// maxSuggestions caps the ranked candidate list stored per transaction.
	maxSuggestions = 3

	// scanPageSize is the page size for full-corpus runs. Each page is
	// persisted before the next is loaded.
	scanPageSize = 500
)

// Options tunes a Matcher. The zero value applies every default.
type Options struct {
	// Progress, when set, receives the running count of processed rows.
	Progress func(processed int)
	// AutoApplyThreshold overrides the confidence needed to auto-assign.
	AutoApplyThreshold int
	// ScanCap bounds full-corpus runs.
	ScanCap int
}

func (o Options) withDefaults() Options {
	if o.AutoApplyThreshold <= 0 {
		o.AutoApplyThreshold = DefaultAutoApplyThreshold
	}
	if o.ScanCap <= 0 {
		o.ScanCap = DefaultScanCap
	}
	return o
}

// Matcher runs partner and category matching for stored transactions.
type Matcher struct {
	storage service.Storage
	own     *identity.Own
	opts    Options
	logger  *slog.Logger
}

// NewMatcher creates a matcher. own may be nil when the user has registered
// no identifiers of their own.
func NewMatcher(storage service.Storage, own *identity.Own, opts Options, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		storage: storage,
		own:     own,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Rank scores one transaction against every candidate profile and returns the
// deduplicated top suggestions, best first. It touches no storage.
func Rank(txn *model.Transaction, profiles []*match.Profile) model.Suggestions {
	suggestions := make(model.Suggestions, 0, len(profiles))
	for _, p := range profiles {
		if s, ok := match.Score(txn, p); ok {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions.Dedupe().TopN(maxSuggestions)
}

// ShouldAutoApply reports whether a suggestion at the given confidence is
// written as an assignment rather than only suggested.
func (m *Matcher) ShouldAutoApply(confidence int) bool {
	return confidence >= m.opts.AutoApplyThreshold
}

// MatchPartners refreshes partner suggestions and auto-assignments for the
// given transactions, or for the user's whole corpus when ids is empty.
// Rows whose match state does not change are not rewritten.
func (m *Matcher) MatchPartners(ctx context.Context, userID string, ids []string) (service.MatchStats, error) {
	var stats service.MatchStats
	if userID == "" {
		return stats, common.NewUserError("user ID is required", nil)
	}

	profiles, err := m.partnerProfiles(ctx, userID)
	if err != nil {
		return stats, err
	}
	if len(profiles) == 0 {
		m.logger.Info("no active partners to match against", "user_id", userID)
		return stats, nil
	}

	rematch := func(txn *model.Transaction) { m.rematchPartner(txn, profiles) }
	if err := m.run(ctx, userID, ids, rematch, &stats); err != nil {
		return stats, err
	}

	m.logger.Info("matched partners",
		"user_id", userID,
		"scanned", stats.Scanned,
		"auto_applied", stats.AutoApplied,
		"suggested", stats.Suggested)
	return stats, nil
}

// MatchCategories fills the no-receipt category of the given transactions, or
// of the user's whole corpus when ids is empty. A transaction that already
// carries a category is left alone: the field records no origin, so every set
// value is treated as user intent.
func (m *Matcher) MatchCategories(ctx context.Context, userID string, ids []string) (service.MatchStats, error) {
	var stats service.MatchStats
	if userID == "" {
		return stats, common.NewUserError("user ID is required", nil)
	}

	categories, err := m.storage.GetCategoriesByUser(ctx, userID)
	if err != nil {
		return stats, fmt.Errorf("failed to load categories: %w", err)
	}
	profiles := make([]*match.Profile, 0, len(categories))
	for i := range categories {
		profiles = append(profiles, match.CategoryProfile(&categories[i]))
	}
	if len(profiles) == 0 {
		m.logger.Info("no active categories to match against", "user_id", userID)
		return stats, nil
	}

	rematch := func(txn *model.Transaction) { m.rematchCategory(txn, profiles) }
	if err := m.run(ctx, userID, ids, rematch, &stats); err != nil {
		return stats, err
	}

	m.logger.Info("matched categories",
		"user_id", userID,
		"scanned", stats.Scanned,
		"applied", stats.AutoApplied)
	return stats, nil
}

// ApplyPatterns backfills assignments for unassigned transactions across the
// corpus. Assigned rows are skipped entirely, so the pass is safe to run
// after every pattern change.
func (m *Matcher) ApplyPatterns(ctx context.Context, userID string) (service.MatchStats, error) {
	var stats service.MatchStats
	if userID == "" {
		return stats, common.NewUserError("user ID is required", nil)
	}

	profiles, err := m.partnerProfiles(ctx, userID)
	if err != nil {
		return stats, err
	}
	if len(profiles) == 0 {
		return stats, nil
	}

	rematch := func(txn *model.Transaction) {
		if txn.Assigned() {
			return
		}
		m.rematchPartner(txn, profiles)
	}
	if err := m.run(ctx, userID, nil, rematch, &stats); err != nil {
		return stats, err
	}

	m.logger.Info("applied patterns",
		"user_id", userID,
		"scanned", stats.Scanned,
		"assigned", stats.AutoApplied,
		"suggested", stats.Suggested)
	return stats, nil
}

// rematchPartner recomputes one transaction's suggestions and, where allowed,
// its assignment. User-confirmed assignments only get their suggestion list
// refreshed. Auto assignments may move to a better candidate but are never
// cleared here, even when the current partner no longer scores.
func (m *Matcher) rematchPartner(txn *model.Transaction, profiles []*match.Profile) {
	ranked := Rank(txn, profiles)
	txn.PartnerSuggestions = ranked
	if txn.UserConfirmed() {
		return
	}
	top := ranked.Top()
	if top == nil || !m.ShouldAutoApply(top.Confidence) {
		return
	}
	txn.PartnerID = top.PartnerID
	txn.PartnerType = top.PartnerType
	txn.PartnerMatchConfidence = top.Confidence
	txn.PartnerMatchedBy = model.MatchedByAuto
}

func (m *Matcher) rematchCategory(txn *model.Transaction, profiles []*match.Profile) {
	if txn.NoReceiptCategoryID != "" {
		return
	}
	ranked := Rank(txn, profiles)
	top := ranked.Top()
	if top == nil || !m.ShouldAutoApply(top.Confidence) {
		return
	}
	txn.NoReceiptCategoryID = top.PartnerID
}

// run drives rematch over either an explicit ID set or a paged corpus scan.
func (m *Matcher) run(ctx context.Context, userID string, ids []string, rematch func(*model.Transaction), stats *service.MatchStats) error {
	if len(ids) > 0 {
		txns, err := m.loadExact(ctx, userID, ids)
		if err != nil {
			return err
		}
		return m.flushPage(ctx, txns, rematch, stats)
	}

	cursor := ""
	for stats.Scanned < m.opts.ScanCap {
		limit := min(scanPageSize, m.opts.ScanCap-stats.Scanned)
		page, next, err := m.storage.ScanTransactions(ctx, userID, cursor, limit)
		if err != nil {
			return fmt.Errorf("failed to scan transactions: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if err := m.flushPage(ctx, page, rematch, stats); err != nil {
			return err
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return nil
}

// flushPage applies rematch to one page and persists only the changed rows.
func (m *Matcher) flushPage(ctx context.Context, txns []model.Transaction, rematch func(*model.Transaction), stats *service.MatchStats) error {
	changed := make([]model.Transaction, 0, len(txns))
	for i := range txns {
		before := txns[i]
		rematch(&txns[i])
		stats.Scanned++
		if m.opts.Progress != nil {
			m.opts.Progress(stats.Scanned)
		}
		if matchStateEqual(&before, &txns[i]) {
			continue
		}
		if assignmentEqual(&before, &txns[i]) {
			stats.Suggested++
		} else {
			stats.AutoApplied++
		}
		changed = append(changed, txns[i])
	}
	if len(changed) == 0 {
		return nil
	}
	if err := m.storage.SaveMatchResults(ctx, changed); err != nil {
		return fmt.Errorf("failed to save match results: %w", err)
	}
	return nil
}

// loadExact fetches the named transactions and rejects the request when any
// of them is missing, before anything has been written.
func (m *Matcher) loadExact(ctx context.Context, userID string, ids []string) ([]model.Transaction, error) {
	txns, err := m.storage.GetTransactionsByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(txns) != len(ids) {
		found := make(map[string]bool, len(txns))
		for i := range txns {
			found[txns[i].ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, common.NewUserError(fmt.Sprintf("transaction %q not found", id), common.ErrNotFound)
			}
		}
	}
	return txns, nil
}

// partnerProfiles loads the user's partners and the shared global partners in
// parallel and reduces them to scoring profiles.
func (m *Matcher) partnerProfiles(ctx context.Context, userID string) ([]*match.Profile, error) {
	var userPartners, globalPartners []model.Partner

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userPartners, err = m.storage.GetPartnersByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load user partners: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		globalPartners, err = m.storage.GetGlobalPartners(gctx)
		if err != nil {
			return fmt.Errorf("failed to load global partners: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles := make([]*match.Profile, 0, len(userPartners)+len(globalPartners))
	for i := range userPartners {
		profiles = append(profiles, match.PartnerProfile(&userPartners[i], m.own))
	}
	for i := range globalPartners {
		profiles = append(profiles, match.PartnerProfile(&globalPartners[i], m.own))
	}
	return profiles, nil
}

func assignmentEqual(a, b *model.Transaction) bool {
	return a.PartnerID == b.PartnerID &&
		a.PartnerType == b.PartnerType &&
		a.PartnerMatchConfidence == b.PartnerMatchConfidence &&
		a.PartnerMatchedBy == b.PartnerMatchedBy &&
		a.NoReceiptCategoryID == b.NoReceiptCategoryID
}

func matchStateEqual(a, b *model.Transaction) bool {
	return assignmentEqual(a, b) && slices.Equal(a.PartnerSuggestions, b.PartnerSuggestions)
}
