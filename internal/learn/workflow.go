// Package learn derives wildcard text patterns for partners from the user's
// confirmed assignments. A completion oracle proposes candidates from
// positive and negative examples; a deterministic safety filter and a
// full-corpus dry run decide what is trusted; a cascade pass revokes auto
// assignments the new patterns no longer support.
package learn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/notify"
	"github.com/kontoworks/konto/internal/oracle"
	"github.com/kontoworks/konto/internal/service"
)

// Defaults for Options.
const (
	DefaultCollisionSamples = 30
	DefaultRemovalSamples   = 20
	DefaultScanCap          = 10000
	DefaultAutoThreshold    = 89
)

// Options tunes the learning pipeline. The zero value applies every default.
type Options struct {
	// Verify enables the second oracle round that reviews dry-run results.
	// Without it, suspicious patterns are dropped outright.
	Verify bool
	// ScanCap bounds the dry-run corpus scan.
	ScanCap int
	// CollisionSamples caps how many other-partner transactions feed the
	// prompt as negative examples.
	CollisionSamples int
	// RemovalSamples caps how many manual removals feed the prompt. The
	// safety filter always checks the full removal list.
	RemovalSamples int
	// AutoThreshold is the confidence at which patterns auto-apply.
	AutoThreshold int
}

func (o Options) withDefaults() Options {
	if o.ScanCap <= 0 {
		o.ScanCap = DefaultScanCap
	}
	if o.CollisionSamples <= 0 {
		o.CollisionSamples = DefaultCollisionSamples
	}
	if o.RemovalSamples <= 0 {
		o.RemovalSamples = DefaultRemovalSamples
	}
	if o.AutoThreshold <= 0 {
		o.AutoThreshold = DefaultAutoThreshold
	}
	return o
}

// Workflow runs the learning pipeline for one partner at a time.
type Workflow struct {
	storage  service.Storage
	oracle   oracle.Client
	notifier service.Notifier
	prompts  *Prompts
	safety   *SafetyFilter
	verifier *Verifier
	cascade  *Cascade
	logger   *slog.Logger
	opts     Options
}

// NewWorkflow wires the learning pipeline. A nil notifier falls back to the
// logging notifier.
func NewWorkflow(storage service.Storage, client oracle.Client, notifier service.Notifier, opts Options, logger *slog.Logger) (*Workflow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	opts = opts.withDefaults()

	prompts, err := NewPrompts()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	return &Workflow{
		storage:  storage,
		oracle:   client,
		notifier: notifier,
		prompts:  prompts,
		safety:   NewSafetyFilter(logger),
		verifier: NewVerifier(storage, opts.ScanCap, logger),
		cascade:  NewCascade(storage, opts.AutoThreshold, logger),
		logger:   logger,
		opts:     opts,
	}, nil
}

// LearnPartnerPatterns runs the full pipeline for one partner: gather
// evidence, propose patterns, screen them, verify them against the corpus,
// persist the survivors and cascade the consequences. triggerID optionally
// names the assignment that prompted the request; it is folded into the
// positive set when the confirmed-transaction query does not return it yet.
//
// An empty positive set clears the partner's patterns and revokes its auto
// assignments. Unusable oracle output degrades to zero candidates, and a run
// with zero surviving candidates leaves the stored pattern set untouched.
func (w *Workflow) LearnPartnerPatterns(ctx context.Context, userID, partnerID, triggerID string) (service.LearnStats, error) {
	var stats service.LearnStats

	if userID == "" {
		return stats, common.NewUserError("user id is required", nil)
	}
	if partnerID == "" {
		return stats, common.NewUserError("partner id is required", nil)
	}

	partner, err := w.loadPartner(ctx, userID, partnerID)
	if err != nil {
		return stats, err
	}

	positive, err := w.storage.GetConfirmedTransactions(ctx, userID, partnerID)
	if err != nil {
		return stats, fmt.Errorf("failed to load confirmed transactions: %w", err)
	}
	positive = w.foldTrigger(ctx, positive, userID, partnerID, triggerID)
	stats.PartnersProcessed = 1

	if len(positive) == 0 {
		unassigned, err := w.clearPatterns(ctx, partner)
		if err != nil {
			return stats, err
		}
		stats.Unassigned = unassigned
		return stats, nil
	}

	collisions, removals, err := w.gatherNegatives(ctx, partner)
	if err != nil {
		return stats, err
	}

	candidates, err := w.propose(ctx, partner, positive, collisions, removals)
	if err != nil {
		return stats, err
	}
	stats.PatternsProposed = len(candidates)
	if len(candidates) == 0 {
		w.logger.Warn("oracle proposed no patterns, keeping existing set", "partner_id", partner.ID)
		return stats, nil
	}

	kept := w.safety.Screen(candidates, partner.ManualRemovals, collisions)
	if len(kept) == 0 {
		w.logger.Warn("no proposed pattern survived screening, keeping existing set", "partner_id", partner.ID)
		return stats, nil
	}

	reports, err := w.verifier.DryRun(ctx, userID, partner.ID, kept)
	if err != nil {
		return stats, err
	}

	final := w.reviewReports(ctx, partner, reports)
	if len(final) == 0 {
		w.logger.Warn("no pattern survived verification, keeping existing set", "partner_id", partner.ID)
		return stats, nil
	}

	patterns := toLearnedPatterns(final)
	if err := w.storage.ReplacePartnerPatterns(ctx, partner.ID, patterns); err != nil {
		return stats, fmt.Errorf("failed to persist patterns: %w", err)
	}
	stats.PatternsKept = len(patterns)

	unassigned, err := w.cascade.Unassign(ctx, userID, partner.ID, patterns)
	if err != nil {
		// Assignments stay as they are; the next pattern change retries.
		w.logger.Warn("cascade failed after pattern change", "partner_id", partner.ID, "error", err)
	}
	stats.Unassigned = unassigned

	if err := w.notifier.PatternsLearned(ctx, partner, len(patterns)); err != nil {
		w.logger.Warn("failed to deliver learning notice", "partner_id", partner.ID, "error", err)
	}

	w.logger.Info("learned partner patterns",
		"partner_id", partner.ID,
		"proposed", stats.PatternsProposed,
		"kept", stats.PatternsKept,
		"unassigned", stats.Unassigned)
	return stats, nil
}

func (w *Workflow) loadPartner(ctx context.Context, userID, partnerID string) (*model.Partner, error) {
	partner, err := w.storage.GetPartner(ctx, partnerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewUserError(fmt.Sprintf("partner %s not found", partnerID), err)
		}
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	if partner.Type == model.PartnerTypeUser && partner.UserID != userID {
		return nil, common.NewUserError(fmt.Sprintf("partner %s not found", partnerID), common.ErrNotFound)
	}
	if partner.Type == model.PartnerTypeGlobal {
		return nil, common.NewUserError("patterns are learned on user partners; localize the shared partner first", nil)
	}
	if !partner.IsActive {
		return nil, common.NewUserError(fmt.Sprintf("partner %s is deactivated", partnerID), nil)
	}
	return partner, nil
}

// foldTrigger appends the triggering transaction when its confirmation is not
// yet reflected in the positive set.
func (w *Workflow) foldTrigger(ctx context.Context, positive []model.Transaction, userID, partnerID, triggerID string) []model.Transaction {
	if triggerID == "" {
		return positive
	}
	for i := range positive {
		if positive[i].ID == triggerID {
			return positive
		}
	}

	txn, err := w.storage.GetTransaction(ctx, triggerID)
	if err != nil {
		w.logger.Debug("trigger transaction not loaded", "transaction_id", triggerID, "error", err)
		return positive
	}
	if txn.UserID != userID || txn.PartnerID != partnerID || !txn.UserConfirmed() {
		return positive
	}
	return append(positive, *txn)
}

// clearPatterns is the response to an empty positive set: the last confirmed
// assignment was undone, so the partner must stop matching anything it
// learned before.
func (w *Workflow) clearPatterns(ctx context.Context, partner *model.Partner) (int, error) {
	if err := w.storage.ReplacePartnerPatterns(ctx, partner.ID, nil); err != nil {
		return 0, fmt.Errorf("failed to clear patterns: %w", err)
	}

	unassigned, err := w.cascade.Unassign(ctx, partner.UserID, partner.ID, nil)
	if err != nil {
		w.logger.Warn("cascade failed after clearing patterns", "partner_id", partner.ID, "error", err)
		return 0, nil
	}
	if unassigned > 0 {
		if err := w.notifier.PatternsCleared(ctx, partner, unassigned); err != nil {
			w.logger.Warn("failed to deliver clearing notice", "partner_id", partner.ID, "error", err)
		}
	}

	w.logger.Info("cleared learned patterns", "partner_id", partner.ID, "unassigned", unassigned)
	return unassigned, nil
}

// gatherNegatives loads the collision samples and caps the removal list for
// the prompt. Collisions exclude the partner itself and every counterpart
// that describes the same entity.
func (w *Workflow) gatherNegatives(ctx context.Context, partner *model.Partner) ([]model.Transaction, []model.ManualRemoval, error) {
	exclude := []string{partner.ID}
	if partner.GlobalPartnerID != "" {
		exclude = append(exclude, partner.GlobalPartnerID)
	}
	siblings, err := w.storage.GetPartnersByUser(ctx, partner.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load partners: %w", err)
	}
	for i := range siblings {
		if siblings[i].ID != partner.ID && partner.IsCounterpartOf(&siblings[i]) {
			exclude = append(exclude, siblings[i].ID)
		}
	}

	collisions, err := w.storage.GetCollisionSamples(ctx, partner.UserID, exclude, w.opts.CollisionSamples)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load collision samples: %w", err)
	}

	removals := partner.ManualRemovals
	if len(removals) > w.opts.RemovalSamples {
		removals = removals[len(removals)-w.opts.RemovalSamples:]
	}
	return collisions, removals, nil
}

// propose asks the oracle for candidate patterns. Empty or unusable output
// yields zero candidates; only transport failures surface as errors.
func (w *Workflow) propose(ctx context.Context, partner *model.Partner, positive, collisions []model.Transaction, removals []model.ManualRemoval) ([]Candidate, error) {
	prompt, err := w.prompts.Propose(partner, positive, collisions, removals)
	if err != nil {
		return nil, fmt.Errorf("failed to build proposal prompt: %w", err)
	}

	raw, err := w.oracle.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, common.ErrEmptyResponse) {
			w.logger.Warn("oracle returned nothing usable", "partner_id", partner.ID, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("oracle completion failed: %w", err)
	}
	return parseCandidates(raw), nil
}

// reviewReports applies the second oracle round when enabled. When it is
// disabled or fails, suspicious patterns are dropped deterministically
// instead.
func (w *Workflow) reviewReports(ctx context.Context, partner *model.Partner, reports []Report) []Candidate {
	if !w.opts.Verify {
		return dropSuspicious(reports, w.logger)
	}

	prompt, err := w.prompts.Review(partner, reports)
	if err != nil {
		w.logger.Warn("failed to build review prompt, dropping suspicious patterns", "partner_id", partner.ID, "error", err)
		return dropSuspicious(reports, w.logger)
	}

	raw, err := w.oracle.Complete(ctx, prompt)
	if err != nil {
		w.logger.Warn("review round failed, dropping suspicious patterns", "partner_id", partner.ID, "error", err)
		return dropSuspicious(reports, w.logger)
	}
	return applyVerdicts(reports, parseVerdicts(raw), w.logger)
}

func toLearnedPatterns(candidates []Candidate) []model.LearnedPattern {
	now := time.Now().UTC()
	out := make([]model.LearnedPattern, len(candidates))
	for i, c := range candidates {
		out[i] = model.LearnedPattern{
			Pattern:              c.Pattern,
			Confidence:           c.Confidence,
			CreatedAt:            now,
			SourceTransactionIDs: c.SourceTransactionIDs,
		}
	}
	return out
}
