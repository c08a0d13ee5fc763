// Package notify reports learning outcomes to the user. Real delivery
// channels sit behind service.Notifier; the default implementation writes
// notices to the structured log.
package notify

import (
	"context"
	"log/slog"

	"github.com/kontoworks/konto/internal/model"
)

// LogNotifier writes notices to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// PatternsLearned reports that a partner's pattern set was refreshed.
func (n *LogNotifier) PatternsLearned(_ context.Context, partner *model.Partner, added int) error {
	n.logger.Info("partner patterns refreshed",
		"partner_id", partner.ID,
		"partner", partner.Name,
		"patterns", added)
	return nil
}

// PatternsCleared reports that a partner's patterns were removed and its auto
// assignments revoked.
func (n *LogNotifier) PatternsCleared(_ context.Context, partner *model.Partner, unassigned int) error {
	n.logger.Info("partner patterns cleared",
		"partner_id", partner.ID,
		"partner", partner.Name,
		"unassigned", unassigned)
	return nil
}
