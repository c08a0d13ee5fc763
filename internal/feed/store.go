package feed

import (
	"context"
	"log/slog"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// Store decorates a Storage so committed writes surface on a Bus. Wrap the
// store handed to ingestion surfaces; internal consumers (engine, learn)
// keep the bare storage so reactive handlers cannot feed themselves.
type Store struct {
	service.Storage
	bus    *Bus
	logger *slog.Logger
}

var _ service.Storage = (*Store)(nil)

// WrapStorage wraps a storage with feed publication.
func WrapStorage(storage service.Storage, bus *Bus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Storage: storage, bus: bus, logger: logger}
}

// SaveTransactions writes the rows and announces them as created. An upsert
// that touches existing rows reuses the created kind; the rematch reaction
// is the same either way.
func (s *Store) SaveTransactions(ctx context.Context, txns []model.Transaction) error {
	if err := s.Storage.SaveTransactions(ctx, txns); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionTransactions, Kind: KindCreated, After: txns})
	return nil
}

// SaveMatchResults writes match state and announces an update with prior row
// state attached, so confirmation handlers can tell new confirmations from
// rewrites of old ones.
func (s *Store) SaveMatchResults(ctx context.Context, txns []model.Transaction) error {
	before := s.loadPrior(ctx, txns)
	if err := s.Storage.SaveMatchResults(ctx, txns); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionTransactions, Kind: KindUpdated, Before: before, After: txns})
	return nil
}

// SavePartner writes the record and announces it. A record without an ID is
// about to be created; everything else counts as an update.
func (s *Store) SavePartner(ctx context.Context, partner *model.Partner) error {
	kind := KindUpdated
	if partner.ID == "" {
		kind = KindCreated
	}
	if err := s.Storage.SavePartner(ctx, partner); err != nil {
		return err
	}
	s.publish(ctx, Event{Collection: CollectionPartners, Kind: kind, Partner: partner})
	return nil
}

func (s *Store) loadPrior(ctx context.Context, txns []model.Transaction) []model.Transaction {
	if len(txns) == 0 {
		return nil
	}
	ids := make([]string, len(txns))
	for i := range txns {
		ids[i] = txns[i].ID
	}
	before, err := s.Storage.GetTransactionsByIDs(ctx, txns[0].UserID, ids)
	if err != nil {
		s.logger.Warn("could not load prior row state for feed event", "error", err)
		return nil
	}
	return before
}

// publish delivers the event. Handler failures are logged, never returned:
// the write already committed, and reactive work self-heals on the next
// trigger.
func (s *Store) publish(ctx context.Context, event Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("feed handler failed",
			"collection", string(event.Collection),
			"kind", string(event.Kind),
			"error", err)
	}
}
