// Package feed is the in-process change feed that ties committed store
// writes to their follow-up work: new rows get rematched, a user-confirmed
// assignment enqueues pattern learning, a partner edit backfills unassigned
// rows. Handlers run synchronously on the publishing goroutine and must be
// idempotent, since writers may over-publish.
package feed

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/kontoworks/konto/internal/model"
)

// Collection names the store collection an event belongs to.
type Collection string

const (
	// CollectionTransactions carries bank row and match state writes.
	CollectionTransactions Collection = "transactions"
	// CollectionPartners carries partner record writes.
	CollectionPartners Collection = "partners"
)

// Kind distinguishes fresh rows from state changes on existing ones.
type Kind string

const (
	// KindCreated announces rows written by ingestion.
	KindCreated Kind = "created"
	// KindUpdated announces match state changes on existing rows.
	KindUpdated Kind = "updated"
)

// Event describes one committed write. Transaction events carry row slices;
// Before holds prior row state for updated events when the writer had it,
// keyed by position-independent transaction ID. Partner events carry the
// written record.
type Event struct {
	Collection Collection
	Kind       Kind
	Before     []model.Transaction
	After      []model.Transaction
	Partner    *model.Partner
}

// Handler consumes one event.
type Handler func(ctx context.Context, event Event) error

// Bus fans events out to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Collection][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Collection][]Handler)}
}

// Subscribe registers a handler for one collection. Subscription order is
// delivery order.
func (b *Bus) Subscribe(collection Collection, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[collection] = append(b.handlers[collection], handler)
}

// Publish delivers the event to every subscriber of its collection on the
// calling goroutine. All handlers run even when earlier ones fail; their
// errors are joined.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := slices.Clone(b.handlers[event.Collection])
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
