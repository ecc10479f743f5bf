// Package store defines the persistence contracts the hub core depends on.
// The interfaces decouple the lifecycle controller and scheduler from any
// particular database; the hub ships an in-memory implementation and a real
// deployment plugs its own.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an insert would violate a uniqueness or
// exclusivity rule.
var ErrConflict = errors.New("store: conflict")

// InvoiceStore persists the invoice aggregate.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	// FindInvoiceByClientRequestID resolves the idempotency key scoped to
	// one merchant.
	FindInvoiceByClientRequestID(ctx context.Context, merchantID, clientRequestID string) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *model.Invoice) error
}

// QueueStore persists delivery queue entries. ClaimEntry is the
// linearization point for the at-most-one-PROCESSING-per-invoice rule.
type QueueStore interface {
	EnqueueEntry(ctx context.Context, entry *model.QueueEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
	// DueEntries returns PENDING/RETRYING entries whose next retry time has
	// elapsed, oldest first.
	DueEntries(ctx context.Context, now time.Time, limit int) ([]*model.QueueEntry, error)
	// ClaimEntry atomically moves an entry from PENDING or RETRYING to
	// PROCESSING. It reports false when the entry was already claimed,
	// became terminal, or another entry of the same invoice is in flight.
	ClaimEntry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	UpdateEntry(ctx context.Context, entry *model.QueueEntry) error
	EntriesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.QueueEntry, error)
}

// LedgerStore is the append-only provider transaction ledger.
type LedgerStore interface {
	AppendTransaction(ctx context.Context, tx *model.ProviderTransaction) error
	TransactionsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.ProviderTransaction, error)
}

// ProviderConfigStore resolves per-(merchant, provider) credentials. Owned
// by the configuration collaborator; read-only to the integration core.
type ProviderConfigStore interface {
	GetProviderConfig(ctx context.Context, merchantID string, p model.Provider) (*provider.Config, error)
	PutProviderConfig(ctx context.Context, cfg *provider.Config) error
}
