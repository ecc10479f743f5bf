package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider"
)

// Memory is an in-memory implementation of all store interfaces, used for
// tests and single-node deployments. All methods return copies so callers
// never share mutable state with the store.
type Memory struct {
	mu           sync.RWMutex
	invoices     map[uuid.UUID]*model.Invoice
	byRequestKey map[string]uuid.UUID
	entries      map[uuid.UUID]*model.QueueEntry
	transactions []*model.ProviderTransaction
	configs      map[string]*provider.Config
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		invoices:     make(map[uuid.UUID]*model.Invoice),
		byRequestKey: make(map[string]uuid.UUID),
		entries:      make(map[uuid.UUID]*model.QueueEntry),
		configs:      make(map[string]*provider.Config),
	}
}

func requestKey(merchantID, clientRequestID string) string {
	return merchantID + "/" + clientRequestID
}

// CreateInvoice inserts a new invoice, enforcing idempotency-key uniqueness
// per merchant.
func (m *Memory) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := requestKey(inv.MerchantID, inv.Request.ClientRequestID)
	if _, exists := m.byRequestKey[key]; exists {
		return ErrConflict
	}
	if _, exists := m.invoices[inv.ID]; exists {
		return ErrConflict
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	m.byRequestKey[key] = inv.ID
	return nil
}

// GetInvoice returns a copy of the invoice.
func (m *Memory) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok || inv.Deleted {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

// FindInvoiceByClientRequestID resolves the idempotency key for a merchant.
func (m *Memory) FindInvoiceByClientRequestID(ctx context.Context, merchantID, clientRequestID string) (*model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byRequestKey[requestKey(merchantID, clientRequestID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.invoices[id]
	return &cp, nil
}

// UpdateInvoice overwrites the stored invoice.
func (m *Memory) UpdateInvoice(ctx context.Context, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	cp := *inv
	cp.UpdatedAt = time.Now().UTC()
	m.invoices[inv.ID] = &cp
	return nil
}

// EnqueueEntry inserts a queue entry, rejecting a second live entry for the
// same invoice.
func (m *Memory) EnqueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.InvoiceID == entry.InvoiceID && !e.Status.IsTerminal() {
			return ErrConflict
		}
	}
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

// GetEntry returns a copy of the entry.
func (m *Memory) GetEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

// DueEntries lists claimable entries whose retry time has elapsed.
func (m *Memory) DueEntries(ctx context.Context, now time.Time, limit int) ([]*model.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*model.QueueEntry
	for _, e := range m.entries {
		if (e.Status == model.EntryPending || e.Status == model.EntryRetrying) && !e.NextRetryAt.After(now) {
			cp := *e
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRetryAt.Before(due[j].NextRetryAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ClaimEntry is the compare-and-set PENDING|RETRYING -> PROCESSING step.
// The whole check-and-write runs under one lock, so two workers can never
// both observe the claim succeed.
func (m *Memory) ClaimEntry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if entry.Status != model.EntryPending && entry.Status != model.EntryRetrying {
		return false, nil
	}
	for _, e := range m.entries {
		if e.InvoiceID == entry.InvoiceID && e.Status == model.EntryProcessing {
			return false, nil
		}
	}
	entry.Status = model.EntryProcessing
	attemptAt := now
	entry.LastAttemptAt = &attemptAt
	entry.UpdatedAt = now
	return true, nil
}

// UpdateEntry overwrites the stored entry, preserving a cancel request that
// raced in while the entry was being processed.
func (m *Memory) UpdateEntry(ctx context.Context, entry *model.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[entry.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *entry
	if current.CancelRequested {
		cp.CancelRequested = true
	}
	cp.UpdatedAt = time.Now().UTC()
	m.entries[entry.ID] = &cp
	return nil
}

// EntriesByInvoice lists entries for one invoice, oldest first.
func (m *Memory) EntriesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.QueueEntry
	for _, e := range m.entries {
		if e.InvoiceID == invoiceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AppendTransaction appends one ledger row. Rows are never mutated.
func (m *Memory) AppendTransaction(ctx context.Context, tx *model.ProviderTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tx
	m.transactions = append(m.transactions, &cp)
	return nil
}

// TransactionsByInvoice lists ledger rows for one invoice in append order.
func (m *Memory) TransactionsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.ProviderTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.ProviderTransaction
	for _, tx := range m.transactions {
		if tx.InvoiceID == invoiceID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func configKey(merchantID string, p model.Provider) string {
	return merchantID + "/" + string(p)
}

// GetProviderConfig resolves credentials for a (merchant, provider) pair.
func (m *Memory) GetProviderConfig(ctx context.Context, merchantID string, p model.Provider) (*provider.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[configKey(merchantID, p)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

// PutProviderConfig stores credentials for a (merchant, provider) pair.
func (m *Memory) PutProviderConfig(ctx context.Context, cfg *provider.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *cfg
	m.configs[configKey(cfg.MerchantID, cfg.Provider)] = &cp
	return nil
}
