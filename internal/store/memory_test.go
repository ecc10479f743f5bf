package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider"
	"github.com/rezonia/einvoice-hub/internal/store"
)

func newInvoice(merchantID, clientRequestID string) *model.Invoice {
	now := time.Now().UTC()
	return &model.Invoice{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Provider:   model.ProviderVNPT,
		Status:     model.StatusPending,
		Request: &model.InvoiceRequest{
			ClientRequestID: clientRequestID,
			MerchantID:      merchantID,
			Provider:        model.ProviderVNPT,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newEntry(invoiceID uuid.UUID, op model.QueueOperation) *model.QueueEntry {
	now := time.Now().UTC()
	return &model.QueueEntry{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		Operation:   op,
		Status:      model.EntryPending,
		MaxAttempts: 5,
		NextRetryAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemory_InvoiceRoundTrip(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	inv := newInvoice("m1", "req-1")
	require.NoError(t, mem.CreateInvoice(ctx, inv))

	got, err := mem.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	// The store hands out copies, not shared pointers.
	got.Status = model.StatusFailed
	again, err := mem.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again.Status)
}

func TestMemory_IdempotencyKeyUniquePerMerchant(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateInvoice(ctx, newInvoice("m1", "req-1")))

	err := mem.CreateInvoice(ctx, newInvoice("m1", "req-1"))
	assert.ErrorIs(t, err, store.ErrConflict)

	// Same key under a different merchant is a different invoice.
	require.NoError(t, mem.CreateInvoice(ctx, newInvoice("m2", "req-1")))

	found, err := mem.FindInvoiceByClientRequestID(ctx, "m1", "req-1")
	require.NoError(t, err)
	assert.Equal(t, "m1", found.MerchantID)

	_, err = mem.FindInvoiceByClientRequestID(ctx, "m3", "req-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_SecondLiveEntryRejected(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	invoiceID := uuid.New()

	first := newEntry(invoiceID, model.OpSendToProvider)
	require.NoError(t, mem.EnqueueEntry(ctx, first))

	err := mem.EnqueueEntry(ctx, newEntry(invoiceID, model.OpSendToTaxAuthority))
	assert.ErrorIs(t, err, store.ErrConflict)

	// Once the first entry is terminal, new work may be queued.
	first.Status = model.EntryCompleted
	require.NoError(t, mem.UpdateEntry(ctx, first))
	require.NoError(t, mem.EnqueueEntry(ctx, newEntry(invoiceID, model.OpSendToTaxAuthority)))
}

func TestMemory_ClaimEntry(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	entry := newEntry(uuid.New(), model.OpSendToProvider)
	require.NoError(t, mem.EnqueueEntry(ctx, entry))

	claimed, err := mem.ClaimEntry(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim on the same entry loses.
	claimed, err = mem.ClaimEntry(ctx, entry.ID, now)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := mem.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryProcessing, got.Status)
	require.NotNil(t, got.LastAttemptAt)
}

func TestMemory_ClaimEntryExactlyOnceUnderContention(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	entry := newEntry(uuid.New(), model.OpSendToProvider)
	require.NoError(t, mem.EnqueueEntry(ctx, entry))

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := mem.ClaimEntry(ctx, entry.ID, now)
			assert.NoError(t, err)
			wins <- claimed
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestMemory_DueEntries(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	past := newEntry(uuid.New(), model.OpSendToProvider)
	past.NextRetryAt = now.Add(-time.Minute)
	require.NoError(t, mem.EnqueueEntry(ctx, past))

	future := newEntry(uuid.New(), model.OpSendToProvider)
	future.NextRetryAt = now.Add(time.Minute)
	require.NoError(t, mem.EnqueueEntry(ctx, future))

	done := newEntry(uuid.New(), model.OpSendToProvider)
	done.Status = model.EntryCompleted
	require.NoError(t, mem.EnqueueEntry(ctx, done))

	due, err := mem.DueEntries(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, past.ID, due[0].ID)
}

func TestMemory_UpdateEntryPreservesRacedCancel(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	entry := newEntry(uuid.New(), model.OpSendToProvider)
	require.NoError(t, mem.EnqueueEntry(ctx, entry))

	// A cancel request lands while a worker holds its stale copy.
	flagged, err := mem.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	flagged.CancelRequested = true
	require.NoError(t, mem.UpdateEntry(ctx, flagged))

	stale := *entry
	stale.Status = model.EntryRetrying
	require.NoError(t, mem.UpdateEntry(ctx, &stale))

	got, err := mem.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryRetrying, got.Status)
	assert.True(t, got.CancelRequested)
}

func TestMemory_LedgerAppendOnly(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	invoiceID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, mem.AppendTransaction(ctx, &model.ProviderTransaction{
			ID:        uuid.New(),
			InvoiceID: invoiceID,
			Provider:  model.ProviderVNPT,
			Operation: model.OpSendToProvider,
			Outcome:   model.OutcomeFailed,
			CreatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, mem.AppendTransaction(ctx, &model.ProviderTransaction{
		ID:        uuid.New(),
		InvoiceID: uuid.New(),
		Provider:  model.ProviderVNPT,
	}))

	txs, err := mem.TransactionsByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestMemory_ProviderConfig(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.GetProviderConfig(ctx, "m1", model.ProviderVNPT)
	assert.ErrorIs(t, err, store.ErrNotFound)

	cfg := &provider.Config{
		MerchantID: "m1",
		Provider:   model.ProviderVNPT,
		Active:     true,
		REST:       &provider.RESTCredentials{BaseURL: "https://vnpt.example"},
	}
	require.NoError(t, mem.PutProviderConfig(ctx, cfg))

	got, err := mem.GetProviderConfig(ctx, "m1", model.ProviderVNPT)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, "https://vnpt.example", got.REST.BaseURL)
}
