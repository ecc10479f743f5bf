package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/einvoice-hub/internal/lifecycle"
	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
	"github.com/rezonia/einvoice-hub/internal/store"
)

// stubAdapter scripts adapter behavior per test. It registers under the
// VNPT code so canonical requests validate unchanged.
type stubAdapter struct {
	caps       provider.CapabilitySet
	issueResp  *model.InvoiceResponse
	issueErr   error
	cancelResp *model.InvoiceResponse
	cancelErr  error
	status     model.InvoiceStatus
	statusErr  error
	issueCalls int
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{
		caps: provider.CapabilitySet{
			provider.CapIssue:    true,
			provider.CapCancel:   true,
			provider.CapReplace:  true,
			provider.CapStatus:   true,
			provider.CapDocument: true,
		},
	}
}

func (s *stubAdapter) Code() model.Provider { return model.ProviderVNPT }

func (s *stubAdapter) Capabilities() provider.CapabilitySet { return s.caps }

func (s *stubAdapter) Issue(ctx context.Context, req *model.InvoiceRequest, cfg *provider.Config) (*model.InvoiceResponse, error) {
	s.issueCalls++
	return s.issueResp, s.issueErr
}

func (s *stubAdapter) Replace(ctx context.Context, oldRef string, req *model.InvoiceRequest, cfg *provider.Config) (*model.InvoiceResponse, error) {
	s.issueCalls++
	return s.issueResp, s.issueErr
}

func (s *stubAdapter) Cancel(ctx context.Context, providerRef, reason string, cfg *provider.Config) (*model.InvoiceResponse, error) {
	return s.cancelResp, s.cancelErr
}

func (s *stubAdapter) GetStatus(ctx context.Context, providerRef string, cfg *provider.Config) (model.InvoiceStatus, error) {
	return s.status, s.statusErr
}

func (s *stubAdapter) FetchDocument(ctx context.Context, providerRef string, kind provider.DocumentKind, cfg *provider.Config) (*provider.Document, error) {
	return &provider.Document{Kind: kind, URL: "https://docs.example/" + providerRef}, nil
}

func (s *stubAdapter) Authenticate(ctx context.Context, cfg *provider.Config) (*token.Token, error) {
	return &token.Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubAdapter) Translator() *provider.StatusTranslator {
	return provider.NewStatusTranslator(model.ProviderVNPT, map[string]model.InvoiceStatus{
		"OK": model.StatusSuccess,
	})
}

type fixture struct {
	mem        *store.Memory
	adapter    *stubAdapter
	controller *lifecycle.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	adapter := newStubAdapter()
	registry, err := provider.NewRegistryWith(adapter)
	require.NoError(t, err)

	require.NoError(t, mem.PutProviderConfig(context.Background(), &provider.Config{
		MerchantID: "m1",
		Provider:   model.ProviderVNPT,
		Active:     true,
		REST:       &provider.RESTCredentials{BaseURL: "https://vnpt.example"},
	}))

	return &fixture{
		mem:        mem,
		adapter:    adapter,
		controller: lifecycle.NewController(mem, mem, mem, mem, registry),
	}
}

func submitRequest() *model.InvoiceRequest {
	req := &model.InvoiceRequest{
		ClientRequestID: "req-1",
		Provider:        model.ProviderVNPT,
		MerchantID:      "m1",
		Seller:          model.Party{Name: "ABC Company", TaxID: "0123456789"},
		Buyer:           model.Party{Name: "XYZ Corp", TaxID: "9876543210"},
		Items: []model.LineItem{
			{
				Name:      "Product A",
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(100000),
				VATRate:   decimal.NewFromInt(10),
			},
		},
		Currency:  "VND",
		IssueDate: time.Now().UTC(),
	}
	return req
}

// claimAndDispatch pulls the single due entry, claims it and runs one
// dispatch, mirroring what the scheduler does per attempt.
func (f *fixture) claimAndDispatch(t *testing.T) (*model.QueueEntry, error) {
	t.Helper()
	ctx := context.Background()
	due, err := f.mem.DueEntries(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := f.mem.ClaimEntry(ctx, due[0].ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	entry, err := f.mem.GetEntry(ctx, due[0].ID)
	require.NoError(t, err)
	return entry, f.controller.Dispatch(ctx, entry)
}

func (f *fixture) completeEntry(t *testing.T, entry *model.QueueEntry) {
	t.Helper()
	entry.Status = model.EntryCompleted
	require.NoError(t, f.mem.UpdateEntry(context.Background(), entry))
}

func TestController_SubmitQueuesDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, created, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.StatusPending, inv.Status)

	got, entries, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	require.Len(t, entries, 1)
	assert.Equal(t, model.OpSendToProvider, entries[0].Operation)
	assert.Equal(t, model.EntryPending, entries[0].Status)
}

func TestController_SubmitIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestController_SubmitRejectsInactiveConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mem.PutProviderConfig(ctx, &provider.Config{
		MerchantID: "m1",
		Provider:   model.ProviderVNPT,
		Active:     false,
	}))

	_, _, err := f.controller.Submit(ctx, submitRequest())
	require.Error(t, err)

	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestController_SubmitRejectsUnknownMerchant(t *testing.T) {
	f := newFixture(t)

	req := submitRequest()
	req.MerchantID = "m2"
	_, _, err := f.controller.Submit(context.Background(), req)
	require.Error(t, err)

	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestController_DispatchIssueSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{
		Outcome:         model.OutcomeSuccess,
		TransactionCode: "TX-1",
		InvoiceNumber:   "00000042",
	}

	var terminal []*model.Invoice
	f.controller.OnTerminal(func(inv *model.Invoice) { terminal = append(terminal, inv) })

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, err = f.claimAndDispatch(t)
	require.NoError(t, err)

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.True(t, got.Terminal)
	assert.Equal(t, "TX-1", got.ProviderRef)
	assert.Equal(t, 1, got.Attempts)

	require.Len(t, terminal, 1)
	assert.Equal(t, inv.ID, terminal[0].ID)

	txs, err := f.controller.Ledger(ctx, "m1", inv.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.OutcomeSuccess, txs[0].Outcome)
}

func TestController_DispatchAsyncThenPoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{
		Outcome:         model.OutcomePending,
		TransactionCode: "TX-2",
	}

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	entry, err := f.claimAndDispatch(t)
	require.NoError(t, err)

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSentToProvider, got.Status)
	assert.False(t, got.Terminal)

	// The scheduler completes the entry, then FollowUp queues the poll.
	f.completeEntry(t, entry)
	require.NoError(t, f.controller.FollowUp(ctx, entry))

	_, entries, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.OpSendToTaxAuthority, entries[1].Operation)

	// The poll finds the invoice issued.
	f.adapter.status = model.StatusSuccess
	_, err = f.claimAndDispatch(t)
	require.NoError(t, err)

	got, _, err = f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.True(t, got.Terminal)
}

func TestController_DispatchPollStillProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomePending, TransactionCode: "TX-3"}

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	entry, err := f.claimAndDispatch(t)
	require.NoError(t, err)
	f.completeEntry(t, entry)
	require.NoError(t, f.controller.FollowUp(ctx, entry))

	f.adapter.status = model.StatusSentToProvider
	_, err = f.claimAndDispatch(t)
	require.Error(t, err)
	assert.True(t, model.Retryable(err), "a pending poll must requeue")

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSentToProvider, got.Status)
}

func TestController_DispatchRetryableFailureLeavesInvoiceOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueErr = model.NewTransportError(model.ProviderVNPT, "issue", true, nil)
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeTimeout}

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, err = f.claimAndDispatch(t)
	require.Error(t, err)
	assert.True(t, model.Retryable(err))

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.False(t, got.Terminal, "retryable failures keep the invoice reopenable")

	// A later attempt reopens FAILED -> PENDING and succeeds.
	f.adapter.issueErr = nil
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess, TransactionCode: "TX-4"}

	entry, err := f.mem.GetEntry(ctx, mustOnlyEntry(t, f, inv.ID).ID)
	require.NoError(t, err)
	require.NoError(t, f.controller.Dispatch(ctx, entry))

	got, _, err = f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, 2, got.Attempts)
}

func mustOnlyEntry(t *testing.T, f *fixture, invoiceID uuid.UUID) *model.QueueEntry {
	t.Helper()
	entries, err := f.mem.EntriesByInvoice(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0]
}

func TestController_DispatchPermanentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueErr = model.NewProviderError(model.ProviderVNPT, "INVALID_TAX_CODE", "bad tax code", false)
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeFailed, Message: "bad tax code"}

	var terminal []*model.Invoice
	f.controller.OnTerminal(func(inv *model.Invoice) { terminal = append(terminal, inv) })

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, err = f.claimAndDispatch(t)
	require.Error(t, err)
	assert.False(t, model.Retryable(err))

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.True(t, got.Terminal)
	require.Len(t, terminal, 1)
}

func TestController_CancelIssuedInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess, TransactionCode: "TX-5"}

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	entry, err := f.claimAndDispatch(t)
	require.NoError(t, err)
	f.completeEntry(t, entry)

	require.NoError(t, f.controller.Cancel(ctx, "m1", inv.ID, "wrong buyer"))

	_, entries, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.OpCancel, entries[1].Operation)
	assert.Equal(t, "wrong buyer", entries[1].Reason)

	f.adapter.cancelResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess}
	_, err = f.claimAndDispatch(t)
	require.NoError(t, err)

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestController_CancelWithdrawsQueuedDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	require.NoError(t, f.controller.Cancel(ctx, "m1", inv.ID, ""))

	got, entries, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.True(t, got.Terminal)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntryCancelled, entries[0].Status)
	assert.Zero(t, f.adapter.issueCalls, "withdrawn work never reaches the provider")
}

func TestController_CancelInFlightIsDeferred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	entry := mustOnlyEntry(t, f, inv.ID)
	claimed, err := f.mem.ClaimEntry(ctx, entry.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, f.controller.Cancel(ctx, "m1", inv.ID, ""))

	got, err := f.mem.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.CancelRequested)
	assert.Equal(t, model.EntryProcessing, got.Status)
}

func TestController_CancelAwaitingConfirmationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomePending, TransactionCode: "TX-10"}

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	entry, err := f.claimAndDispatch(t)
	require.NoError(t, err)
	f.completeEntry(t, entry)
	require.NoError(t, f.controller.FollowUp(ctx, entry))

	// The provider holds the invoice and may still issue it; a withdrawal
	// now could contradict the eventual confirmation.
	err = f.controller.Cancel(ctx, "m1", inv.ID, "changed mind")
	require.Error(t, err)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.DomainInvalidTransition, derr.Code)

	got, entries, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSentToProvider, got.Status)
	assert.False(t, got.Terminal)
	require.Len(t, entries, 2)
	assert.Equal(t, model.OpSendToTaxAuthority, entries[1].Operation)
	assert.Equal(t, model.EntryPending, entries[1].Status)

	// The poll still resolves the invoice normally.
	f.adapter.status = model.StatusSuccess
	_, err = f.claimAndDispatch(t)
	require.NoError(t, err)

	got, _, err = f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
}

func TestController_CancelUnknownInvoice(t *testing.T) {
	f := newFixture(t)

	err := f.controller.Cancel(context.Background(), "m1", uuid.New(), "")
	require.Error(t, err)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.DomainNotFound, derr.Code)
}

func TestController_GetScopedToMerchant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, _, err = f.controller.Get(ctx, "other-merchant", inv.ID)
	require.Error(t, err)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.DomainNotFound, derr.Code)
}

func TestController_ReplaceIssuedInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess, TransactionCode: "TX-6"}

	old, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	entry, err := f.claimAndDispatch(t)
	require.NoError(t, err)
	f.completeEntry(t, entry)

	replacement := submitRequest()
	replacement.ClientRequestID = "req-2"
	newInv, err := f.controller.Replace(ctx, "m1", old.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, newInv.Status)
	require.NotNil(t, newInv.ReplacesID)
	assert.Equal(t, old.ID, *newInv.ReplacesID)

	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess, TransactionCode: "TX-7"}
	_, err = f.claimAndDispatch(t)
	require.NoError(t, err)

	gotOld, _, err := f.controller.Get(ctx, "m1", old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReplaced, gotOld.Status)
	require.NotNil(t, gotOld.ReplacedBy)
	assert.Equal(t, newInv.ID, *gotOld.ReplacedBy)

	gotNew, _, err := f.controller.Get(ctx, "m1", newInv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, gotNew.Status)
	assert.Equal(t, "TX-6", gotNew.Request.ReplacesRef)
}

func TestController_ReplaceRequiresIssuedOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	replacement := submitRequest()
	replacement.ClientRequestID = "req-2"
	_, err = f.controller.Replace(ctx, "m1", inv.ID, replacement)
	require.Error(t, err)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.DomainInvalidTransition, derr.Code)
}

func TestController_ReplaceUnsupportedCapability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess, TransactionCode: "TX-8"}

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	entry, err := f.claimAndDispatch(t)
	require.NoError(t, err)
	f.completeEntry(t, entry)

	delete(f.adapter.caps, provider.CapReplace)

	replacement := submitRequest()
	replacement.ClientRequestID = "req-2"
	_, err = f.controller.Replace(ctx, "m1", inv.ID, replacement)
	require.Error(t, err)

	var derr *model.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.DomainUnsupported, derr.Code)
}

func TestController_MarkExhaustedFinalizesInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	entry := mustOnlyEntry(t, f, inv.ID)

	require.NoError(t, f.controller.MarkExhausted(ctx, entry, "timeout after 5 attempts"))

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.True(t, got.Terminal)
	require.NotNil(t, got.Response)
	assert.Contains(t, got.Response.Message, "timeout")
}

func TestController_MarkRetryingMirrorsNextAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)
	entry := mustOnlyEntry(t, f, inv.ID)

	next := time.Now().UTC().Add(30 * time.Second)
	require.NoError(t, f.controller.MarkRetrying(ctx, entry, next))

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextRetryAt)
	assert.True(t, got.NextRetryAt.Equal(next))
}

func TestController_FetchDocumentRequiresIssuedInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, err = f.controller.FetchDocument(ctx, "m1", inv.ID, provider.DocumentPDF)
	require.Error(t, err)

	f.adapter.issueResp = &model.InvoiceResponse{Outcome: model.OutcomeSuccess, TransactionCode: "TX-9"}
	_, err = f.claimAndDispatch(t)
	require.NoError(t, err)

	doc, err := f.controller.FetchDocument(ctx, "m1", inv.ID, provider.DocumentPDF)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example/TX-9", doc.URL)
}

func TestController_FinalizeCopiesAttemptResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptResp := &model.InvoiceResponse{Outcome: model.OutcomeFailed, TransactionCode: "TX-11"}
	f.adapter.issueErr = model.NewProviderError(model.ProviderVNPT, "INVALID_TAX_CODE", "bad tax code", false)
	f.adapter.issueResp = attemptResp

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, err = f.claimAndDispatch(t)
	require.Error(t, err)

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Terminal)
	require.NotNil(t, got.Response)
	assert.Contains(t, got.Response.Message, "bad tax code")

	// The response the adapter produced stays as recorded on the ledger;
	// the closing message lands on the invoice's own copy.
	assert.Empty(t, attemptResp.Message)
}

func TestController_UnsupportedOutcomeIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.issueResp = model.UnsupportedResponse(model.ProviderVNPT, "issue")

	inv, _, err := f.controller.Submit(ctx, submitRequest())
	require.NoError(t, err)

	_, err = f.claimAndDispatch(t)
	require.Error(t, err)
	assert.False(t, model.Retryable(err))

	got, _, err := f.controller.Get(ctx, "m1", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.True(t, got.Terminal)
}
