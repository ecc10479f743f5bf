// Package lifecycle owns the canonical invoice state machine. The
// controller is the only writer of InvoiceStatus; it orchestrates single
// issuance/cancel/replace attempts against a provider adapter and records
// one ledger transaction per attempt.
package lifecycle

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider"
	"github.com/rezonia/einvoice-hub/internal/store"
)

const (
	defaultMaxAttempts     = 5
	defaultPollMaxAttempts = 20
)

// TerminalFunc is notified when an invoice reaches a terminal state.
type TerminalFunc func(inv *model.Invoice)

// Controller orchestrates the invoice lifecycle.
type Controller struct {
	invoices store.InvoiceStore
	queue    store.QueueStore
	ledger   store.LedgerStore
	configs  store.ProviderConfigStore
	registry *provider.Registry
	clock    clockwork.Clock

	maxAttempts     int
	pollMaxAttempts int

	mu         sync.Mutex
	onTerminal []TerminalFunc
}

// Option configures the controller.
type Option func(*Controller)

// WithMaxAttempts sets the delivery attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) { c.maxAttempts = n }
}

// WithPollMaxAttempts sets the status-poll attempt ceiling for providers
// with asynchronous confirmation.
func WithPollMaxAttempts(n int) Option {
	return func(c *Controller) { c.pollMaxAttempts = n }
}

// WithClock injects the clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// NewController creates a lifecycle controller.
func NewController(invoices store.InvoiceStore, queue store.QueueStore, ledger store.LedgerStore, configs store.ProviderConfigStore, registry *provider.Registry, opts ...Option) *Controller {
	c := &Controller{
		invoices:        invoices,
		queue:           queue,
		ledger:          ledger,
		configs:         configs,
		registry:        registry,
		clock:           clockwork.NewRealClock(),
		maxAttempts:     defaultMaxAttempts,
		pollMaxAttempts: defaultPollMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnTerminal registers a callback fired when an invoice reaches a terminal
// state. Callbacks run synchronously on the dispatching goroutine.
func (c *Controller) OnTerminal(fn TerminalFunc) {
	c.mu.Lock()
	c.onTerminal = append(c.onTerminal, fn)
	c.mu.Unlock()
}

func (c *Controller) notifyTerminal(inv *model.Invoice) {
	c.mu.Lock()
	callbacks := make([]TerminalFunc, len(c.onTerminal))
	copy(callbacks, c.onTerminal)
	c.mu.Unlock()
	for _, fn := range callbacks {
		fn(inv)
	}
}

// Submit validates and accepts an issuance request. Submission is
// idempotent: a repeated (merchant, clientRequestId) returns the existing
// invoice unchanged, with created=false.
func (c *Controller) Submit(ctx context.Context, req *model.InvoiceRequest) (*model.Invoice, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if existing, err := c.invoices.FindInvoiceByClientRequestID(ctx, req.MerchantID, req.ClientRequestID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if err := c.checkProviderConfig(ctx, req.MerchantID, req.Provider); err != nil {
		return nil, false, err
	}

	fillDerivedAmounts(req)

	inv, err := c.createInvoice(ctx, req, nil)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Two concurrent submissions with the same key: the loser
			// returns the winner's invoice.
			if existing, ferr := c.invoices.FindInvoiceByClientRequestID(ctx, req.MerchantID, req.ClientRequestID); ferr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	if err := c.enqueue(ctx, inv.ID, model.OpSendToProvider, "", c.maxAttempts); err != nil {
		return nil, false, err
	}
	return inv, true, nil
}

// Get returns an invoice scoped to its owning merchant, with its queue
// entries for attempt reporting.
func (c *Controller) Get(ctx context.Context, merchantID string, id uuid.UUID) (*model.Invoice, []*model.QueueEntry, error) {
	inv, err := c.invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, nil, model.NewDomainError(model.DomainNotFound, "invoice "+id.String()+" not found")
	}
	if inv.MerchantID != merchantID {
		return nil, nil, model.NewDomainError(model.DomainNotFound, "invoice "+id.String()+" not found")
	}
	entries, err := c.queue.EntriesByInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inv, entries, nil
}

// Ledger returns the append-only attempt history for an invoice.
func (c *Controller) Ledger(ctx context.Context, merchantID string, id uuid.UUID) ([]*model.ProviderTransaction, error) {
	if _, _, err := c.Get(ctx, merchantID, id); err != nil {
		return nil, err
	}
	return c.ledger.TransactionsByInvoice(ctx, id)
}

// Cancel requests cancellation. For an issued invoice this queues a
// provider cancel; for queued work it withdraws the entry, deferring when
// an attempt is already in flight. An invoice the provider is still
// confirming cannot be withdrawn: it may legally issue, so the merchant
// waits for the poll to resolve and then cancels provider-side.
func (c *Controller) Cancel(ctx context.Context, merchantID string, id uuid.UUID, reason string) error {
	inv, entries, err := c.Get(ctx, merchantID, id)
	if err != nil {
		return err
	}

	switch inv.Status {
	case model.StatusSuccess:
		adapter, rerr := c.registry.Resolve(inv.Provider)
		if rerr != nil {
			return rerr
		}
		if !adapter.Capabilities().Has(provider.CapCancel) {
			return model.NewDomainError(model.DomainUnsupported,
				"provider "+string(inv.Provider)+" does not offer cancellation")
		}
		return c.enqueue(ctx, inv.ID, model.OpCancel, reason, c.maxAttempts)

	case model.StatusSentToProvider:
		return model.NewDomainError(model.DomainInvalidTransition,
			"invoice is awaiting provider confirmation and can no longer be withdrawn")

	case model.StatusPending, model.StatusSigning, model.StatusFailed:
		if inv.Terminal {
			return model.NewDomainError(model.DomainInvalidTransition,
				"cannot cancel invoice in terminal state "+string(inv.Status))
		}
		return c.withdraw(ctx, inv, entries)

	default:
		return model.NewDomainError(model.DomainInvalidTransition,
			"cannot cancel invoice in state "+string(inv.Status))
	}
}

// withdraw removes queued work for an invoice that has not been issued.
// An entry that is PROCESSING may already be irreversibly submitted, so the
// cancel is flagged and applied when the in-flight attempt completes.
func (c *Controller) withdraw(ctx context.Context, inv *model.Invoice, entries []*model.QueueEntry) error {
	for _, entry := range entries {
		if entry.Status.IsTerminal() {
			continue
		}
		if entry.Status == model.EntryProcessing {
			entry.CancelRequested = true
			return c.queue.UpdateEntry(ctx, entry)
		}
		entry.Status = model.EntryCancelled
		if err := c.queue.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		return c.failInvoice(ctx, inv, "withdrawn by merchant before delivery")
	}
	return model.NewDomainError(model.DomainNotFound, "no pending delivery for invoice "+inv.ID.String())
}

// Replace supersedes an issued invoice with a corrected one. The old
// invoice moves to REPLACED once the provider accepts the replacement; the
// new invoice starts its own lifecycle in DRAFT.
func (c *Controller) Replace(ctx context.Context, merchantID string, id uuid.UUID, req *model.InvoiceRequest) (*model.Invoice, error) {
	old, _, err := c.Get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if old.Status != model.StatusSuccess {
		return nil, model.NewDomainError(model.DomainInvalidTransition,
			"only an issued invoice can be replaced, current state is "+string(old.Status))
	}

	adapter, err := c.registry.Resolve(old.Provider)
	if err != nil {
		return nil, err
	}
	if !adapter.Capabilities().Has(provider.CapReplace) {
		return nil, model.NewDomainError(model.DomainUnsupported,
			"provider "+string(old.Provider)+" does not offer replacement")
	}

	req.MerchantID = merchantID
	req.Provider = old.Provider
	req.ReplacesRef = old.ProviderRef
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.invoices.FindInvoiceByClientRequestID(ctx, merchantID, req.ClientRequestID); err == nil {
		return nil, model.NewDomainError(model.DomainConflict,
			"client request id "+req.ClientRequestID+" already used")
	}

	fillDerivedAmounts(req)

	inv, err := c.createInvoice(ctx, req, &old.ID)
	if err != nil {
		return nil, err
	}
	if err := c.enqueue(ctx, inv.ID, model.OpReplace, "", c.maxAttempts); err != nil {
		return nil, err
	}
	return inv, nil
}

// FetchDocument retrieves a rendition of an issued invoice from its
// provider.
func (c *Controller) FetchDocument(ctx context.Context, merchantID string, id uuid.UUID, kind provider.DocumentKind) (*provider.Document, error) {
	inv, _, err := c.Get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != model.StatusSuccess && inv.Status != model.StatusCancelled && inv.Status != model.StatusReplaced {
		return nil, model.NewDomainError(model.DomainInvalidTransition,
			"no document before issuance, current state is "+string(inv.Status))
	}
	adapter, err := c.registry.Resolve(inv.Provider)
	if err != nil {
		return nil, err
	}
	if !adapter.Capabilities().Has(provider.CapDocument) {
		return nil, model.NewDomainError(model.DomainUnsupported,
			"provider "+string(inv.Provider)+" does not host documents")
	}
	cfg, err := c.configs.GetProviderConfig(ctx, merchantID, inv.Provider)
	if err != nil {
		return nil, model.NewConfigurationError(merchantID, inv.Provider, "no provider configuration")
	}
	return adapter.FetchDocument(ctx, inv.ProviderRef, kind, cfg)
}

// Dispatch executes a single attempt for a claimed queue entry. The entry
// status itself is owned by the scheduler; Dispatch owns the invoice status
// and the ledger row. The returned error is the typed classification the
// scheduler uses for its retry decision.
func (c *Controller) Dispatch(ctx context.Context, entry *model.QueueEntry) error {
	inv, err := c.invoices.GetInvoice(ctx, entry.InvoiceID)
	if err != nil {
		return model.NewDomainError(model.DomainNotFound, "invoice "+entry.InvoiceID.String()+" not found")
	}
	adapter, err := c.registry.Resolve(inv.Provider)
	if err != nil {
		return err
	}
	cfg, err := c.configs.GetProviderConfig(ctx, inv.MerchantID, inv.Provider)
	if err != nil {
		return model.NewConfigurationError(inv.MerchantID, inv.Provider, "no provider configuration")
	}

	switch entry.Operation {
	case model.OpSendToProvider, model.OpReplace:
		return c.dispatchIssue(ctx, inv, adapter, cfg, entry)
	case model.OpSendToTaxAuthority:
		return c.dispatchPoll(ctx, inv, adapter, cfg, entry)
	case model.OpCancel:
		return c.dispatchCancel(ctx, inv, adapter, cfg, entry)
	}
	return model.NewDomainError(model.DomainConflict, "unknown queue operation "+string(entry.Operation))
}

func (c *Controller) dispatchIssue(ctx context.Context, inv *model.Invoice, adapter provider.Adapter, cfg *provider.Config, entry *model.QueueEntry) error {
	// A prior attempt left the invoice FAILED but non-terminal; the
	// scheduler reopens it for this attempt.
	if inv.Status == model.StatusFailed {
		if err := transition(inv, model.StatusPending); err != nil {
			return err
		}
	}
	if err := transition(inv, model.StatusSigning); err != nil {
		return err
	}
	inv.Attempts++
	if err := c.invoices.UpdateInvoice(ctx, inv); err != nil {
		return err
	}

	start := c.clock.Now()
	var resp *model.InvoiceResponse
	var callErr error
	if entry.Operation == model.OpReplace {
		resp, callErr = adapter.Replace(ctx, inv.Request.ReplacesRef, inv.Request, cfg)
	} else {
		resp, callErr = adapter.Issue(ctx, inv.Request, cfg)
	}
	latency := c.clock.Now().Sub(start)
	c.appendLedger(ctx, inv, entry.Operation, resp, callErr, latency)

	if resp != nil {
		inv.Response = resp
		if resp.TransactionCode != "" {
			inv.ProviderRef = resp.TransactionCode
		}
	}

	switch {
	case callErr == nil && resp != nil && resp.Outcome == model.OutcomeUnsupported:
		derr := model.NewDomainError(model.DomainUnsupported, resp.Message)
		if err := c.finalizeFailed(ctx, inv, resp.Message); err != nil {
			return err
		}
		return derr

	case callErr == nil && resp != nil && resp.Outcome == model.OutcomeSuccess:
		if err := transition(inv, model.StatusSuccess); err != nil {
			return err
		}
		inv.Terminal = true
		inv.NextRetryAt = nil
		if err := c.invoices.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		if entry.Operation == model.OpReplace && inv.ReplacesID != nil {
			c.markReplaced(ctx, *inv.ReplacesID, inv.ID)
		}
		c.notifyTerminal(inv)
		return nil

	case callErr == nil && resp != nil && resp.Outcome == model.OutcomePending:
		// Call completed; the provider confirms asynchronously.
		if err := transition(inv, model.StatusSentToProvider); err != nil {
			return err
		}
		return c.invoices.UpdateInvoice(ctx, inv)

	case model.Retryable(callErr):
		// Non-terminal failure: the scheduler decides on requeue or
		// exhaustion.
		if err := transition(inv, model.StatusFailed); err != nil {
			return err
		}
		if uerr := c.invoices.UpdateInvoice(ctx, inv); uerr != nil {
			return uerr
		}
		return callErr

	default:
		msg := "provider attempt failed"
		if callErr != nil {
			msg = callErr.Error()
		}
		if err := c.finalizeFailed(ctx, inv, msg); err != nil {
			return err
		}
		if callErr != nil {
			return callErr
		}
		return model.NewProviderError(inv.Provider, "FAILED", msg, false)
	}
}

func (c *Controller) dispatchPoll(ctx context.Context, inv *model.Invoice, adapter provider.Adapter, cfg *provider.Config, entry *model.QueueEntry) error {
	if inv.Status != model.StatusSentToProvider {
		// Already resolved by a concurrent path; nothing to poll.
		return nil
	}

	start := c.clock.Now()
	status, callErr := adapter.GetStatus(ctx, inv.ProviderRef, cfg)
	latency := c.clock.Now().Sub(start)

	outcome := model.OutcomePending
	switch status {
	case model.StatusSuccess:
		outcome = model.OutcomeSuccess
	case model.StatusFailed:
		outcome = model.OutcomeFailed
	}
	c.appendLedger(ctx, inv, entry.Operation, &model.InvoiceResponse{Outcome: outcome}, callErr, latency)

	if callErr != nil {
		if model.Retryable(callErr) {
			return callErr
		}
		if err := c.finalizeFailed(ctx, inv, callErr.Error()); err != nil {
			return err
		}
		return callErr
	}

	switch status {
	case model.StatusSuccess:
		if err := transition(inv, model.StatusSuccess); err != nil {
			return err
		}
		inv.Terminal = true
		inv.NextRetryAt = nil
		if err := c.invoices.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		c.notifyTerminal(inv)
		return nil
	case model.StatusFailed:
		perr := model.NewProviderError(inv.Provider, "REJECTED", "provider rejected the invoice", false)
		if err := c.finalizeFailed(ctx, inv, perr.Message); err != nil {
			return err
		}
		return perr
	default:
		// Still working through signing or the tax authority; retry later.
		return model.NewProviderError(inv.Provider, "STILL_PROCESSING", "provider has not confirmed yet", true)
	}
}

func (c *Controller) dispatchCancel(ctx context.Context, inv *model.Invoice, adapter provider.Adapter, cfg *provider.Config, entry *model.QueueEntry) error {
	if inv.Status != model.StatusSuccess {
		return model.NewDomainError(model.DomainInvalidTransition,
			"cannot cancel invoice in state "+string(inv.Status))
	}

	start := c.clock.Now()
	resp, callErr := adapter.Cancel(ctx, inv.ProviderRef, entry.Reason, cfg)
	latency := c.clock.Now().Sub(start)
	c.appendLedger(ctx, inv, entry.Operation, resp, callErr, latency)

	switch {
	case callErr == nil && resp != nil && resp.Outcome == model.OutcomeUnsupported:
		return model.NewDomainError(model.DomainUnsupported, resp.Message)

	case callErr == nil && resp != nil && resp.Outcome == model.OutcomeSuccess:
		if err := transition(inv, model.StatusCancelled); err != nil {
			return err
		}
		inv.Terminal = true
		if err := c.invoices.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		c.notifyTerminal(inv)
		return nil

	case model.Retryable(callErr):
		return callErr

	default:
		if callErr != nil {
			return callErr
		}
		return model.NewProviderError(inv.Provider, "CANCEL_FAILED", "provider refused cancellation", false)
	}
}

// FollowUp runs after the scheduler completes an entry: a send or replace
// that left the invoice awaiting asynchronous confirmation gets a status
// poll entry.
func (c *Controller) FollowUp(ctx context.Context, entry *model.QueueEntry) error {
	if entry.Operation != model.OpSendToProvider && entry.Operation != model.OpReplace {
		return nil
	}
	inv, err := c.invoices.GetInvoice(ctx, entry.InvoiceID)
	if err != nil {
		return err
	}
	if inv.Status != model.StatusSentToProvider {
		return nil
	}
	return c.enqueue(ctx, inv.ID, model.OpSendToTaxAuthority, "", c.pollMaxAttempts)
}

// MarkRetrying mirrors the scheduler's backoff decision onto the invoice so
// status queries can report the next attempt time.
func (c *Controller) MarkRetrying(ctx context.Context, entry *model.QueueEntry, nextAttempt time.Time) error {
	inv, err := c.invoices.GetInvoice(ctx, entry.InvoiceID)
	if err != nil {
		return err
	}
	inv.NextRetryAt = &nextAttempt
	return c.invoices.UpdateInvoice(ctx, inv)
}

// MarkExhausted finalizes an invoice whose delivery entry reached the
// attempt ceiling or failed permanently.
func (c *Controller) MarkExhausted(ctx context.Context, entry *model.QueueEntry, lastErr string) error {
	inv, err := c.invoices.GetInvoice(ctx, entry.InvoiceID)
	if err != nil {
		return err
	}
	if inv.Terminal {
		return nil
	}
	if entry.Operation == model.OpCancel {
		// The invoice stays issued when cancellation fails for good.
		return nil
	}
	return c.failInvoice(ctx, inv, lastErr)
}

// MarkWithdrawn applies a deferred merchant cancel once the in-flight
// attempt has completed without issuing.
func (c *Controller) MarkWithdrawn(ctx context.Context, entry *model.QueueEntry) error {
	inv, err := c.invoices.GetInvoice(ctx, entry.InvoiceID)
	if err != nil {
		return err
	}
	if inv.Terminal || inv.Status == model.StatusSuccess || inv.Status == model.StatusSentToProvider {
		// The attempt issued the invoice, or handed it to the provider for
		// confirmation, before the cancel landed; a provider-side cancel is
		// the merchant's remaining path.
		return nil
	}
	return c.failInvoice(ctx, inv, "withdrawn by merchant before delivery")
}

func (c *Controller) failInvoice(ctx context.Context, inv *model.Invoice, msg string) error {
	if inv.Status != model.StatusFailed {
		if err := transition(inv, model.StatusFailed); err != nil {
			return err
		}
	}
	return c.finalize(ctx, inv, msg)
}

func (c *Controller) finalizeFailed(ctx context.Context, inv *model.Invoice, msg string) error {
	if inv.Status != model.StatusFailed {
		if err := transition(inv, model.StatusFailed); err != nil {
			return err
		}
	}
	return c.finalize(ctx, inv, msg)
}

func (c *Controller) finalize(ctx context.Context, inv *model.Invoice, msg string) error {
	inv.Terminal = true
	inv.NextRetryAt = nil
	if inv.Response == nil {
		inv.Response = &model.InvoiceResponse{Outcome: model.OutcomeFailed, Message: msg}
	} else if inv.Response.Message == "" {
		// Attempt responses are immutable once recorded on the ledger; the
		// closing message goes on a copy.
		final := *inv.Response
		final.Message = msg
		inv.Response = &final
	}
	if err := c.invoices.UpdateInvoice(ctx, inv); err != nil {
		return err
	}
	c.notifyTerminal(inv)
	return nil
}

func (c *Controller) markReplaced(ctx context.Context, oldID, newID uuid.UUID) {
	old, err := c.invoices.GetInvoice(ctx, oldID)
	if err != nil {
		log.Printf("level=warn component=lifecycle op=mark_replaced invoice=%s err=%q", oldID, err)
		return
	}
	if err := transition(old, model.StatusReplaced); err != nil {
		log.Printf("level=warn component=lifecycle op=mark_replaced invoice=%s err=%q", oldID, err)
		return
	}
	old.ReplacedBy = &newID
	if err := c.invoices.UpdateInvoice(ctx, old); err != nil {
		log.Printf("level=warn component=lifecycle op=mark_replaced invoice=%s err=%q", oldID, err)
		return
	}
	c.notifyTerminal(old)
}

func (c *Controller) checkProviderConfig(ctx context.Context, merchantID string, p model.Provider) error {
	if _, err := c.registry.Resolve(p); err != nil {
		return err
	}
	cfg, err := c.configs.GetProviderConfig(ctx, merchantID, p)
	if err != nil {
		return model.NewConfigurationError(merchantID, p, "no provider configuration for merchant")
	}
	if !cfg.Active {
		return model.NewConfigurationError(merchantID, p, "provider configuration is inactive")
	}
	return nil
}

func (c *Controller) createInvoice(ctx context.Context, req *model.InvoiceRequest, replaces *uuid.UUID) (*model.Invoice, error) {
	now := c.clock.Now().UTC()
	inv := &model.Invoice{
		ID:         uuid.New(),
		MerchantID: req.MerchantID,
		Provider:   req.Provider,
		Status:     model.StatusDraft,
		Request:    req,
		ReplacesID: replaces,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	// Validation passed and the work is queued for dispatch.
	if err := transition(inv, model.StatusPending); err != nil {
		return nil, err
	}
	if err := c.invoices.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (c *Controller) enqueue(ctx context.Context, invoiceID uuid.UUID, op model.QueueOperation, reason string, maxAttempts int) error {
	now := c.clock.Now().UTC()
	entry := &model.QueueEntry{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		Operation:   op,
		Reason:      reason,
		Status:      model.EntryPending,
		MaxAttempts: maxAttempts,
		NextRetryAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.queue.EnqueueEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.NewDomainError(model.DomainConflict,
				"another operation is already queued for invoice "+invoiceID.String())
		}
		return err
	}
	return nil
}

func (c *Controller) appendLedger(ctx context.Context, inv *model.Invoice, op model.QueueOperation, resp *model.InvoiceResponse, callErr error, latency time.Duration) {
	tx := &model.ProviderTransaction{
		ID:        uuid.New(),
		InvoiceID: inv.ID,
		Provider:  inv.Provider,
		Operation: op,
		Request:   inv.Request,
		Response:  resp,
		Latency:   latency,
		CreatedAt: c.clock.Now().UTC(),
	}
	if resp != nil {
		tx.Outcome = resp.Outcome
	} else {
		tx.Outcome = model.OutcomeFailed
	}
	if callErr != nil {
		tx.ErrorKind = model.ErrorKind(callErr)
		tx.ErrorMessage = callErr.Error()
	}
	if err := c.ledger.AppendTransaction(ctx, tx); err != nil {
		log.Printf("level=error component=lifecycle op=append_ledger invoice=%s err=%q", inv.ID, err)
	}
}

func fillDerivedAmounts(req *model.InvoiceRequest) {
	for i := range req.Items {
		if req.Items[i].Amount.IsZero() {
			req.Items[i].Calculate()
		}
	}
}
