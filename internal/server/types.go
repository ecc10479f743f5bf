package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/einvoice-hub/internal/model"
)

// SubmitResponse is the response for the submit endpoint
type SubmitResponse struct {
	Invoice  *InvoiceView `json:"invoice"`
	Created  bool         `json:"created"`
	Warnings []string     `json:"warnings,omitempty"`
}

// InvoiceView is the external representation of an invoice
type InvoiceView struct {
	ID          uuid.UUID              `json:"id"`
	MerchantID  string                 `json:"merchant_id"`
	Provider    model.Provider         `json:"provider"`
	Status      model.InvoiceStatus    `json:"status"`
	Terminal    bool                   `json:"terminal"`
	ProviderRef string                 `json:"provider_ref,omitempty"`
	Attempts    int                    `json:"attempts"`
	NextRetryAt *time.Time             `json:"next_retry_at,omitempty"`
	ReplacesID  *uuid.UUID             `json:"replaces_id,omitempty"`
	ReplacedBy  *uuid.UUID             `json:"replaced_by,omitempty"`
	Request     *model.InvoiceRequest  `json:"request,omitempty"`
	Response    *model.InvoiceResponse `json:"response,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// InvoiceDetailResponse is the response for the get endpoint
type InvoiceDetailResponse struct {
	Invoice *InvoiceView `json:"invoice"`
	Queue   []*QueueView `json:"queue,omitempty"`
}

// QueueView is the external representation of a delivery queue entry
type QueueView struct {
	ID          uuid.UUID              `json:"id"`
	Operation   model.QueueOperation   `json:"operation"`
	Status      model.QueueEntryStatus `json:"status"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
	NextRetryAt time.Time              `json:"next_retry_at"`
	LastError   string                 `json:"last_error,omitempty"`
}

// CancelRequest is the body of the cancel endpoint
type CancelRequest struct {
	Reason string `json:"reason"`
}

// LedgerResponse is the response for the transactions endpoint
type LedgerResponse struct {
	Transactions []*model.ProviderTransaction `json:"transactions"`
}

// ProviderInfo describes one registered provider
type ProviderInfo struct {
	Code         model.Provider `json:"code"`
	Capabilities []string       `json:"capabilities"`
	StatusCodes  []string       `json:"status_codes"`
}

// ProvidersResponse is the response for the providers endpoint
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

func invoiceView(inv *model.Invoice) *InvoiceView {
	return &InvoiceView{
		ID:          inv.ID,
		MerchantID:  inv.MerchantID,
		Provider:    inv.Provider,
		Status:      inv.Status,
		Terminal:    inv.Terminal,
		ProviderRef: inv.ProviderRef,
		Attempts:    inv.Attempts,
		NextRetryAt: inv.NextRetryAt,
		ReplacesID:  inv.ReplacesID,
		ReplacedBy:  inv.ReplacedBy,
		Request:     inv.Request,
		Response:    inv.Response,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func queueViews(entries []*model.QueueEntry) []*QueueView {
	var out []*QueueView
	for _, e := range entries {
		out = append(out, &QueueView{
			ID:          e.ID,
			Operation:   e.Operation,
			Status:      e.Status,
			Attempts:    e.Attempts,
			MaxAttempts: e.MaxAttempts,
			NextRetryAt: e.NextRetryAt,
			LastError:   e.LastError,
		})
	}
	return out
}
