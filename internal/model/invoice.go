package model

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is the aggregate root the hub persists. Only the lifecycle
// controller mutates it; everything else reads. Invoices are never deleted,
// only soft-marked.
type Invoice struct {
	ID          uuid.UUID        `json:"id"`
	MerchantID  string           `json:"merchant_id"`
	Provider    Provider         `json:"provider"`
	Status      InvoiceStatus    `json:"status"`
	Request     *InvoiceRequest  `json:"request"`
	Response    *InvoiceResponse `json:"response,omitempty"`
	ProviderRef string           `json:"provider_ref,omitempty"` // transaction code once issued
	Attempts    int              `json:"attempts"`
	NextRetryAt *time.Time       `json:"next_retry_at,omitempty"`
	Terminal    bool             `json:"terminal"`
	ReplacesID  *uuid.UUID       `json:"replaces_id,omitempty"`
	ReplacedBy  *uuid.UUID       `json:"replaced_by,omitempty"`
	Deleted     bool             `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// QueueOperation is the kind of provider action a queue entry requests.
type QueueOperation string

const (
	OpSendToProvider     QueueOperation = "SEND_TO_PROVIDER"
	OpSendToTaxAuthority QueueOperation = "SEND_TO_TAX_AUTHORITY"
	OpCancel             QueueOperation = "CANCEL"
	OpReplace            QueueOperation = "REPLACE"
)

// QueueEntryStatus is the delivery state of a queue entry. Transitions are
// owned exclusively by the scheduler.
type QueueEntryStatus string

const (
	EntryPending    QueueEntryStatus = "PENDING"
	EntryProcessing QueueEntryStatus = "PROCESSING"
	EntryCompleted  QueueEntryStatus = "COMPLETED"
	EntryFailed     QueueEntryStatus = "FAILED"
	EntryRetrying   QueueEntryStatus = "RETRYING"
	EntryCancelled  QueueEntryStatus = "CANCELLED"
)

// IsTerminal reports whether the entry will never be scheduled again.
func (s QueueEntryStatus) IsTerminal() bool {
	switch s {
	case EntryCompleted, EntryFailed, EntryCancelled:
		return true
	}
	return false
}

// QueueEntry is one unit of provider work that must eventually succeed or
// exhaust its attempts.
type QueueEntry struct {
	ID            uuid.UUID        `json:"id"`
	InvoiceID     uuid.UUID        `json:"invoice_id"`
	Operation     QueueOperation   `json:"operation"`
	Reason        string           `json:"reason,omitempty"` // merchant-supplied, for CANCEL
	Status        QueueEntryStatus `json:"status"`
	Attempts      int              `json:"attempts"`
	MaxAttempts   int              `json:"max_attempts"`
	LastAttemptAt *time.Time       `json:"last_attempt_at,omitempty"`
	NextRetryAt   time.Time        `json:"next_retry_at"`
	LastError     string           `json:"last_error,omitempty"`
	// CancelRequested defers a merchant cancel that arrived while the entry
	// was PROCESSING; it is applied once the in-flight attempt completes.
	CancelRequested bool      `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProviderTransaction is one append-only ledger row per provider attempt.
// Never mutated after insert.
type ProviderTransaction struct {
	ID           uuid.UUID        `json:"id"`
	InvoiceID    uuid.UUID        `json:"invoice_id"`
	Provider     Provider         `json:"provider"`
	Operation    QueueOperation   `json:"operation"`
	Request      *InvoiceRequest  `json:"request,omitempty"`
	Response     *InvoiceResponse `json:"response,omitempty"`
	Outcome      Outcome          `json:"outcome"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Latency      time.Duration    `json:"latency"`
	CreatedAt    time.Time        `json:"created_at"`
}
