package model

// InvoiceStatus is the canonical lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusDraft          InvoiceStatus = "DRAFT"
	StatusPending        InvoiceStatus = "PENDING"
	StatusSigning        InvoiceStatus = "SIGNING"
	StatusSentToProvider InvoiceStatus = "SENT_TO_PROVIDER"
	StatusSuccess        InvoiceStatus = "SUCCESS"
	StatusFailed         InvoiceStatus = "FAILED"
	StatusCancelled      InvoiceStatus = "CANCELLED"
	StatusReplaced       InvoiceStatus = "REPLACED"
)

// IsTerminal reports whether the status ends the primary issuance flow.
// FAILED invoices may still be reopened by the retry scheduler until the
// attempt ceiling is reached.
func (s InvoiceStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusReplaced:
		return true
	}
	return false
}

// Outcome classifies the result of a single adapter call.
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeFailed      Outcome = "FAILED"
	OutcomePending     Outcome = "PENDING"
	OutcomeTimeout     Outcome = "TIMEOUT"
	OutcomeUnsupported Outcome = "UNSUPPORTED"
)
