package model

// InvoiceResponse is the canonical result of one adapter call. Immutable
// once produced; the raw provider payload is kept for the audit ledger.
type InvoiceResponse struct {
	Outcome         Outcome `json:"outcome"`
	TransactionCode string  `json:"transaction_code,omitempty"` // provider-side reference
	InvoiceNumber   string  `json:"invoice_number,omitempty"`
	InvoiceSeries   string  `json:"invoice_series,omitempty"`
	Template        string  `json:"template,omitempty"`
	LookupCode      string  `json:"lookup_code,omitempty"`
	SecurityCode    string  `json:"security_code,omitempty"`
	DocumentURL     string  `json:"document_url,omitempty"`
	Message         string  `json:"message,omitempty"`
	// TranslatorDiagnostic marks a FAILED outcome produced by the status
	// translator for an unmapped provider code, as opposed to a failure the
	// provider itself declared.
	TranslatorDiagnostic bool   `json:"translator_diagnostic,omitempty"`
	RawPayload           []byte `json:"-"`
}

// UnsupportedResponse is the explicit result for an operation a provider
// does not offer, so callers can tell "provider rejected" from "operation
// not offered".
func UnsupportedResponse(p Provider, op string) *InvoiceResponse {
	return &InvoiceResponse{
		Outcome: OutcomeUnsupported,
		Message: "operation " + op + " is not supported by provider " + string(p),
	}
}
