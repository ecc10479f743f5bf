package provider

import (
	"fmt"
	"sort"

	"github.com/rezonia/einvoice-hub/internal/model"
)

// StatusTranslator maps one provider's status vocabulary onto the canonical
// lifecycle. The mapping is a declared finite table, not a code path, so an
// unmapped code is detectable rather than silently defaulted.
type StatusTranslator struct {
	provider model.Provider
	table    map[string]model.InvoiceStatus
}

// NewStatusTranslator declares the mapping table for a provider.
func NewStatusTranslator(p model.Provider, table map[string]model.InvoiceStatus) *StatusTranslator {
	return &StatusTranslator{provider: p, table: table}
}

// Check validates the table at registration time.
func (t *StatusTranslator) Check() error {
	if len(t.table) == 0 {
		return fmt.Errorf("status table for %s is empty", t.provider)
	}
	for code, status := range t.table {
		switch status {
		case model.StatusPending, model.StatusSigning, model.StatusSentToProvider,
			model.StatusSuccess, model.StatusFailed, model.StatusCancelled, model.StatusReplaced:
		default:
			return fmt.Errorf("status table for %s maps %q to non-canonical status %q", t.provider, code, status)
		}
	}
	return nil
}

// Translate maps a provider status code to the canonical status. The second
// return value reports whether the code was in the table; an absent code
// maps to FAILED so callers can set the translator-diagnostic flag and logs
// can tell it apart from a provider-declared failure.
func (t *StatusTranslator) Translate(code string) (model.InvoiceStatus, bool) {
	if status, ok := t.table[code]; ok {
		return status, true
	}
	return model.StatusFailed, false
}

// Codes returns the documented provider status codes, sorted.
func (t *StatusTranslator) Codes() []string {
	codes := make([]string, 0, len(t.table))
	for code := range t.table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
