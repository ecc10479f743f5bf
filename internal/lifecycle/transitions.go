package lifecycle

import (
	"github.com/rezonia/einvoice-hub/internal/model"
)

// transitions is the canonical lifecycle graph. The status only moves
// forward; CANCELLED and REPLACED are compensating transitions reachable
// from SUCCESS only, and FAILED -> PENDING is the scheduler reopening a
// failed invoice while retry budget remains (gated by the terminal flag,
// never a rollback of a terminal state).
var transitions = map[model.InvoiceStatus][]model.InvoiceStatus{
	model.StatusDraft:          {model.StatusPending},
	model.StatusPending:        {model.StatusSigning, model.StatusFailed},
	model.StatusSigning:        {model.StatusSentToProvider, model.StatusSuccess, model.StatusFailed},
	model.StatusSentToProvider: {model.StatusSuccess, model.StatusFailed},
	model.StatusSuccess:        {model.StatusCancelled, model.StatusReplaced},
	model.StatusFailed:         {model.StatusPending},
	model.StatusCancelled:      {},
	model.StatusReplaced:       {},
}

// CanTransition reports whether the move is allowed by the lifecycle graph.
func CanTransition(from, to model.InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition mutates the invoice status after validating the edge. An
// invalid source state is a domain error, never a silent no-op.
func transition(inv *model.Invoice, to model.InvoiceStatus) error {
	// SUCCESS ends the primary flow but still admits the compensating
	// cancel/replace edges; every other terminal state is final.
	if inv.Terminal && inv.Status != model.StatusSuccess {
		return model.NewDomainError(model.DomainInvalidTransition,
			"invoice "+inv.ID.String()+" is terminal in state "+string(inv.Status))
	}
	if !CanTransition(inv.Status, to) {
		return model.NewDomainError(model.DomainInvalidTransition,
			"cannot move invoice "+inv.ID.String()+" from "+string(inv.Status)+" to "+string(to))
	}
	inv.Status = to
	return nil
}
