package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/einvoice-hub/internal/model"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to model.InvoiceStatus }{
		{model.StatusDraft, model.StatusPending},
		{model.StatusPending, model.StatusSigning},
		{model.StatusPending, model.StatusFailed},
		{model.StatusSigning, model.StatusSentToProvider},
		{model.StatusSigning, model.StatusSuccess},
		{model.StatusSigning, model.StatusFailed},
		{model.StatusSentToProvider, model.StatusSuccess},
		{model.StatusSentToProvider, model.StatusFailed},
		{model.StatusSuccess, model.StatusCancelled},
		{model.StatusSuccess, model.StatusReplaced},
		{model.StatusFailed, model.StatusPending},
	}
	for _, tt := range allowed {
		assert.True(t, CanTransition(tt.from, tt.to), "%s -> %s should be allowed", tt.from, tt.to)
	}

	denied := []struct{ from, to model.InvoiceStatus }{
		{model.StatusDraft, model.StatusSuccess},
		{model.StatusDraft, model.StatusCancelled},
		{model.StatusPending, model.StatusSuccess},
		{model.StatusSentToProvider, model.StatusSigning},
		{model.StatusSuccess, model.StatusPending},
		{model.StatusSuccess, model.StatusFailed},
		{model.StatusCancelled, model.StatusPending},
		{model.StatusCancelled, model.StatusSuccess},
		{model.StatusReplaced, model.StatusPending},
		{model.StatusFailed, model.StatusSuccess},
	}
	for _, tt := range denied {
		assert.False(t, CanTransition(tt.from, tt.to), "%s -> %s should be denied", tt.from, tt.to)
	}
}

func TestTransition_TerminalFlagBlocksReopen(t *testing.T) {
	inv := &model.Invoice{Status: model.StatusFailed, Terminal: true}

	err := transition(inv, model.StatusPending)
	assert.Error(t, err)
	assert.Equal(t, model.StatusFailed, inv.Status)
}

func TestTransition_FailedReopensWhileBudgetRemains(t *testing.T) {
	inv := &model.Invoice{Status: model.StatusFailed}

	assert.NoError(t, transition(inv, model.StatusPending))
	assert.Equal(t, model.StatusPending, inv.Status)
}

func TestTransition_SuccessAdmitsCompensatingEdges(t *testing.T) {
	inv := &model.Invoice{Status: model.StatusSuccess, Terminal: true}

	assert.NoError(t, transition(inv, model.StatusCancelled))
	assert.Equal(t, model.StatusCancelled, inv.Status)

	replaced := &model.Invoice{Status: model.StatusSuccess, Terminal: true}
	assert.NoError(t, transition(replaced, model.StatusReplaced))
	assert.Equal(t, model.StatusReplaced, replaced.Status)
}

func TestTransition_InvalidEdgeIsDomainError(t *testing.T) {
	inv := &model.Invoice{Status: model.StatusDraft}

	err := transition(inv, model.StatusSuccess)
	assert.Error(t, err)

	var derr *model.DomainError
	assert.ErrorAs(t, err, &derr)
	assert.Equal(t, model.DomainInvalidTransition, derr.Code)
	// Failed transitions never mutate the invoice.
	assert.Equal(t, model.StatusDraft, inv.Status)
}
