package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/einvoice-hub/internal/model"
)

func TestNearestVATRate(t *testing.T) {
	tests := []struct {
		name string
		rate string
		want model.VATRate
	}{
		{"exact zero", "0", model.VATRate0},
		{"exact five", "5", model.VATRate5},
		{"exact ten", "10", model.VATRate10},
		{"reduced eight snaps to ten", "8", model.VATRate10},
		{"seven snaps to five", "7", model.VATRate5},
		{"four snaps to five", "4", model.VATRate5},
		{"one snaps to zero", "1", model.VATRate0},
		{"midpoint between zero and five rounds up", "2.5", model.VATRate5},
		{"midpoint between five and ten rounds up", "7.5", model.VATRate10},
		{"above ten stays ten", "12", model.VATRate10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := decimal.RequireFromString(tt.rate)
			assert.Equal(t, tt.want, model.NearestVATRate(rate))
		})
	}
}
