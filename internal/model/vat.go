package model

import "github.com/shopspring/decimal"

// VATRate is a Vietnam VAT rate in percent. Providers only accept the
// statutory rates, so canonical rates outside the set are snapped to the
// nearest one before payload construction.
type VATRate int

const (
	VATRate0  VATRate = 0
	VATRate5  VATRate = 5
	VATRate10 VATRate = 10
)

// StatutoryVATRates lists the rates every provider enum accepts.
var StatutoryVATRates = []VATRate{VATRate0, VATRate5, VATRate10}

// NearestVATRate maps an arbitrary canonical rate onto the statutory set.
// Ties round up: an unusual rate must never silently become a lower tax
// band, 0% least of all.
func NearestVATRate(rate decimal.Decimal) VATRate {
	best := StatutoryVATRates[0]
	bestDist := rate.Sub(decimal.NewFromInt(int64(best))).Abs()
	for _, r := range StatutoryVATRates[1:] {
		dist := rate.Sub(decimal.NewFromInt(int64(r))).Abs()
		if dist.LessThanOrEqual(bestDist) {
			best = r
			bestDist = dist
		}
	}
	return best
}
