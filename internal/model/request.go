package model

import (
	"time"

	"github.com/shopspring/decimal"

	hubdecimal "github.com/rezonia/einvoice-hub/internal/decimal"
)

// Party is a seller or buyer on an invoice.
type Party struct {
	Name        string `json:"name"`
	TaxID       string `json:"tax_id"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
}

// LineItem is one invoice line.
type LineItem struct {
	Number      int             `json:"number"`
	Code        string          `json:"code,omitempty"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount,omitempty"`     // percent
	DiscountAmt decimal.Decimal `json:"discount_amt,omitempty"` // absolute
	Amount      decimal.Decimal `json:"amount"`
	VATRate     decimal.Decimal `json:"vat_rate"` // percent, canonical (may be non-statutory)
	VATAmount   decimal.Decimal `json:"vat_amount"`
	Total       decimal.Decimal `json:"total"`
}

// Calculate fills the derived amounts from quantity, unit price, discount
// percentage and VAT rate. VND amounts are rounded to whole numbers.
func (li *LineItem) Calculate() {
	li.Amount = hubdecimal.RoundVND(li.Quantity.Mul(li.UnitPrice))
	li.DiscountAmt = hubdecimal.CalculatePercentage(li.Amount, li.Discount)
	taxable := li.Amount.Sub(li.DiscountAmt)
	li.VATAmount = hubdecimal.CalculatePercentage(taxable, li.VATRate)
	li.Total = hubdecimal.CalculateLineTotal(li.Amount, li.DiscountAmt, li.VATAmount)
}

// InvoiceRequest is the canonical issuance intent. It is immutable after
// creation: a correction is a new request referencing the old invoice via
// ReplacesRef.
type InvoiceRequest struct {
	ClientRequestID string            `json:"client_request_id"`
	MerchantID      string            `json:"merchant_id"`
	Provider        Provider          `json:"provider"`
	Seller          Party             `json:"seller"`
	Buyer           Party             `json:"buyer"`
	Items           []LineItem        `json:"items"`
	SubtotalAmount  decimal.Decimal   `json:"subtotal_amount"`
	DiscountAmount  decimal.Decimal   `json:"discount_amount"`
	TaxAmount       decimal.Decimal   `json:"tax_amount"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	Currency        string            `json:"currency"`
	IssueDate       time.Time         `json:"issue_date"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	ReplacesRef     string            `json:"replaces_ref,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// supportedCurrencies is the closed set the hub resolves. Providers reject
// anything else anyway.
var supportedCurrencies = map[string]bool{
	"VND": true,
	"USD": true,
	"EUR": true,
	"JPY": true,
	"CNY": true,
	"KRW": true,
	"SGD": true,
}

// Validate checks the request before any provider is contacted. The first
// violation is returned as a *ValidationError.
func (r *InvoiceRequest) Validate() error {
	if r.ClientRequestID == "" {
		return NewValidationError("client_request_id", nil, "required", "idempotency key is required")
	}
	if r.MerchantID == "" {
		return NewValidationError("merchant_id", nil, "required", "merchant id is required")
	}
	if _, err := ParseProvider(string(r.Provider)); err != nil {
		return NewValidationError("provider", r.Provider, "enum", "unknown provider code")
	}
	if len(r.Items) == 0 {
		return NewValidationError("items", nil, "min_items", "at least one line item is required")
	}
	if !supportedCurrencies[r.Currency] {
		return NewValidationError("currency", r.Currency, "enum", "unresolvable currency")
	}
	if r.Seller.TaxID == "" {
		return NewValidationError("seller.tax_id", nil, "required", "seller tax id is required")
	}
	if r.Buyer.Name == "" {
		return NewValidationError("buyer.name", nil, "required", "buyer name is required")
	}
	for i, item := range r.Items {
		if item.Name == "" {
			return NewValidationError("items.name", i, "required", "line item name is required")
		}
		if !item.Quantity.IsPositive() {
			return NewValidationError("items.quantity", item.Quantity, "positive", "quantity must be greater than zero")
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError("items.unit_price", item.UnitPrice, "non_negative", "unit price must not be negative")
		}
	}
	return nil
}

// VerifyTotals cross-checks the summary amounts against the line items and
// returns human-readable warnings. Mismatches are not fatal: several
// upstream merchant systems round differently, and the provider is the
// final arbiter.
func (r *InvoiceRequest) VerifyTotals() []string {
	var warnings []string

	subtotal := hubdecimal.Zero
	tax := hubdecimal.Zero
	total := hubdecimal.Zero
	for _, item := range r.Items {
		subtotal = subtotal.Add(item.Amount)
		tax = tax.Add(item.VATAmount)
		total = total.Add(item.Total)
	}

	if !r.SubtotalAmount.IsZero() && !r.SubtotalAmount.Equal(subtotal) {
		warnings = append(warnings, "subtotal does not match sum of line amounts")
	}
	if !r.TaxAmount.IsZero() && !r.TaxAmount.Equal(tax) {
		warnings = append(warnings, "tax amount does not match sum of line VAT amounts")
	}
	if !r.TotalAmount.IsZero() && !r.TotalAmount.Equal(total) {
		warnings = append(warnings, "total does not match sum of line totals")
	}
	return warnings
}
