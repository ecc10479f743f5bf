package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

// Viettel request/response structures (JSON over HTTPS, bearer login).
// The create call usually returns the final result, tax authority
// confirmation included; a result still being signed resolves by polling.
type viettelLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type viettelLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type viettelInvoiceRequest struct {
	TransactionUUID  string            `json:"transactionUuid"`
	TemplateCode     string            `json:"templateCode,omitempty"`
	InvoiceSeries    string            `json:"invoiceSeries,omitempty"`
	InvoiceIssuedDate int64            `json:"invoiceIssuedDate"` // unix millis
	CurrencyCode     string            `json:"currencyCode"`
	PaymentMethodName string           `json:"paymentMethodName"`
	SellerInfo       viettelParty      `json:"sellerLegalName"`
	BuyerInfo        viettelParty      `json:"buyerInfo"`
	ItemInfo         []viettelItem     `json:"itemInfo"`
	SummarizeInfo    viettelSummary    `json:"summarizeInfo"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type viettelParty struct {
	LegalName string `json:"legalName"`
	TaxCode   string `json:"taxCode"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phoneNumber,omitempty"`
	Email     string `json:"email,omitempty"`
}

type viettelItem struct {
	LineNumber    int    `json:"lineNumber"`
	ItemCode      string `json:"itemCode,omitempty"`
	ItemName      string `json:"itemName"`
	UnitName      string `json:"unitName,omitempty"`
	Quantity      string `json:"quantity"`
	UnitPrice     string `json:"unitPrice"`
	DiscountAmount string `json:"discountAmount,omitempty"`
	ItemTotalAmountWithoutTax string `json:"itemTotalAmountWithoutTax"`
	TaxPercentage int    `json:"taxPercentage"`
	TaxAmount     string `json:"taxAmount"`
	ItemTotalAmountWithTax string `json:"itemTotalAmountWithTax"`
}

type viettelSummary struct {
	SumOfTotalLineAmountWithoutTax string `json:"sumOfTotalLineAmountWithoutTax"`
	TotalTaxAmount                 string `json:"totalTaxAmount"`
	TotalAmountWithTax             string `json:"totalAmountWithTax"`
}

type viettelResult struct {
	InvoiceNo       string `json:"invoiceNo"`
	InvoiceSeries   string `json:"invoiceSeries"`
	TransactionID   string `json:"transactionID"`
	ReservationCode string `json:"reservationCode"`
	Status          string `json:"status"`
}

type viettelResponse struct {
	ErrorCode   string         `json:"errorCode"`
	Description string         `json:"description"`
	Result      *viettelResult `json:"result"`
}

// Viettel status vocabulary.
var viettelStatusTable = map[string]model.InvoiceStatus{
	"WAITING_SIGN": model.StatusSigning,
	"SENT_TO_TAX":  model.StatusSentToProvider,
	"ISSUED":       model.StatusSuccess,
	"REJECTED":     model.StatusFailed,
	"CANCELED":     model.StatusCancelled,
}

var viettelTransientCodes = map[string]bool{
	"SYSTEM_BUSY":     true,
	"TRY_AGAIN_LATER": true,
}

// ViettelAdapter issues invoices through the Viettel SInvoice service.
// Viettel has no replacement endpoint: corrections go through cancel plus a
// fresh issuance, so Replace reports unsupported.
type ViettelAdapter struct {
	client     *http.Client
	tokens     *token.Cache
	translator *StatusTranslator
}

// NewViettelAdapter creates a new Viettel adapter.
func NewViettelAdapter(tokens *token.Cache) *ViettelAdapter {
	return &ViettelAdapter{
		client:     &http.Client{},
		tokens:     tokens,
		translator: NewStatusTranslator(model.ProviderViettel, viettelStatusTable),
	}
}

// Code returns the provider type
func (a *ViettelAdapter) Code() model.Provider {
	return model.ProviderViettel
}

// Capabilities returns the operations Viettel offers.
func (a *ViettelAdapter) Capabilities() CapabilitySet {
	return CapabilitySet{
		CapIssue:        true,
		CapCancel:       true,
		CapStatus:       true,
		CapDocument:     true,
		CapAuthenticate: true,
	}
}

// Translator returns the Viettel status mapping table.
func (a *ViettelAdapter) Translator() *StatusTranslator {
	return a.translator
}

// Authenticate performs the Viettel login call.
func (a *ViettelAdapter) Authenticate(ctx context.Context, cfg *Config) (*token.Token, error) {
	if cfg.REST == nil {
		return nil, model.NewConfigurationError(cfg.MerchantID, a.Code(), "missing REST credentials")
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "authenticate", http.MethodPost,
		cfg.REST.BaseURL+"/auth/login", nil,
		viettelLoginRequest{Username: cfg.REST.Username, Password: cfg.REST.Password})
	if err != nil {
		return nil, model.NewAuthError(a.Code(), "login call failed", err)
	}
	if res.status != http.StatusOK {
		return nil, model.NewAuthError(a.Code(), "login rejected", nil)
	}
	var body viettelLoginResponse
	if err := json.Unmarshal(res.body, &body); err != nil || body.AccessToken == "" {
		return nil, model.NewAuthError(a.Code(), "malformed login response", err)
	}
	return &token.Token{
		Value:     body.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

func (a *ViettelAdapter) bearer(ctx context.Context, cfg *Config) (map[string]string, error) {
	tok, err := a.tokens.Get(ctx, token.Key(cfg.MerchantID, a.Code()), func(ctx context.Context) (*token.Token, error) {
		return a.Authenticate(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + tok.Value}, nil
}

// Issue submits a new invoice. The result is usually final; a payload
// still in signing or at the tax authority yields a PENDING outcome.
func (a *ViettelAdapter) Issue(ctx context.Context, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return timeoutResponse(err), err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "issue", http.MethodPost,
		cfg.REST.BaseURL+"/InvoiceAPI/InvoiceWS/createInvoice/"+req.Seller.TaxID, headers,
		buildViettelPayload(req, cfg))
	if err != nil {
		return timeoutResponse(err), err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return timeoutResponse(aerr), aerr
	}
	return a.parse(res)
}

// Replace is not offered by Viettel.
func (a *ViettelAdapter) Replace(ctx context.Context, oldRef string, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	return model.UnsupportedResponse(a.Code(), "replace"), nil
}

// Cancel voids an issued invoice.
func (a *ViettelAdapter) Cancel(ctx context.Context, providerRef, reason string, cfg *Config) (*model.InvoiceResponse, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return timeoutResponse(err), err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "cancel", http.MethodPost,
		cfg.REST.BaseURL+"/InvoiceAPI/InvoiceWS/cancelTransactionInvoice", headers,
		map[string]string{"transactionID": providerRef, "reason": reason})
	if err != nil {
		return timeoutResponse(err), err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return timeoutResponse(aerr), aerr
	}
	return a.parse(res)
}

// GetStatus polls Viettel for the canonical invoice status.
func (a *ViettelAdapter) GetStatus(ctx context.Context, providerRef string, cfg *Config) (model.InvoiceStatus, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return model.StatusFailed, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "status", http.MethodGet,
		cfg.REST.BaseURL+"/InvoiceAPI/InvoiceWS/getInvoiceStatus/"+providerRef, headers, nil)
	if err != nil {
		return model.StatusFailed, err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return model.StatusFailed, aerr
	}
	var body viettelResponse
	if err := json.Unmarshal(res.body, &body); err != nil || body.Result == nil {
		return model.StatusFailed, model.NewProviderError(a.Code(), "BAD_PAYLOAD", "malformed status response", false)
	}
	status, mapped := a.translator.Translate(body.Result.Status)
	if !mapped {
		return model.StatusFailed, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED",
			"provider status "+body.Result.Status+" is not in the mapping table", false)
	}
	return status, nil
}

// FetchDocument downloads the invoice rendition directly.
func (a *ViettelAdapter) FetchDocument(ctx context.Context, providerRef string, kind DocumentKind, cfg *Config) (*Document, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doRequest(ctx, a.client, a.Code(), "document", http.MethodGet,
		cfg.REST.BaseURL+"/InvoiceAPI/InvoiceUtilsWS/getInvoiceFile/"+providerRef+"?fileType="+string(kind),
		headers, nil)
	if err != nil {
		return nil, err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return nil, aerr
	}
	if res.status != http.StatusOK || len(res.body) == 0 {
		return nil, model.NewProviderError(a.Code(), "NO_DOCUMENT", "provider returned no document", false)
	}
	mime := "application/pdf"
	if kind == DocumentXML {
		mime = "application/xml"
	}
	return &Document{Kind: kind, Content: res.body, MimeType: mime}, nil
}

func (a *ViettelAdapter) parse(res *httpResult) (*model.InvoiceResponse, error) {
	var body viettelResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		perr := model.NewProviderError(a.Code(), "BAD_PAYLOAD", "unparsable provider payload", false)
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    perr.Message,
			RawPayload: res.body,
		}, perr
	}

	if body.ErrorCode != "" || res.status != http.StatusOK {
		perr := model.NewProviderError(a.Code(), body.ErrorCode, body.Description, viettelTransientCodes[body.ErrorCode])
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    body.Description,
			RawPayload: res.body,
		}, perr
	}
	if body.Result == nil {
		// A 200 with no result block is still a failure; diagnose it rather
		// than dereferencing nothing.
		perr := model.NewProviderError(a.Code(), "EMPTY_RESULT", "provider returned empty result", false)
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    perr.Message,
			RawPayload: res.body,
		}, perr
	}

	resp := &model.InvoiceResponse{
		Outcome:         model.OutcomeSuccess,
		TransactionCode: body.Result.TransactionID,
		InvoiceNumber:   body.Result.InvoiceNo,
		InvoiceSeries:   body.Result.InvoiceSeries,
		SecurityCode:    body.Result.ReservationCode,
		RawPayload:      res.body,
	}
	if body.Result.Status != "" {
		status, mapped := a.translator.Translate(body.Result.Status)
		if !mapped {
			resp.Outcome = model.OutcomeFailed
			resp.TranslatorDiagnostic = true
			resp.Message = "unmapped provider status " + body.Result.Status
			return resp, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED", resp.Message, false)
		}
		switch status {
		case model.StatusSigning, model.StatusSentToProvider:
			// Accepted but not final; the confirmation poll resolves it.
			resp.Outcome = model.OutcomePending
		case model.StatusFailed:
			resp.Outcome = model.OutcomeFailed
			return resp, model.NewProviderError(a.Code(), "REJECTED", "provider rejected the invoice", false)
		}
	}
	return resp, nil
}

func buildViettelPayload(req *model.InvoiceRequest, cfg *Config) *viettelInvoiceRequest {
	payload := &viettelInvoiceRequest{
		TransactionUUID:   req.ClientRequestID,
		TemplateCode:      cfg.Template,
		InvoiceSeries:     cfg.Series,
		InvoiceIssuedDate: req.IssueDate.UnixMilli(),
		CurrencyCode:      req.Currency,
		PaymentMethodName: defaultPaymentMethod(req.PaymentMethod),
		SellerInfo:        viettelPartyFrom(req.Seller),
		BuyerInfo:         viettelPartyFrom(req.Buyer),
		SummarizeInfo: viettelSummary{
			SumOfTotalLineAmountWithoutTax: req.SubtotalAmount.String(),
			TotalTaxAmount:                 req.TaxAmount.String(),
			TotalAmountWithTax:             req.TotalAmount.String(),
		},
		Metadata: req.Extra,
	}
	for i, item := range req.Items {
		lineNo := item.Number
		if lineNo == 0 {
			lineNo = i + 1
		}
		payload.ItemInfo = append(payload.ItemInfo, viettelItem{
			LineNumber:                lineNo,
			ItemCode:                  item.Code,
			ItemName:                  item.Name,
			UnitName:                  item.Unit,
			Quantity:                  item.Quantity.String(),
			UnitPrice:                 item.UnitPrice.String(),
			DiscountAmount:            item.DiscountAmt.String(),
			ItemTotalAmountWithoutTax: item.Amount.String(),
			TaxPercentage:             int(model.NearestVATRate(item.VATRate)),
			TaxAmount:                 item.VATAmount.String(),
			ItemTotalAmountWithTax:    item.Total.String(),
		})
	}
	return payload
}

func viettelPartyFrom(p model.Party) viettelParty {
	return viettelParty{
		LegalName: p.Name,
		TaxCode:   p.TaxID,
		Address:   p.Address,
		Phone:     p.Phone,
		Email:     p.Email,
	}
}
