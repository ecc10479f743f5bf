package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

// VNPT request/response structures (JSON over HTTPS, bearer login).
// Issuance is asynchronous: a create call is acknowledged with a
// transaction code and the final state comes from status polling.
type vnptLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type vnptLoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

type vnptParty struct {
	Name        string `json:"name"`
	TaxCode     string `json:"taxCode"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	BankAccount string `json:"bankAccount,omitempty"`
	BankName    string `json:"bankName,omitempty"`
}

type vnptProduct struct {
	LineNo      int    `json:"lineNo"`
	ProdCode    string `json:"prodCode,omitempty"`
	ProdName    string `json:"prodName"`
	ProdUnit    string `json:"prodUnit,omitempty"`
	ProdQuantity string `json:"prodQuantity"`
	ProdPrice   string `json:"prodPrice"`
	DiscountAmt string `json:"discountAmt,omitempty"`
	Amount      string `json:"amount"`
	VATRate     int    `json:"vatRate"`
	VATAmount   string `json:"vatAmount"`
	Total       string `json:"total"`
}

type vnptInvoicePayload struct {
	TransactionUUID string        `json:"transactionUuid"` // idempotency key on VNPT's side
	TemplateCode    string        `json:"templateCode,omitempty"`
	InvoiceSeries   string        `json:"invoiceSeries,omitempty"`
	InvoiceDate     string        `json:"invoiceDate"`
	Currency        string        `json:"currency"`
	PaymentMethod   string        `json:"paymentMethod"`
	Seller          vnptParty     `json:"seller"`
	Buyer           vnptParty     `json:"buyer"`
	Products        []vnptProduct `json:"products"`
	TotalAmount     string        `json:"totalAmount"`
	TotalVATAmount  string        `json:"totalVatAmount"`
	TotalPayment    string        `json:"totalPayment"`
	ReplacedRef     string        `json:"replacedTransactionCode,omitempty"`
	Extra           map[string]string `json:"additionalInfo,omitempty"`
}

type vnptCreateResponse struct {
	TransactionCode string `json:"transactionCode"`
	Status          string `json:"status"`
	InvoiceNo       string `json:"invoiceNo"`
	InvoiceSeries   string `json:"invoiceSeries"`
	LookupCode      string `json:"lookupCode"`
	SecurityCode    string `json:"securityCode"`
	ErrorCode       string `json:"errorCode"`
	Message         string `json:"message"`
}

type vnptStatusResponse struct {
	TransactionCode string `json:"transactionCode"`
	Status          string `json:"status"`
	InvoiceNo       string `json:"invoiceNo"`
	Message         string `json:"message"`
}

type vnptFileResponse struct {
	FileURL string `json:"fileUrl"`
}

// VNPT status vocabulary. XU_LY covers both the signing queue and the tax
// authority round-trip; VNPT does not expose them separately.
var vnptStatusTable = map[string]model.InvoiceStatus{
	"CHO_KY":    model.StatusSigning,
	"XU_LY":     model.StatusSentToProvider,
	"DA_CAP_MA": model.StatusSuccess,
	"TU_CHOI":   model.StatusFailed,
	"DA_HUY":    model.StatusCancelled,
	"THAY_THE":  model.StatusReplaced,
}

// vnptTransientCodes are rejections VNPT documents as safe to retry.
var vnptTransientCodes = map[string]bool{
	"ERR_BUSY":        true,
	"ERR_RATE_LIMIT":  true,
	"ERR_MAINTENANCE": true,
}

// VNPTAdapter issues invoices through the VNPT e-invoice service.
type VNPTAdapter struct {
	client     *http.Client
	tokens     *token.Cache
	translator *StatusTranslator
}

// NewVNPTAdapter creates a new VNPT adapter.
func NewVNPTAdapter(tokens *token.Cache) *VNPTAdapter {
	return &VNPTAdapter{
		client:     &http.Client{},
		tokens:     tokens,
		translator: NewStatusTranslator(model.ProviderVNPT, vnptStatusTable),
	}
}

// Code returns the provider type
func (a *VNPTAdapter) Code() model.Provider {
	return model.ProviderVNPT
}

// Capabilities returns the operations VNPT offers.
func (a *VNPTAdapter) Capabilities() CapabilitySet {
	return CapabilitySet{
		CapIssue:        true,
		CapCancel:       true,
		CapReplace:      true,
		CapStatus:       true,
		CapDocument:     true,
		CapAuthenticate: true,
	}
}

// Translator returns the VNPT status mapping table.
func (a *VNPTAdapter) Translator() *StatusTranslator {
	return a.translator
}

// Authenticate performs the VNPT login call.
func (a *VNPTAdapter) Authenticate(ctx context.Context, cfg *Config) (*token.Token, error) {
	if cfg.REST == nil {
		return nil, model.NewConfigurationError(cfg.MerchantID, a.Code(), "missing REST credentials")
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "authenticate", http.MethodPost,
		cfg.REST.BaseURL+"/api/auth/login", nil,
		vnptLoginRequest{Username: cfg.REST.Username, Password: cfg.REST.Password})
	if err != nil {
		return nil, model.NewAuthError(a.Code(), "login call failed", err)
	}
	if res.status != http.StatusOK {
		return nil, model.NewAuthError(a.Code(), "login rejected", nil)
	}
	var body vnptLoginResponse
	if err := json.Unmarshal(res.body, &body); err != nil || body.AccessToken == "" {
		return nil, model.NewAuthError(a.Code(), "malformed login response", err)
	}
	return &token.Token{
		Value:     body.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

func (a *VNPTAdapter) bearer(ctx context.Context, cfg *Config) (map[string]string, error) {
	tok, err := a.tokens.Get(ctx, token.Key(cfg.MerchantID, a.Code()), func(ctx context.Context) (*token.Token, error) {
		return a.Authenticate(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + tok.Value}, nil
}

// Issue submits a new invoice. VNPT acknowledges asynchronously, so a
// successful call yields a PENDING outcome and the transaction code to poll.
func (a *VNPTAdapter) Issue(ctx context.Context, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	return a.send(ctx, "issue", buildVNPTPayload(req, cfg), cfg)
}

// Replace issues a replacement invoice referencing the replaced one.
func (a *VNPTAdapter) Replace(ctx context.Context, oldRef string, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	payload := buildVNPTPayload(req, cfg)
	payload.ReplacedRef = oldRef
	return a.send(ctx, "replace", payload, cfg)
}

func (a *VNPTAdapter) send(ctx context.Context, op string, payload *vnptInvoicePayload, cfg *Config) (*model.InvoiceResponse, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return timeoutResponse(err), err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), op, http.MethodPost,
		cfg.REST.BaseURL+"/api/invoices", headers, payload)
	if err != nil {
		return timeoutResponse(err), err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return timeoutResponse(aerr), aerr
	}
	return a.parseCreate(res)
}

// Cancel voids an issued invoice.
func (a *VNPTAdapter) Cancel(ctx context.Context, providerRef, reason string, cfg *Config) (*model.InvoiceResponse, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return timeoutResponse(err), err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "cancel", http.MethodPost,
		cfg.REST.BaseURL+"/api/invoices/"+providerRef+"/cancel", headers,
		map[string]string{"reason": reason})
	if err != nil {
		return timeoutResponse(err), err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return timeoutResponse(aerr), aerr
	}
	return a.parseCreate(res)
}

// GetStatus polls VNPT for the canonical invoice status.
func (a *VNPTAdapter) GetStatus(ctx context.Context, providerRef string, cfg *Config) (model.InvoiceStatus, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return model.StatusFailed, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "status", http.MethodGet,
		cfg.REST.BaseURL+"/api/invoices/"+providerRef+"/status", headers, nil)
	if err != nil {
		return model.StatusFailed, err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return model.StatusFailed, aerr
	}
	var body vnptStatusResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		return model.StatusFailed, model.NewProviderError(a.Code(), "BAD_PAYLOAD", "malformed status response", false)
	}
	status, mapped := a.translator.Translate(body.Status)
	if !mapped {
		return model.StatusFailed, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED",
			"provider status "+body.Status+" is not in the mapping table", false)
	}
	return status, nil
}

// FetchDocument retrieves the hosted document URL for an issued invoice.
func (a *VNPTAdapter) FetchDocument(ctx context.Context, providerRef string, kind DocumentKind, cfg *Config) (*Document, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "document", http.MethodGet,
		cfg.REST.BaseURL+"/api/invoices/"+providerRef+"/file?type="+string(kind), headers, nil)
	if err != nil {
		return nil, err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return nil, aerr
	}
	var body vnptFileResponse
	if err := json.Unmarshal(res.body, &body); err != nil || body.FileURL == "" {
		return nil, model.NewProviderError(a.Code(), "BAD_PAYLOAD", "malformed file response", false)
	}
	return &Document{Kind: kind, URL: body.FileURL}, nil
}

func (a *VNPTAdapter) parseCreate(res *httpResult) (*model.InvoiceResponse, error) {
	var body vnptCreateResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		// Tolerate a null or unparsable payload: classify, never crash.
		perr := model.NewProviderError(a.Code(), "BAD_PAYLOAD", "unparsable provider payload", false)
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    perr.Message,
			RawPayload: res.body,
		}, perr
	}

	if res.status != http.StatusOK && res.status != http.StatusCreated {
		perr := model.NewProviderError(a.Code(), body.ErrorCode, body.Message, vnptTransientCodes[body.ErrorCode])
		return &model.InvoiceResponse{
			Outcome:         model.OutcomeFailed,
			TransactionCode: body.TransactionCode,
			Message:         body.Message,
			RawPayload:      res.body,
		}, perr
	}

	resp := &model.InvoiceResponse{
		Outcome:         model.OutcomePending,
		TransactionCode: body.TransactionCode,
		InvoiceNumber:   body.InvoiceNo,
		InvoiceSeries:   body.InvoiceSeries,
		LookupCode:      body.LookupCode,
		SecurityCode:    body.SecurityCode,
		Message:         body.Message,
		RawPayload:      res.body,
	}
	if body.Status != "" {
		status, mapped := a.translator.Translate(body.Status)
		if !mapped {
			resp.Outcome = model.OutcomeFailed
			resp.TranslatorDiagnostic = true
			resp.Message = "unmapped provider status " + body.Status
			return resp, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED", resp.Message, false)
		}
		switch status {
		case model.StatusSuccess, model.StatusCancelled, model.StatusReplaced:
			resp.Outcome = model.OutcomeSuccess
		case model.StatusFailed:
			resp.Outcome = model.OutcomeFailed
			return resp, model.NewProviderError(a.Code(), body.ErrorCode, body.Message, false)
		}
	}
	return resp, nil
}

func buildVNPTPayload(req *model.InvoiceRequest, cfg *Config) *vnptInvoicePayload {
	payload := &vnptInvoicePayload{
		TransactionUUID: req.ClientRequestID,
		TemplateCode:    cfg.Template,
		InvoiceSeries:   cfg.Series,
		InvoiceDate:     req.IssueDate.Format("2006-01-02"),
		Currency:        req.Currency,
		PaymentMethod:   defaultPaymentMethod(req.PaymentMethod),
		Seller:          vnptPartyFrom(req.Seller),
		Buyer:           vnptPartyFrom(req.Buyer),
		TotalAmount:     req.SubtotalAmount.String(),
		TotalVATAmount:  req.TaxAmount.String(),
		TotalPayment:    req.TotalAmount.String(),
		Extra:           req.Extra,
	}
	for i, item := range req.Items {
		lineNo := item.Number
		if lineNo == 0 {
			lineNo = i + 1
		}
		payload.Products = append(payload.Products, vnptProduct{
			LineNo:       lineNo,
			ProdCode:     item.Code,
			ProdName:     item.Name,
			ProdUnit:     item.Unit,
			ProdQuantity: item.Quantity.String(),
			ProdPrice:    item.UnitPrice.String(),
			DiscountAmt:  item.DiscountAmt.String(),
			Amount:       item.Amount.String(),
			VATRate:      int(model.NearestVATRate(item.VATRate)),
			VATAmount:    item.VATAmount.String(),
			Total:        item.Total.String(),
		})
	}
	return payload
}

func vnptPartyFrom(p model.Party) vnptParty {
	return vnptParty{
		Name:        p.Name,
		TaxCode:     p.TaxID,
		Address:     p.Address,
		Phone:       p.Phone,
		Email:       p.Email,
		BankAccount: p.BankAccount,
		BankName:    p.BankName,
	}
}

// defaultPaymentMethod applies the provider default when the canonical
// request does not carry one. "TM/CK" (cash or transfer) is what the
// provider portals preselect.
func defaultPaymentMethod(m string) string {
	if m == "" {
		return "TM/CK"
	}
	return m
}
