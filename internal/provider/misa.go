package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

// MISA request/response structures (JSON over HTTPS, bearer login).
// MISA keeps Vietnamese field names on the wire; issuance is synchronous.
type misaLoginRequest struct {
	AppID    string `json:"app_id,omitempty"`
	TaxCode  string `json:"tax_code,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type misaLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"data"`
}

type misaParty struct {
	MST         string `json:"mst"` // Tax ID
	CompanyName string `json:"company_name"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
}

type misaItem struct {
	STT       int    `json:"stt"`       // Line number
	MaHang    string `json:"ma_hang"`   // Item code
	TenHang   string `json:"ten_hang"`  // Item name
	DVT       string `json:"dvt"`       // Unit
	SoLuong   string `json:"so_luong"`  // Quantity
	DonGia    string `json:"don_gia"`   // Unit price
	ChietKhau string `json:"chiet_khau"` // Discount %
	TienCK    string `json:"tien_ck"`   // Discount amount
	ThanhTien string `json:"thanh_tien"` // Amount
	ThueSuat  int    `json:"thue_suat"` // VAT rate
	TienThue  string `json:"tien_thue"` // VAT amount
	TongCong  string `json:"tong_cong"` // Total
}

type misaInvoicePayload struct {
	RefID         string            `json:"ref_id"` // idempotency key on MISA's side
	InvoiceSeries string            `json:"invoice_series,omitempty"`
	TemplateCode  string            `json:"template_code,omitempty"`
	InvoiceDate   string            `json:"invoice_date"`
	CurrencyCode  string            `json:"currency_code"`
	PaymentMethod string            `json:"payment_method"`
	SellerInfo    misaParty         `json:"seller_info"`
	BuyerInfo     misaParty         `json:"buyer_info"`
	Items         []misaItem        `json:"invoice_detail"`
	TongTienHang  string            `json:"tong_tien_hang"`  // Subtotal
	TongTienThue  string            `json:"tong_tien_thue"`  // Total VAT
	TongThanhToan string            `json:"tong_thanh_toan"` // Total payment
	ReplacedRef   string            `json:"replaced_transaction_id,omitempty"`
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
}

type misaInvoiceResult struct {
	TransactionID string `json:"transaction_id"`
	InvoiceNo     string `json:"invoice_no"`
	InvoiceSeries string `json:"invoice_series"`
	TemplateCode  string `json:"template_code"`
	LookupCode    string `json:"ma_tra_cuu"`
	Status        string `json:"status"`
}

type misaResponse struct {
	Success   bool               `json:"success"`
	ErrorCode string             `json:"error_code"`
	Message   string             `json:"message"`
	Data      *misaInvoiceResult `json:"data"`
}

// MISA status vocabulary.
var misaStatusTable = map[string]model.InvoiceStatus{
	"ChoKy":     model.StatusSigning,
	"DangPhatHanh": model.StatusSentToProvider,
	"DaPhatHanh": model.StatusSuccess,
	"PhatHanhLoi": model.StatusFailed,
	"DaHuy":     model.StatusCancelled,
	"DaThayThe": model.StatusReplaced,
}

var misaTransientCodes = map[string]bool{
	"HeThongBan":  true, // system busy
	"QuaTaiHeThong": true,
}

// MISAAdapter issues invoices through the MISA meInvoice service. MISA does
// not host invoice documents for partner download, so FetchDocument reports
// unsupported.
type MISAAdapter struct {
	client     *http.Client
	tokens     *token.Cache
	translator *StatusTranslator
}

// NewMISAAdapter creates a new MISA adapter.
func NewMISAAdapter(tokens *token.Cache) *MISAAdapter {
	return &MISAAdapter{
		client:     &http.Client{},
		tokens:     tokens,
		translator: NewStatusTranslator(model.ProviderMISA, misaStatusTable),
	}
}

// Code returns the provider type
func (a *MISAAdapter) Code() model.Provider {
	return model.ProviderMISA
}

// Capabilities returns the operations MISA offers.
func (a *MISAAdapter) Capabilities() CapabilitySet {
	return CapabilitySet{
		CapIssue:        true,
		CapCancel:       true,
		CapReplace:      true,
		CapStatus:       true,
		CapAuthenticate: true,
	}
}

// Translator returns the MISA status mapping table.
func (a *MISAAdapter) Translator() *StatusTranslator {
	return a.translator
}

// Authenticate performs the MISA login call.
func (a *MISAAdapter) Authenticate(ctx context.Context, cfg *Config) (*token.Token, error) {
	if cfg.REST == nil {
		return nil, model.NewConfigurationError(cfg.MerchantID, a.Code(), "missing REST credentials")
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "authenticate", http.MethodPost,
		cfg.REST.BaseURL+"/auth/token", nil,
		misaLoginRequest{Username: cfg.REST.Username, Password: cfg.REST.Password})
	if err != nil {
		return nil, model.NewAuthError(a.Code(), "login call failed", err)
	}
	var body misaLoginResponse
	if err := json.Unmarshal(res.body, &body); err != nil || !body.Success || body.Token == "" {
		return nil, model.NewAuthError(a.Code(), "login rejected", err)
	}
	// MISA tokens carry no expiry in the response; the documented session
	// lifetime is 24h, refreshed well before that.
	return &token.Token{
		Value:     body.Token,
		ExpiresAt: time.Now().Add(12 * time.Hour),
	}, nil
}

func (a *MISAAdapter) bearer(ctx context.Context, cfg *Config) (map[string]string, error) {
	tok, err := a.tokens.Get(ctx, token.Key(cfg.MerchantID, a.Code()), func(ctx context.Context) (*token.Token, error) {
		return a.Authenticate(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + tok.Value}, nil
}

// Issue submits a new invoice and returns the final result synchronously.
func (a *MISAAdapter) Issue(ctx context.Context, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	return a.send(ctx, "issue", buildMISAPayload(req, cfg), cfg)
}

// Replace issues a replacement invoice referencing the replaced one.
func (a *MISAAdapter) Replace(ctx context.Context, oldRef string, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	payload := buildMISAPayload(req, cfg)
	payload.ReplacedRef = oldRef
	return a.send(ctx, "replace", payload, cfg)
}

func (a *MISAAdapter) send(ctx context.Context, op string, payload *misaInvoicePayload, cfg *Config) (*model.InvoiceResponse, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return timeoutResponse(err), err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), op, http.MethodPost,
		cfg.REST.BaseURL+"/api/v1/invoices", headers, payload)
	if err != nil {
		return timeoutResponse(err), err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return timeoutResponse(aerr), aerr
	}
	return a.parse(res)
}

// Cancel voids an issued invoice.
func (a *MISAAdapter) Cancel(ctx context.Context, providerRef, reason string, cfg *Config) (*model.InvoiceResponse, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return timeoutResponse(err), err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "cancel", http.MethodPost,
		cfg.REST.BaseURL+"/api/v1/invoices/"+providerRef+"/cancel", headers,
		map[string]string{"ly_do": reason})
	if err != nil {
		return timeoutResponse(err), err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return timeoutResponse(aerr), aerr
	}
	return a.parse(res)
}

// GetStatus polls MISA for the canonical invoice status.
func (a *MISAAdapter) GetStatus(ctx context.Context, providerRef string, cfg *Config) (model.InvoiceStatus, error) {
	headers, err := a.bearer(ctx, cfg)
	if err != nil {
		return model.StatusFailed, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res, err := doJSON(ctx, a.client, a.Code(), "status", http.MethodGet,
		cfg.REST.BaseURL+"/api/v1/invoices/"+providerRef, headers, nil)
	if err != nil {
		return model.StatusFailed, err
	}
	if aerr := authRejected(res, a.tokens, a.Code(), cfg.MerchantID); aerr != nil {
		return model.StatusFailed, aerr
	}
	var body misaResponse
	if err := json.Unmarshal(res.body, &body); err != nil || body.Data == nil {
		return model.StatusFailed, model.NewProviderError(a.Code(), "BAD_PAYLOAD", "malformed status response", false)
	}
	status, mapped := a.translator.Translate(body.Data.Status)
	if !mapped {
		return model.StatusFailed, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED",
			"provider status "+body.Data.Status+" is not in the mapping table", false)
	}
	return status, nil
}

// FetchDocument is not offered by MISA.
func (a *MISAAdapter) FetchDocument(ctx context.Context, providerRef string, kind DocumentKind, cfg *Config) (*Document, error) {
	return nil, model.NewDomainError(model.DomainUnsupported, "provider MISA does not host invoice documents")
}

func (a *MISAAdapter) parse(res *httpResult) (*model.InvoiceResponse, error) {
	var body misaResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		perr := model.NewProviderError(a.Code(), "BAD_PAYLOAD", "unparsable provider payload", false)
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    perr.Message,
			RawPayload: res.body,
		}, perr
	}

	if !body.Success || res.status != http.StatusOK {
		perr := model.NewProviderError(a.Code(), body.ErrorCode, body.Message, misaTransientCodes[body.ErrorCode])
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    body.Message,
			RawPayload: res.body,
		}, perr
	}
	if body.Data == nil {
		perr := model.NewProviderError(a.Code(), "EMPTY_RESULT", "provider returned empty result", false)
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    perr.Message,
			RawPayload: res.body,
		}, perr
	}

	resp := &model.InvoiceResponse{
		Outcome:         model.OutcomeSuccess,
		TransactionCode: body.Data.TransactionID,
		InvoiceNumber:   body.Data.InvoiceNo,
		InvoiceSeries:   body.Data.InvoiceSeries,
		Template:        body.Data.TemplateCode,
		LookupCode:      body.Data.LookupCode,
		Message:         body.Message,
		RawPayload:      res.body,
	}
	if body.Data.Status != "" {
		status, mapped := a.translator.Translate(body.Data.Status)
		if !mapped {
			resp.Outcome = model.OutcomeFailed
			resp.TranslatorDiagnostic = true
			resp.Message = "unmapped provider status " + body.Data.Status
			return resp, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED", resp.Message, false)
		}
		switch status {
		case model.StatusSigning, model.StatusSentToProvider:
			resp.Outcome = model.OutcomePending
		case model.StatusFailed:
			resp.Outcome = model.OutcomeFailed
			return resp, model.NewProviderError(a.Code(), "PhatHanhLoi", "issuance failed at provider", false)
		}
	}
	return resp, nil
}

func buildMISAPayload(req *model.InvoiceRequest, cfg *Config) *misaInvoicePayload {
	payload := &misaInvoicePayload{
		RefID:         req.ClientRequestID,
		InvoiceSeries: cfg.Series,
		TemplateCode:  cfg.Template,
		InvoiceDate:   req.IssueDate.Format("02/01/2006"),
		CurrencyCode:  req.Currency,
		PaymentMethod: defaultPaymentMethod(req.PaymentMethod),
		SellerInfo:    misaPartyFrom(req.Seller),
		BuyerInfo:     misaPartyFrom(req.Buyer),
		TongTienHang:  req.SubtotalAmount.String(),
		TongTienThue:  req.TaxAmount.String(),
		TongThanhToan: req.TotalAmount.String(),
		CustomFields:  req.Extra,
	}
	for i, item := range req.Items {
		lineNo := item.Number
		if lineNo == 0 {
			lineNo = i + 1
		}
		payload.Items = append(payload.Items, misaItem{
			STT:       lineNo,
			MaHang:    item.Code,
			TenHang:   item.Name,
			DVT:       item.Unit,
			SoLuong:   item.Quantity.String(),
			DonGia:    item.UnitPrice.String(),
			ChietKhau: item.Discount.String(),
			TienCK:    item.DiscountAmt.String(),
			ThanhTien: item.Amount.String(),
			ThueSuat:  int(model.NearestVATRate(item.VATRate)),
			TienThue:  item.VATAmount.String(),
			TongCong:  item.Total.String(),
		})
	}
	return payload
}

func misaPartyFrom(p model.Party) misaParty {
	return misaParty{
		MST:         p.TaxID,
		CompanyName: p.Name,
		Address:     p.Address,
		Phone:       p.Phone,
		Email:       p.Email,
		BankAccount: p.BankAccount,
		BankName:    p.BankName,
	}
}
