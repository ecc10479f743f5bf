package provider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

// FPT exposes a SOAP/XML endpoint. Authentication is a pre-shared partner
// pair carried in custom headers; the invoice body itself travels AES-CBC
// encrypted inside the envelope, per the partner contract. Issuance is
// synchronous.
type fptEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    fptBody  `xml:"Body"`
}

type fptBody struct {
	Request *fptRequest `xml:"IssueInvoiceRequest,omitempty"`
}

type fptRequest struct {
	Operation   string `xml:"Operation"`
	RefID       string `xml:"RefId"`
	ReplacedRef string `xml:"ReplacedRef,omitempty"`
	Reason      string `xml:"Reason,omitempty"`
	// Payload is the AES-encrypted, base64-encoded invoice XML.
	Payload string `xml:"Payload,omitempty"`
}

type fptResponseEnvelope struct {
	XMLName xml.Name    `xml:"Envelope"`
	Body    fptRespBody `xml:"Body"`
}

type fptRespBody struct {
	Response *fptResponse `xml:"IssueInvoiceResponse"`
}

type fptResponse struct {
	ResultCode    string `xml:"ResultCode"`
	ResultMessage string `xml:"ResultMessage"`
	TransactionID string `xml:"TransactionId"`
	InvoiceNo     string `xml:"InvoiceNo"`
	InvoiceSeries string `xml:"InvoiceSeries"`
	LookupCode    string `xml:"LookupCode"`
	SecurityCode  string `xml:"SecurityCode"`
	Status        string `xml:"Status"`
	DocumentURL   string `xml:"DocumentUrl"`
}

// fptInvoice is the inner invoice document in FPT's EInvoice shape.
type fptInvoice struct {
	XMLName       xml.Name  `xml:"EInvoice"`
	RefID         string    `xml:"RefId"`
	InvoiceSeries string    `xml:"InvoiceSeries,omitempty"`
	TemplateCode  string    `xml:"TemplateCode,omitempty"`
	InvoiceDate   string    `xml:"InvoiceDate"`
	Currency      string    `xml:"Currency"`
	PaymentMethod string    `xml:"PaymentMethod"`
	Seller        fptParty  `xml:"Seller"`
	Buyer         fptParty  `xml:"Buyer"`
	Items         []fptItem `xml:"Items>Item"`
	SubTotal      string    `xml:"SubTotal"`
	TotalVAT      string    `xml:"TotalVat"`
	GrandTotal    string    `xml:"GrandTotal"`
}

type fptParty struct {
	Name        string `xml:"Name"`
	TaxID       string `xml:"TaxId"`
	Address     string `xml:"Address,omitempty"`
	Phone       string `xml:"Phone,omitempty"`
	Email       string `xml:"Email,omitempty"`
	BankAccount string `xml:"BankAccount,omitempty"`
	BankName    string `xml:"BankName,omitempty"`
}

type fptItem struct {
	LineNo      int    `xml:"LineNo"`
	Code        string `xml:"Code,omitempty"`
	Name        string `xml:"Name"`
	Unit        string `xml:"Unit,omitempty"`
	Quantity    string `xml:"Quantity"`
	UnitPrice   string `xml:"UnitPrice"`
	DiscountAmt string `xml:"DiscountAmount,omitempty"`
	Amount      string `xml:"Amount"`
	VATRate     int    `xml:"VatRate"`
	VATAmount   string `xml:"VatAmount"`
	Total       string `xml:"Total"`
}

// FPT status vocabulary (numeric result-style codes).
var fptStatusTable = map[string]model.InvoiceStatus{
	"01": model.StatusSigning,
	"02": model.StatusSentToProvider,
	"00": model.StatusSuccess,
	"96": model.StatusFailed,
	"90": model.StatusCancelled,
	"91": model.StatusReplaced,
}

var fptTransientCodes = map[string]bool{
	"98": true, // system busy
	"99": true, // temporary failure
}

// FPTAdapter issues invoices through the FPT eInvoice SOAP service. There
// is no login round-trip: the partner pair authenticates every call, so
// Authenticate reports unsupported.
type FPTAdapter struct {
	client     *http.Client
	translator *StatusTranslator
}

// NewFPTAdapter creates a new FPT adapter.
func NewFPTAdapter() *FPTAdapter {
	return &FPTAdapter{
		client:     &http.Client{},
		translator: NewStatusTranslator(model.ProviderFPT, fptStatusTable),
	}
}

// Code returns the provider type
func (a *FPTAdapter) Code() model.Provider {
	return model.ProviderFPT
}

// Capabilities returns the operations FPT offers.
func (a *FPTAdapter) Capabilities() CapabilitySet {
	return CapabilitySet{
		CapIssue:    true,
		CapCancel:   true,
		CapReplace:  true,
		CapStatus:   true,
		CapDocument: true,
	}
}

// Translator returns the FPT status mapping table.
func (a *FPTAdapter) Translator() *StatusTranslator {
	return a.translator
}

// Authenticate is not offered by FPT; the partner pair rides every call.
func (a *FPTAdapter) Authenticate(ctx context.Context, cfg *Config) (*token.Token, error) {
	return nil, model.NewDomainError(model.DomainUnsupported, "provider FPT authenticates per call")
}

// Issue submits a new invoice and returns the final result synchronously.
func (a *FPTAdapter) Issue(ctx context.Context, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	return a.call(ctx, cfg, &fptRequest{Operation: "ISSUE", RefID: req.ClientRequestID}, req)
}

// Replace issues a replacement invoice referencing the replaced one.
func (a *FPTAdapter) Replace(ctx context.Context, oldRef string, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error) {
	return a.call(ctx, cfg, &fptRequest{Operation: "REPLACE", RefID: req.ClientRequestID, ReplacedRef: oldRef}, req)
}

// Cancel voids an issued invoice.
func (a *FPTAdapter) Cancel(ctx context.Context, providerRef, reason string, cfg *Config) (*model.InvoiceResponse, error) {
	return a.call(ctx, cfg, &fptRequest{Operation: "CANCEL", RefID: providerRef, Reason: reason}, nil)
}

// GetStatus polls FPT for the canonical invoice status.
func (a *FPTAdapter) GetStatus(ctx context.Context, providerRef string, cfg *Config) (model.InvoiceStatus, error) {
	resp, err := a.call(ctx, cfg, &fptRequest{Operation: "STATUS", RefID: providerRef}, nil)
	if err != nil {
		return model.StatusFailed, err
	}
	if resp.TranslatorDiagnostic {
		return model.StatusFailed, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED", resp.Message, false)
	}
	switch resp.Outcome {
	case model.OutcomeSuccess:
		return model.StatusSuccess, nil
	case model.OutcomePending:
		return model.StatusSentToProvider, nil
	}
	return model.StatusFailed, nil
}

// FetchDocument returns the hosted document URL from the status response.
func (a *FPTAdapter) FetchDocument(ctx context.Context, providerRef string, kind DocumentKind, cfg *Config) (*Document, error) {
	resp, err := a.call(ctx, cfg, &fptRequest{Operation: "DOCUMENT", RefID: providerRef}, nil)
	if err != nil {
		return nil, err
	}
	if resp.DocumentURL == "" {
		return nil, model.NewProviderError(a.Code(), "NO_DOCUMENT", "provider returned no document URL", false)
	}
	return &Document{Kind: kind, URL: resp.DocumentURL}, nil
}

func (a *FPTAdapter) call(ctx context.Context, cfg *Config, req *fptRequest, inv *model.InvoiceRequest) (*model.InvoiceResponse, error) {
	if cfg.SOAP == nil {
		err := model.NewConfigurationError(cfg.MerchantID, a.Code(), "missing SOAP credentials")
		return &model.InvoiceResponse{Outcome: model.OutcomeFailed, Message: err.Error()}, err
	}
	if inv != nil {
		payload, err := a.encryptInvoice(inv, cfg)
		if err != nil {
			cerr := model.NewConfigurationError(cfg.MerchantID, a.Code(), "payload encryption failed: "+err.Error())
			return &model.InvoiceResponse{Outcome: model.OutcomeFailed, Message: cerr.Error()}, cerr
		}
		req.Payload = payload
	}

	body, err := xml.Marshal(fptEnvelope{Body: fptBody{Request: req}})
	if err != nil {
		terr := model.NewTransportError(a.Code(), req.Operation, false, err)
		return timeoutResponse(terr), terr
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	headers := map[string]string{
		"Content-Type":         "text/xml; charset=utf-8",
		"SOAPAction":           "urn:einvoice#" + req.Operation,
		"X-FPT-Partner-Code":   cfg.SOAP.PartnerCode,
		"X-FPT-Partner-Secret": cfg.SOAP.PartnerSecret,
	}
	res, err := doRequest(ctx, a.client, a.Code(), req.Operation, http.MethodPost, cfg.SOAP.Endpoint, headers, append([]byte(xml.Header), body...))
	if err != nil {
		return timeoutResponse(err), err
	}
	return a.parse(res)
}

func (a *FPTAdapter) parse(res *httpResult) (*model.InvoiceResponse, error) {
	var envelope fptResponseEnvelope
	if err := xml.Unmarshal(res.body, &envelope); err != nil || envelope.Body.Response == nil {
		perr := model.NewProviderError(a.Code(), "BAD_PAYLOAD", "unparsable provider envelope", false)
		return &model.InvoiceResponse{
			Outcome:    model.OutcomeFailed,
			Message:    perr.Message,
			RawPayload: res.body,
		}, perr
	}
	body := envelope.Body.Response

	resp := &model.InvoiceResponse{
		TransactionCode: body.TransactionID,
		InvoiceNumber:   body.InvoiceNo,
		InvoiceSeries:   body.InvoiceSeries,
		LookupCode:      body.LookupCode,
		SecurityCode:    body.SecurityCode,
		DocumentURL:     body.DocumentURL,
		Message:         body.ResultMessage,
		RawPayload:      res.body,
	}

	code := body.Status
	if code == "" {
		code = body.ResultCode
	}
	status, mapped := a.translator.Translate(code)
	if !mapped {
		if fptTransientCodes[code] {
			perr := model.NewProviderError(a.Code(), code, body.ResultMessage, true)
			resp.Outcome = model.OutcomeFailed
			return resp, perr
		}
		resp.Outcome = model.OutcomeFailed
		resp.TranslatorDiagnostic = true
		resp.Message = "unmapped provider status " + code
		return resp, model.NewProviderError(a.Code(), "TRANSLATOR_UNMAPPED", resp.Message, false)
	}
	switch status {
	case model.StatusSuccess, model.StatusCancelled, model.StatusReplaced:
		resp.Outcome = model.OutcomeSuccess
	case model.StatusSigning, model.StatusSentToProvider:
		resp.Outcome = model.OutcomePending
	default:
		resp.Outcome = model.OutcomeFailed
		return resp, model.NewProviderError(a.Code(), code, body.ResultMessage, false)
	}
	return resp, nil
}

// encryptInvoice serializes the inner invoice XML and encrypts it with
// AES-CBC under the partner payload key, IV prepended, base64 encoded.
func (a *FPTAdapter) encryptInvoice(req *model.InvoiceRequest, cfg *Config) (string, error) {
	doc, err := xml.Marshal(buildFPTInvoice(req, cfg))
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cfg.SOAP.PayloadKey)
	if err != nil {
		return "", fmt.Errorf("bad payload key: %w", err)
	}

	plaintext := pkcs7Pad(doc, aes.BlockSize)
	ciphertext := make([]byte, aes.BlockSize+len(plaintext))
	iv := ciphertext[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext[aes.BlockSize:], plaintext)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func buildFPTInvoice(req *model.InvoiceRequest, cfg *Config) *fptInvoice {
	doc := &fptInvoice{
		RefID:         req.ClientRequestID,
		InvoiceSeries: cfg.Series,
		TemplateCode:  cfg.Template,
		InvoiceDate:   req.IssueDate.Format(time.RFC3339),
		Currency:      req.Currency,
		PaymentMethod: defaultPaymentMethod(req.PaymentMethod),
		Seller:        fptPartyFrom(req.Seller),
		Buyer:         fptPartyFrom(req.Buyer),
		SubTotal:      req.SubtotalAmount.String(),
		TotalVAT:      req.TaxAmount.String(),
		GrandTotal:    req.TotalAmount.String(),
	}
	for i, item := range req.Items {
		lineNo := item.Number
		if lineNo == 0 {
			lineNo = i + 1
		}
		doc.Items = append(doc.Items, fptItem{
			LineNo:      lineNo,
			Code:        item.Code,
			Name:        item.Name,
			Unit:        item.Unit,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.String(),
			DiscountAmt: item.DiscountAmt.String(),
			Amount:      item.Amount.String(),
			VATRate:     int(model.NearestVATRate(item.VATRate)),
			VATAmount:   item.VATAmount.String(),
			Total:       item.Total.String(),
		})
	}
	return doc
}

func fptPartyFrom(p model.Party) fptParty {
	return fptParty{
		Name:        p.Name,
		TaxID:       p.TaxID,
		Address:     p.Address,
		Phone:       p.Phone,
		Email:       p.Email,
		BankAccount: p.BankAccount,
		BankName:    p.BankName,
	}
}
