// Package server exposes the hub over HTTP: merchants submit canonical
// invoices and query their lifecycle; the provider work itself happens
// asynchronously on the delivery queue.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rezonia/einvoice-hub/internal/lifecycle"
	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider"
)

const merchantHeader = "X-Merchant-ID"

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config     *Config
	router     *gin.Engine
	controller *lifecycle.Controller
	registry   *provider.Registry
}

// NewServer creates a new API server
func NewServer(config *Config, controller *lifecycle.Controller, registry *provider.Registry) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:     config,
		router:     router,
		controller: controller,
		registry:   registry,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	v1.GET("/providers", s.handleProviders)

	invoices := v1.Group("/invoices")
	invoices.Use(requireMerchant())
	{
		invoices.POST("", s.handleSubmit)
		invoices.GET("/:id", s.handleGet)
		invoices.GET("/:id/transactions", s.handleTransactions)
		invoices.POST("/:id/cancel", s.handleCancel)
		invoices.POST("/:id/replace", s.handleReplace)
		invoices.GET("/:id/document", s.handleDocument)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// requireMerchant extracts the calling merchant from the request header.
// Every invoice route is scoped to this merchant.
func requireMerchant() gin.HandlerFunc {
	return func(c *gin.Context) {
		merchantID := c.GetHeader(merchantHeader)
		if merchantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing " + merchantHeader + " header",
			})
			return
		}
		c.Set("merchant_id", merchantID)
		c.Next()
	}
}

func merchantID(c *gin.Context) string {
	return c.GetString("merchant_id")
}

func invoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req model.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request body", Details: err.Error()})
		return
	}
	req.MerchantID = merchantID(c)

	inv, created, err := s.controller.Submit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	c.JSON(status, SubmitResponse{
		Invoice:  invoiceView(inv),
		Created:  created,
		Warnings: req.VerifyTotals(),
	})
}

func (s *Server) handleGet(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	inv, entries, err := s.controller.Get(c.Request.Context(), merchantID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, InvoiceDetailResponse{
		Invoice: invoiceView(inv),
		Queue:   queueViews(entries),
	})
}

func (s *Server) handleTransactions(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	txs, err := s.controller.Ledger(c.Request.Context(), merchantID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, LedgerResponse{Transactions: txs})
}

func (s *Server) handleCancel(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	// The reason is optional; an empty body is fine.
	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.controller.Cancel(c.Request.Context(), merchantID(c), id, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancel accepted"})
}

func (s *Server) handleReplace(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	var req model.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request body", Details: err.Error()})
		return
	}

	inv, err := s.controller.Replace(c.Request.Context(), merchantID(c), id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, SubmitResponse{
		Invoice:  invoiceView(inv),
		Created:  true,
		Warnings: req.VerifyTotals(),
	})
}

func (s *Server) handleDocument(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	kind := provider.DocumentKind(c.DefaultQuery("type", string(provider.DocumentPDF)))
	if kind != provider.DocumentPDF && kind != provider.DocumentXML {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported document type"})
		return
	}

	doc, err := s.controller.FetchDocument(c.Request.Context(), merchantID(c), id, kind)
	if err != nil {
		writeError(c, err)
		return
	}
	if doc.URL != "" {
		c.JSON(http.StatusOK, doc)
		return
	}
	c.Data(http.StatusOK, doc.MimeType, doc.Content)
}

func (s *Server) handleProviders(c *gin.Context) {
	var out []ProviderInfo
	for _, code := range s.registry.Codes() {
		adapter, err := s.registry.Resolve(code)
		if err != nil {
			continue
		}
		var caps []string
		for _, cap := range adapter.Capabilities().List() {
			caps = append(caps, string(cap))
		}
		out = append(out, ProviderInfo{
			Code:         code,
			Capabilities: caps,
			StatusCodes:  adapter.Translator().Codes(),
		})
	}
	c.JSON(http.StatusOK, ProvidersResponse{Providers: out})
}

// writeError maps the error taxonomy to HTTP statuses.
func writeError(c *gin.Context, err error) {
	kind := model.ErrorKind(err)
	status := http.StatusInternalServerError

	switch kind {
	case "VALIDATION":
		status = http.StatusBadRequest
	case "CONFIGURATION":
		status = http.StatusUnprocessableEntity
	case "AUTH":
		status = http.StatusBadGateway
	case "TRANSPORT":
		status = http.StatusBadGateway
	case "PROVIDER":
		status = http.StatusBadGateway
	case "DOMAIN":
		var domainErr *model.DomainError
		status = http.StatusConflict
		if errors.As(err, &domainErr) {
			switch domainErr.Code {
			case model.DomainNotFound:
				status = http.StatusNotFound
			case model.DomainUnsupported:
				status = http.StatusUnprocessableEntity
			}
		}
	}

	c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
}
