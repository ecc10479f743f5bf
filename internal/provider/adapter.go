package provider

import (
	"context"
	"fmt"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

// DocumentKind selects which rendition of an issued invoice to fetch.
type DocumentKind string

const (
	DocumentPDF DocumentKind = "pdf"
	DocumentXML DocumentKind = "xml"
)

// Document is a fetched invoice document: either a URL the provider hosts
// or the raw content, depending on what the provider offers.
type Document struct {
	Kind     DocumentKind `json:"kind"`
	URL      string       `json:"url,omitempty"`
	Content  []byte       `json:"-"`
	MimeType string       `json:"mime_type,omitempty"`
}

// Capability names one optional adapter operation.
type Capability string

const (
	CapIssue        Capability = "issue"
	CapCancel       Capability = "cancel"
	CapReplace      Capability = "replace"
	CapStatus       Capability = "status"
	CapDocument     Capability = "document"
	CapAuthenticate Capability = "authenticate"
)

// CapabilitySet is the set of operations an adapter offers.
type CapabilitySet map[Capability]bool

// Has reports whether the capability is offered.
func (cs CapabilitySet) Has(c Capability) bool {
	return cs[c]
}

// List returns the offered capabilities in declaration order.
func (cs CapabilitySet) List() []Capability {
	all := []Capability{CapIssue, CapCancel, CapReplace, CapStatus, CapDocument, CapAuthenticate}
	var out []Capability
	for _, c := range all {
		if cs[c] {
			out = append(out, c)
		}
	}
	return out
}

// Adapter translates the canonical model to and from one provider's wire
// format and issues the call.
//
// Error contract: adapters never leak a raw transport or protocol error.
// Every failure is classified into the model error taxonomy, and the
// returned response always carries the canonical outcome; the error (when
// non-nil) is the typed classification the controller records on the
// ledger. An operation the provider does not offer returns an UNSUPPORTED
// response and a nil error.
type Adapter interface {
	// Code returns the provider this adapter serves.
	Code() model.Provider

	// Capabilities returns the operations this provider offers.
	Capabilities() CapabilitySet

	// Issue submits a new invoice.
	Issue(ctx context.Context, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error)

	// Cancel voids an issued invoice identified by its provider reference.
	Cancel(ctx context.Context, providerRef, reason string, cfg *Config) (*model.InvoiceResponse, error)

	// Replace issues a new invoice that supersedes an existing one.
	Replace(ctx context.Context, oldRef string, req *model.InvoiceRequest, cfg *Config) (*model.InvoiceResponse, error)

	// GetStatus polls the provider for the canonical status of an invoice.
	GetStatus(ctx context.Context, providerRef string, cfg *Config) (model.InvoiceStatus, error)

	// FetchDocument retrieves a rendition of an issued invoice.
	FetchDocument(ctx context.Context, providerRef string, kind DocumentKind, cfg *Config) (*Document, error)

	// Authenticate obtains a session token for providers with an
	// authenticate-then-call flow.
	Authenticate(ctx context.Context, cfg *Config) (*token.Token, error)

	// Translator returns this provider's status mapping table.
	Translator() *StatusTranslator
}

// Registry resolves a provider code to its adapter. The set is closed and
// statically known; the registry itself never branches on provider logic.
type Registry struct {
	adapters map[model.Provider]Adapter
}

// NewRegistry creates the registry with the closed set of known adapters.
func NewRegistry(tokens *token.Cache) (*Registry, error) {
	return NewRegistryWith(
		NewVNPTAdapter(tokens),
		NewViettelAdapter(tokens),
		NewMISAAdapter(tokens),
		NewFPTAdapter(),
	)
}

// NewRegistryWith builds a registry from an explicit adapter set. Mainly
// for tests; production wiring goes through NewRegistry.
func NewRegistryWith(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[model.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Code()]; dup {
			return nil, fmt.Errorf("duplicate adapter for provider %s", a.Code())
		}
		// An unmapped table would silently translate everything to FAILED;
		// catch it at registration time.
		if err := a.Translator().Check(); err != nil {
			return nil, fmt.Errorf("provider %s: %w", a.Code(), err)
		}
		r.adapters[a.Code()] = a
	}
	return r, nil
}

// Resolve returns the adapter for a provider code.
func (r *Registry) Resolve(code model.Provider) (Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, model.NewConfigurationError("", code, "no adapter registered for provider")
	}
	return a, nil
}

// Codes lists the registered providers in the canonical declaration order.
func (r *Registry) Codes() []model.Provider {
	var codes []model.Provider
	for _, p := range model.Providers {
		if _, ok := r.adapters[p]; ok {
			codes = append(codes, p)
		}
	}
	return codes
}
