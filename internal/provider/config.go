package provider

import (
	"time"

	"github.com/rezonia/einvoice-hub/internal/model"
)

// RESTCredentials holds credentials for providers with a JSON-over-HTTPS
// API and a login call that returns a bearer token.
type RESTCredentials struct {
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SOAPCredentials holds credentials for providers with a SOAP/XML endpoint
// authenticated by a pre-shared partner pair in custom headers. PayloadKey
// is the AES key for the application-level payload encryption the partner
// contract requires.
type SOAPCredentials struct {
	Endpoint      string `json:"endpoint"`
	PartnerCode   string `json:"partner_code"`
	PartnerSecret string `json:"partner_secret"`
	PayloadKey    []byte `json:"payload_key,omitempty"` // base64 in config files
}

// Config is the per-(merchant, provider) configuration. Exactly one of
// REST or SOAP is set, matching the provider's wire protocol; Extra is the
// escape hatch for genuinely provider-unique settings.
type Config struct {
	MerchantID     string           `json:"merchant_id"`
	Provider       model.Provider   `json:"provider"`
	Active         bool             `json:"active"`
	Default        bool             `json:"default"`
	Template       string           `json:"template,omitempty"`
	Series         string           `json:"series,omitempty"`
	RequestTimeout time.Duration    `json:"request_timeout,omitempty"`
	REST           *RESTCredentials `json:"rest,omitempty"`
	SOAP           *SOAPCredentials `json:"soap,omitempty"`
	CertSerial     string           `json:"cert_serial,omitempty"`
	CertExpiresAt  *time.Time       `json:"cert_expires_at,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

const defaultRequestTimeout = 30 * time.Second

// Timeout returns the per-provider call timeout, defaulted when unset so
// no adapter call can block indefinitely.
func (c *Config) Timeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return defaultRequestTimeout
}
