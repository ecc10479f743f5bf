package model

import (
	"errors"
	"fmt"
)

// ValidationError represents a malformed canonical request. Never retried;
// reported to the caller before any provider is contacted.
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// ProviderError represents an explicit provider rejection: a business rule
// failure, not a transport problem. Retried only when the provider marks it
// transient.
type ProviderError struct {
	Provider  Provider
	Code      string
	Message   string
	Transient bool
	Details   map[string]interface{}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] provider error %s: %s", e.Provider, e.Code, e.Message)
}

// NewProviderError creates a new provider error
func NewProviderError(provider Provider, code, message string, transient bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Transient: transient,
	}
}

// TransportError represents a connection failure, timeout or 5xx caught at
// the adapter boundary. Always retried per the backoff policy.
type TransportError struct {
	Provider Provider
	Op       string
	Timeout  bool
	Cause    error
}

func (e *TransportError) Error() string {
	kind := "transport failure"
	if e.Timeout {
		kind = "timeout"
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s during %s: %v", e.Provider, kind, e.Op, e.Cause)
	}
	return fmt.Sprintf("[%s] %s during %s", e.Provider, kind, e.Op)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new transport error
func NewTransportError(provider Provider, op string, timeout bool, cause error) *TransportError {
	return &TransportError{
		Provider: provider,
		Op:       op,
		Timeout:  timeout,
		Cause:    cause,
	}
}

// AuthError represents a credential or token failure. Fatal for the current
// attempt, retryable for the invoice with forced re-authentication.
type AuthError struct {
	Provider Provider
	Message  string
	Cause    error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] authentication failed: %s (%v)", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] authentication failed: %s", e.Provider, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NewAuthError creates a new auth error
func NewAuthError(provider Provider, message string, cause error) *AuthError {
	return &AuthError{
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// ConfigurationError means no usable provider configuration exists for the
// merchant. Fatal, surfaced immediately, never queued.
type ConfigurationError struct {
	MerchantID string
	Provider   Provider
	Message    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for merchant %s provider %s: %s", e.MerchantID, e.Provider, e.Message)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(merchantID string, provider Provider, message string) *ConfigurationError {
	return &ConfigurationError{
		MerchantID: merchantID,
		Provider:   provider,
		Message:    message,
	}
}

// Domain error codes
const (
	DomainInvalidTransition = "INVALID_TRANSITION"
	DomainNotFound          = "NOT_FOUND"
	DomainConflict          = "CONFLICT"
	DomainUnsupported       = "UNSUPPORTED_OPERATION"
)

// DomainError represents a lifecycle rule violation, such as cancelling an
// invoice that was never issued.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Retryable classifies an error for the scheduler: transport and auth
// failures always retry, provider errors retry only when transient,
// everything else is final.
func Retryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}
	return false
}

// ErrorKind names the taxonomy bucket of an error for the ledger.
func ErrorKind(err error) string {
	var validationErr *ValidationError
	var providerErr *ProviderError
	var transportErr *TransportError
	var authErr *AuthError
	var configErr *ConfigurationError
	var domainErr *DomainError
	switch {
	case errors.As(err, &validationErr):
		return "VALIDATION"
	case errors.As(err, &transportErr):
		return "TRANSPORT"
	case errors.As(err, &authErr):
		return "AUTH"
	case errors.As(err, &providerErr):
		return "PROVIDER"
	case errors.As(err, &configErr):
		return "CONFIGURATION"
	case errors.As(err, &domainErr):
		return "DOMAIN"
	}
	return "UNKNOWN"
}
