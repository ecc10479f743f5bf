package model

import "fmt"

// Provider identifies an external e-invoice authority.
type Provider string

const (
	ProviderVNPT    Provider = "VNPT"
	ProviderViettel Provider = "VIETTEL"
	ProviderMISA    Provider = "MISA"
	ProviderFPT     Provider = "FPT"
	ProviderUnknown Provider = "UNKNOWN"
)

// Providers is the closed set of supported providers.
var Providers = []Provider{
	ProviderVNPT,
	ProviderViettel,
	ProviderMISA,
	ProviderFPT,
}

// ParseProvider normalizes a provider code string.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return ProviderUnknown, fmt.Errorf("unknown provider code %q", s)
}
