package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Provider string

const (
	ProviderAsaas       Provider = "asaas"
	ProviderMercadoPago Provider = "mercadopago"
	ProviderStripe      Provider = "stripe"
)

// Providers lists every provider the service can build an adapter for.
var Providers = []Provider{ProviderAsaas, ProviderMercadoPago, ProviderStripe}

// ParseProvider resolves a provider name case-insensitively.
func ParseProvider(name string) (Provider, error) {
	normalized := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, p := range Providers {
		if p == normalized {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrProviderNotSupported, name)
}

// AdapterFactory builds a PaymentAdapter from a provider's stored JSON config.
type AdapterFactory interface {
	GetAdapter(provider Provider, config json.RawMessage, sandbox bool) (PaymentAdapter, error)
}
