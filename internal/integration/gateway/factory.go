// Package gateway builds payment adapters from stored provider configuration.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/asaas"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/mercadopago"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/stripe"
)

type Options struct {
	Timeout time.Duration
	// BaseURLs overrides provider hosts, mainly for tests and local fakes.
	BaseURLs map[domain.Provider]string
}

// Factory is immutable after construction and safe for concurrent use.
type Factory struct {
	timeout  time.Duration
	baseURLs map[domain.Provider]string
}

func NewFactory(opts Options) *Factory {
	baseURLs := make(map[domain.Provider]string, len(opts.BaseURLs))
	for p, u := range opts.BaseURLs {
		baseURLs[p] = u
	}
	return &Factory{timeout: opts.Timeout, baseURLs: baseURLs}
}

func (f *Factory) GetAdapter(provider domain.Provider, config json.RawMessage, sandbox bool) (domain.PaymentAdapter, error) {
	switch provider {
	case domain.ProviderAsaas:
		var cfg asaas.Config
		if err := decode(provider, config, &cfg); err != nil {
			return nil, err
		}
		opts := []asaas.Option{asaas.WithTimeout(f.timeout)}
		if u, ok := f.baseURLs[provider]; ok {
			opts = append(opts, asaas.WithBaseURL(u))
		}
		adapter, err := asaas.New(cfg, sandbox, opts...)
		if err != nil {
			return nil, err
		}
		return adapter, nil

	case domain.ProviderMercadoPago:
		var cfg mercadopago.Config
		if err := decode(provider, config, &cfg); err != nil {
			return nil, err
		}
		opts := []mercadopago.Option{mercadopago.WithTimeout(f.timeout)}
		if u, ok := f.baseURLs[provider]; ok {
			opts = append(opts, mercadopago.WithBaseURL(u))
		}
		adapter, err := mercadopago.NewClient(cfg, sandbox, opts...)
		if err != nil {
			return nil, err
		}
		return adapter, nil

	case domain.ProviderStripe:
		var cfg stripe.Config
		if err := decode(provider, config, &cfg); err != nil {
			return nil, err
		}
		opts := []stripe.Option{stripe.WithTimeout(f.timeout)}
		if u, ok := f.baseURLs[provider]; ok {
			opts = append(opts, stripe.WithBaseURL(u))
		}
		adapter, err := stripe.New(cfg, sandbox, opts...)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotSupported, provider)
}

// GetAdapterByName resolves the provider name before building the adapter.
func (f *Factory) GetAdapterByName(name string, config json.RawMessage, sandbox bool) (domain.PaymentAdapter, error) {
	provider, err := domain.ParseProvider(name)
	if err != nil {
		return nil, err
	}
	return f.GetAdapter(provider, config, sandbox)
}

func decode(provider domain.Provider, raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: %s config is empty", domain.ErrInvalidConfig, provider)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s config: %v", domain.ErrInvalidConfig, provider, err)
	}
	return nil
}
