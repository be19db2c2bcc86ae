package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCustomerTaxID(t *testing.T) {
	tests := []struct {
		taxID      string
		wantDigits string
		wantType   string
	}{
		{"123.456.789-01", "12345678901", "CPF"},
		{"12.345.678/0001-90", "12345678000190", "CNPJ"},
		{"", "", "CPF"},
	}

	for _, tt := range tests {
		c := Customer{TaxID: tt.taxID}
		if got := c.TaxIDDigits(); got != tt.wantDigits {
			t.Errorf("TaxIDDigits(%q) = %q, want %q", tt.taxID, got, tt.wantDigits)
		}
		if got := c.TaxIDType(); got != tt.wantType {
			t.Errorf("TaxIDType(%q) = %q, want %q", tt.taxID, got, tt.wantType)
		}
	}
}

func TestPaymentMethodNormalize(t *testing.T) {
	if got := PaymentMethod("").Normalize(); got != MethodPix {
		t.Errorf("expected empty method to default to pix, got %s", got)
	}
	if got := PaymentMethod(" BOLETO ").Normalize(); got != MethodBoleto {
		t.Errorf("expected boleto, got %s", got)
	}
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("Asaas")
	if err != nil || p != ProviderAsaas {
		t.Fatalf("expected asaas, got %q (%v)", p, err)
	}

	_, err = ParseProvider("pagseguro")
	if !errors.Is(err, ErrProviderNotSupported) {
		t.Fatalf("expected ErrProviderNotSupported, got %v", err)
	}
}

func TestRejectionResponse(t *testing.T) {
	err := fmt.Errorf("create payment: %w", &RejectionError{Provider: ProviderAsaas, StatusCode: 400, Message: "CPF inválido"})

	resp, ok := RejectionResponse(err)
	if !ok {
		t.Fatal("expected wrapped rejection to be recognised")
	}
	if resp.Success || resp.Status != StatusRejected || resp.Error != "CPF inválido" {
		t.Errorf("unexpected response %+v", resp)
	}

	if _, ok := RejectionResponse(errors.New("dial tcp: timeout")); ok {
		t.Error("transport error must not become a rejection")
	}
}
