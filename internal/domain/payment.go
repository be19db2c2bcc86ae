package domain

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusApproved  PaymentStatus = "approved"
	StatusRejected  PaymentStatus = "rejected"
	StatusCancelled PaymentStatus = "cancelled"
)

// Valid reports whether s belongs to the canonical status set.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodPix        PaymentMethod = "pix"
	MethodBoleto     PaymentMethod = "boleto"
	MethodCreditCard PaymentMethod = "credit_card"
)

// Normalize returns the method in lower case, defaulting to PIX when empty.
func (m PaymentMethod) Normalize() PaymentMethod {
	normalized := PaymentMethod(strings.ToLower(strings.TrimSpace(string(m))))
	if normalized == "" {
		return MethodPix
	}
	return normalized
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"tax_id,omitempty"`
}

// TaxIDDigits returns the CPF/CNPJ stripped of every non-digit character.
func (c Customer) TaxIDDigits() string {
	var b strings.Builder
	for _, r := range c.TaxID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TaxIDType classifies the document by length: 14 digits is a CNPJ, anything else a CPF.
func (c Customer) TaxIDType() string {
	if len(c.TaxIDDigits()) == 14 {
		return "CNPJ"
	}
	return "CPF"
}

type ChargeRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	ExternalReference string          `json:"external_reference"`
	Customer          Customer        `json:"customer"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	NotificationURL   string          `json:"notification_url,omitempty"`
}

func (r ChargeRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidChargeRequest)
	}
	switch r.PaymentMethod.Normalize() {
	case MethodPix, MethodBoleto, MethodCreditCard:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidChargeRequest, r.PaymentMethod)
	}
	return nil
}

type PaymentResponse struct {
	Success      bool          `json:"success"`
	PaymentID    string        `json:"payment_id,omitempty"`
	Status       PaymentStatus `json:"status"`
	QRCode       string        `json:"qr_code,omitempty"`
	QRCodeBase64 string        `json:"qr_code_base64,omitempty"`
	PaymentLink  string        `json:"payment_link,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Rejected builds the response returned when the provider refuses a charge.
func Rejected(reason string) *PaymentResponse {
	return &PaymentResponse{
		Success: false,
		Status:  StatusRejected,
		Error:   reason,
	}
}

// Notification is the canonical shape of an inbound provider webhook.
type Notification struct {
	ExternalReference string        `json:"external_reference"`
	Status            PaymentStatus `json:"status"`
	PaymentID         string        `json:"payment_id,omitempty"`
}

type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PixKey struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// PaymentAdapter is implemented once per payment provider.
//
// CreateCharge reports provider rejections through a non-success response and
// keeps the error return for transport failures. GetPaymentStatus returns an
// error for every failure. HandleNotification wraps ErrInvalidNotification
// when the payload lacks the charge object. TestConnection never fails.
type PaymentAdapter interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*PaymentResponse, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResponse, error)
	HandleNotification(ctx context.Context, payload []byte) (*Notification, error)
	TestConnection(ctx context.Context) ConnectionResult
}

// NotificationVerifier is implemented by adapters able to authenticate webhooks.
type NotificationVerifier interface {
	VerifyNotification(headers http.Header, payload []byte) error
}

// PixKeyCreator is implemented by adapters that can provision PIX address keys.
type PixKeyCreator interface {
	CreateRandomPixKey(ctx context.Context) (*PixKey, error)
}
