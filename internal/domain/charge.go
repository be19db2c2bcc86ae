package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Charge struct {
	ID                string          `json:"id"`
	CompanyID         string          `json:"company_id"`
	ContactID         string          `json:"contact_id,omitempty"`
	QuoteID           string          `json:"quote_id,omitempty"`
	TransactionID     string          `json:"transaction_id,omitempty"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Customer          Customer        `json:"customer"`
	Provider          Provider        `json:"provider,omitempty"`
	PaymentMethod     PaymentMethod   `json:"payment_method,omitempty"`
	ExternalReference string          `json:"external_reference"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	QRCode            string          `json:"qr_code,omitempty"`
	QRCodeBase64      string          `json:"qr_code_base64,omitempty"`
	PaymentLink       string          `json:"payment_link,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ApplyResponse copies the provider outcome onto the charge record.
func (c *Charge) ApplyResponse(provider Provider, method PaymentMethod, resp *PaymentResponse, now time.Time) {
	c.Provider = provider
	c.PaymentMethod = method
	c.Status = resp.Status
	c.ErrorMessage = resp.Error
	if resp.PaymentID != "" {
		c.ProviderPaymentID = resp.PaymentID
	}
	c.QRCode = resp.QRCode
	c.QRCodeBase64 = resp.QRCodeBase64
	c.PaymentLink = resp.PaymentLink
	c.UpdatedAt = now
}

// ChargePatch is the set of provider fields written back after a checkout.
type ChargePatch struct {
	Provider          Provider
	PaymentMethod     PaymentMethod
	ExternalReference string
	ProviderPaymentID string
	Status            PaymentStatus
	QRCode            string
	QRCodeBase64      string
	PaymentLink       string
	ErrorMessage      string
	UpdatedAt         time.Time
}

// PatchFrom captures the provider fields of c.
func PatchFrom(c Charge) ChargePatch {
	return ChargePatch{
		Provider:          c.Provider,
		PaymentMethod:     c.PaymentMethod,
		ExternalReference: c.ExternalReference,
		ProviderPaymentID: c.ProviderPaymentID,
		Status:            c.Status,
		QRCode:            c.QRCode,
		QRCodeBase64:      c.QRCodeBase64,
		PaymentLink:       c.PaymentLink,
		ErrorMessage:      c.ErrorMessage,
		UpdatedAt:         c.UpdatedAt,
	}
}

type GatewayConfig struct {
	CompanyID string          `json:"company_id"`
	Provider  Provider        `json:"provider"`
	IsActive  bool            `json:"is_active"`
	IsSandbox bool            `json:"is_sandbox"`
	Config    json.RawMessage `json:"config"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Contact struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Document  string `json:"document"`
}

// Customer builds the payer data for a charge from the contact.
func (c Contact) Customer() Customer {
	return Customer{Name: c.Name, Email: c.Email, TaxID: c.Document}
}

// Interfaces para Mocking e Desacoplamento
type ChargeRepository interface {
	Save(ctx context.Context, charge Charge) error
	GetByID(ctx context.Context, id string) (*Charge, error)
	// GetByExternalReference looks the reference up within one company only.
	GetByExternalReference(ctx context.Context, companyID, ref string) (*Charge, error)
	UpdatePayment(ctx context.Context, id string, patch ChargePatch) error
	UpdateStatus(ctx context.Context, id string, status PaymentStatus, providerPaymentID string, at time.Time) error
}

type GatewayConfigRepository interface {
	GetActive(ctx context.Context, companyID string, provider Provider) (*GatewayConfig, error)
}

type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*Contact, error)
}

// QuoteRepository and TransactionRepository report whether the write changed
// the record, so a repeated webhook leaves them untouched.
type QuoteRepository interface {
	MarkPaid(ctx context.Context, id string, at time.Time) (bool, error)
}

type TransactionRepository interface {
	MarkReceived(ctx context.Context, id string, at time.Time) (bool, error)
}

type PaymentProcessedEvent struct {
	ChargeID          string        `json:"charge_id"`
	CompanyID         string        `json:"company_id"`
	Provider          Provider      `json:"provider"`
	ExternalReference string        `json:"external_reference"`
	ProviderPaymentID string        `json:"provider_payment_id,omitempty"`
	Status            PaymentStatus `json:"status"`
	ProcessedAt       time.Time     `json:"processed_at"`
}

type PaymentEventPublisher interface {
	PublishPaymentProcessed(ctx context.Context, event PaymentProcessedEvent) error
}
