package mercadopago

import (
	"strings"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
)

var statusMap = map[string]domain.PaymentStatus{
	"approved":     domain.StatusApproved,
	"authorized":   domain.StatusApproved,
	"pending":      domain.StatusPending,
	"in_process":   domain.StatusPending,
	"in_mediation": domain.StatusPending,
	"rejected":     domain.StatusRejected,
	"cancelled":    domain.StatusCancelled,
	"refunded":     domain.StatusCancelled,
	"charged_back": domain.StatusCancelled,
}

func mapStatus(native string) domain.PaymentStatus {
	if status, ok := statusMap[strings.ToLower(native)]; ok {
		return status
	}
	return domain.StatusPending
}

type PaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
	Payer             Payer   `json:"payer"`
}

type Payer struct {
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name,omitempty"`
	Identification *Identification `json:"identification,omitempty"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type PaymentResponse struct {
	ID                 int64              `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	PointOfInteraction PointOfInteraction `json:"point_of_interaction"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
}

type PointOfInteraction struct {
	TransactionData TransactionData `json:"transaction_data"`
}

type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url"`
}

type TransactionDetails struct {
	ExternalResourceURL string `json:"external_resource_url"`
}

type PreferenceRequest struct {
	Items             []Item                   `json:"items"`
	Payer             *PreferencePayer         `json:"payer,omitempty"`
	ExternalReference string                   `json:"external_reference"`
	NotificationURL   string                   `json:"notification_url,omitempty"`
	PaymentMethods    PreferencePaymentMethods `json:"payment_methods"`
}

type Item struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type PreferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type PreferencePaymentMethods struct {
	ExcludedPaymentTypes []PaymentType `json:"excluded_payment_types,omitempty"`
}

type PaymentType struct {
	ID string `json:"id"`
}

type PreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type WebhookNotification struct {
	ID       any    `json:"id"`
	LiveMode bool   `json:"live_mode"`
	Type     string `json:"type"`
	Action   string `json:"action"`
	Data     *struct {
		ID string `json:"id"`
	} `json:"data"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	SiteID   string `json:"site_id"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Cause   []struct {
		Code        any    `json:"code"`
		Description string `json:"description"`
	} `json:"cause"`
}

func (e ErrorResponse) message(raw string) string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	for _, cause := range e.Cause {
		if cause.Description != "" && cause.Description != e.Message {
			parts = append(parts, cause.Description)
		}
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, "; ")
}
