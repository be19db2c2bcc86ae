package asaas

import (
	"strings"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
)

const (
	billingPix        = "PIX"
	billingBoleto     = "BOLETO"
	billingCreditCard = "CREDIT_CARD"
)

func billingTypeFor(method domain.PaymentMethod) string {
	switch method.Normalize() {
	case domain.MethodBoleto:
		return billingBoleto
	case domain.MethodCreditCard:
		return billingCreditCard
	default:
		return billingPix
	}
}

var statusMap = map[string]domain.PaymentStatus{
	"RECEIVED":                     domain.StatusApproved,
	"CONFIRMED":                    domain.StatusApproved,
	"RECEIVED_IN_CASH":             domain.StatusApproved,
	"PENDING":                      domain.StatusPending,
	"OVERDUE":                      domain.StatusCancelled,
	"REFUNDED":                     domain.StatusCancelled,
	"REFUND_REQUESTED":             domain.StatusCancelled,
	"CHARGEBACK_REQUESTED":         domain.StatusCancelled,
	"CHARGEBACK_DISPUTE":           domain.StatusCancelled,
	"AWAITING_CHARGEBACK_REVERSAL": domain.StatusCancelled,
}

func mapStatus(native string) domain.PaymentStatus {
	if status, ok := statusMap[strings.ToUpper(native)]; ok {
		return status
	}
	return domain.StatusPending
}

type customer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	CpfCnpj string `json:"cpfCnpj"`
}

type customerList struct {
	TotalCount int        `json:"totalCount"`
	Data       []customer `json:"data"`
}

type paymentRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type payment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	Status            string  `json:"status"`
	DueDate           string  `json:"dueDate"`
	ExternalReference string  `json:"externalReference"`
	InvoiceURL        string  `json:"invoiceUrl"`
	BankSlipURL       string  `json:"bankSlipUrl"`
}

type pixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type notification struct {
	Event   string   `json:"event"`
	Payment *payment `json:"payment"`
}

type accountList struct {
	TotalCount int `json:"totalCount"`
	Data       []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type pixKey struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type pixKeyList struct {
	TotalCount int      `json:"totalCount"`
	Data       []pixKey `json:"data"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// message joins the provider's own error descriptions, falling back to the raw body.
func (e errorResponse) message(raw string) string {
	descriptions := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		if item.Description != "" {
			descriptions = append(descriptions, item.Description)
		}
	}
	if len(descriptions) == 0 {
		return raw
	}
	return strings.Join(descriptions, "; ")
}
