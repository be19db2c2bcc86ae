package stripe

import (
	"strings"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
)

var statusMap = map[string]domain.PaymentStatus{
	"complete":                domain.StatusApproved,
	"paid":                    domain.StatusApproved,
	"succeeded":               domain.StatusApproved,
	"no_payment_required":     domain.StatusApproved,
	"open":                    domain.StatusPending,
	"unpaid":                  domain.StatusPending,
	"processing":              domain.StatusPending,
	"requires_payment_method": domain.StatusPending,
	"requires_confirmation":   domain.StatusPending,
	"requires_action":         domain.StatusPending,
	"requires_capture":        domain.StatusPending,
	"failed":                  domain.StatusRejected,
	"expired":                 domain.StatusCancelled,
	"canceled":                domain.StatusCancelled,
}

func mapStatus(native string) domain.PaymentStatus {
	if status, ok := statusMap[strings.ToLower(native)]; ok {
		return status
	}
	return domain.StatusPending
}

type checkoutSession struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	URL               string            `json:"url"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// canonicalStatus combines session and payment status: a completed session
// paid by boleto stays pending until the async payment clears.
func (s checkoutSession) canonicalStatus() domain.PaymentStatus {
	if s.Status == "expired" {
		return domain.StatusCancelled
	}
	if s.PaymentStatus != "" {
		return mapStatus(s.PaymentStatus)
	}
	return mapStatus(s.Status)
}

type eventObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data *struct {
		Object *eventObject `json:"object"`
	} `json:"data"`
}

// eventStatus reports the canonical status an event implies; false means the
// event type carries no payment outcome.
func eventStatus(eventType string, obj *eventObject) (domain.PaymentStatus, bool) {
	switch eventType {
	case "checkout.session.completed":
		return checkoutSession{Status: obj.Status, PaymentStatus: obj.PaymentStatus}.canonicalStatus(), true
	case "checkout.session.async_payment_succeeded", "payment_intent.succeeded":
		return domain.StatusApproved, true
	case "checkout.session.async_payment_failed", "payment_intent.payment_failed":
		return domain.StatusRejected, true
	case "checkout.session.expired", "payment_intent.canceled":
		return domain.StatusCancelled, true
	}
	return "", false
}

type balance struct {
	Object   string `json:"object"`
	LiveMode bool   `json:"livemode"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
