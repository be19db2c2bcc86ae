package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotSupported  = errors.New("payment provider not supported")
	ErrInvalidConfig         = errors.New("invalid payment gateway config")
	ErrInvalidNotification   = errors.New("invalid notification payload")
	ErrNotificationIgnored   = errors.New("notification ignored")
	ErrInvalidSignature      = errors.New("invalid notification signature")
	ErrInvalidChargeRequest  = errors.New("invalid charge request")
	ErrChargeNotFound        = errors.New("charge not found")
	ErrChargeAlreadyPaid     = errors.New("charge already paid")
	ErrGatewayNotConfigured  = errors.New("payment gateway not configured")
	ErrOperationNotSupported = errors.New("operation not supported by provider")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
)

// RejectionError carries a provider refusal. Adapters turn it into a
// non-success PaymentResponse instead of returning it to callers.
type RejectionError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s rejected the request (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s rejected the request: %s", e.Provider, e.Message)
}

// RejectionResponse converts err into a rejected PaymentResponse when it is a
// RejectionError. The boolean is false for any other error.
func RejectionResponse(err error) (*PaymentResponse, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return Rejected(rejection.Message), true
	}
	return nil, false
}
