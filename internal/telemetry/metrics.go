package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PaymentMetrics counts charge creations and webhook outcomes per provider.
type PaymentMetrics struct {
	chargesCreated    metric.Int64Counter
	webhooksProcessed metric.Int64Counter
}

func NewPaymentMetrics(provider metric.MeterProvider) (*PaymentMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("lucrocerto/payments")

	chargesCreated, err := meter.Int64Counter("payments.charges.created",
		metric.WithDescription("Charges sent to payment providers"))
	if err != nil {
		return nil, err
	}
	webhooksProcessed, err := meter.Int64Counter("payments.webhooks.processed",
		metric.WithDescription("Provider notifications handled"))
	if err != nil {
		return nil, err
	}

	return &PaymentMetrics{
		chargesCreated:    chargesCreated,
		webhooksProcessed: webhooksProcessed,
	}, nil
}

func (m *PaymentMetrics) ChargeCreated(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.chargesCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

func (m *PaymentMetrics) WebhookProcessed(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooksProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
