package sns

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type MockSNS struct {
	PublishFunc func(ctx context.Context, in *sns.PublishInput) (*sns.PublishOutput, error)
}

func (m *MockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, in)
}

func TestPublishPaymentProcessed(t *testing.T) {
	var captured *sns.PublishInput
	api := &MockSNS{
		PublishFunc: func(ctx context.Context, in *sns.PublishInput) (*sns.PublishOutput, error) {
			captured = in
			return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	c := NewClientWithAPI(api, "arn:aws:sns:us-east-1:000000000000:payments")

	event := domain.PaymentProcessedEvent{
		ChargeID:          "charge-1",
		CompanyID:         "company-1",
		Provider:          domain.ProviderAsaas,
		ExternalReference: "CHG-1",
		Status:            domain.StatusApproved,
		ProcessedAt:       time.Now(),
	}
	if err := c.PublishPaymentProcessed(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if aws.ToString(captured.TopicArn) != "arn:aws:sns:us-east-1:000000000000:payments" {
		t.Errorf("unexpected topic %s", aws.ToString(captured.TopicArn))
	}
	if aws.ToString(captured.MessageAttributes["event_type"].StringValue) != "payment_processed" {
		t.Errorf("missing event_type attribute")
	}

	var got domain.PaymentProcessedEvent
	if err := json.Unmarshal([]byte(aws.ToString(captured.Message)), &got); err != nil {
		t.Fatal(err)
	}
	if got.ChargeID != "charge-1" || got.Status != domain.StatusApproved {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestPublishPaymentProcessed_NoTopic(t *testing.T) {
	api := &MockSNS{
		PublishFunc: func(ctx context.Context, in *sns.PublishInput) (*sns.PublishOutput, error) {
			t.Fatal("publish must not be called without a topic")
			return nil, nil
		},
	}
	if err := NewClientWithAPI(api, "").PublishPaymentProcessed(context.Background(), domain.PaymentProcessedEvent{}); err == nil {
		t.Error("expected error")
	}
}
