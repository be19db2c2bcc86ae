package sns

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const eventTypePaymentProcessed = "payment_processed"

type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Client struct {
	snsClient API
	topicARN  string
}

func NewClient(cfg aws.Config, topicARN string) *Client {
	return NewClientWithAPI(sns.NewFromConfig(cfg), topicARN)
}

func NewClientWithAPI(api API, topicARN string) *Client {
	return &Client{
		snsClient: api,
		topicARN:  topicARN,
	}
}

func (c *Client) PublishPaymentProcessed(ctx context.Context, event domain.PaymentProcessedEvent) error {
	if c.topicARN == "" {
		return errors.New("sns topic arn is not configured")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = c.snsClient.Publish(ctx, &sns.PublishInput{
		Message:  aws.String(string(payload)),
		TopicArn: aws.String(c.topicARN),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventTypePaymentProcessed),
			},
			"provider": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Provider)),
			},
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Status)),
			},
		},
	})

	return err
}
