package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// QuoteRepository flags quotes as paid once their charge is approved.
type QuoteRepository struct {
	client    API
	tableName string
}

func NewQuoteRepository(client API, tableName string) *QuoteRepository {
	if tableName == "" {
		tableName = "quotes"
	}
	return &QuoteRepository{client: client, tableName: tableName}
}

// MarkPaid reports false when the quote was already paid or does not exist.
func (r *QuoteRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	return markStatus(ctx, r.client, r.tableName, id, "paid", "paid_at", at)
}

// TransactionRepository flags financial transactions as received.
type TransactionRepository struct {
	client    API
	tableName string
}

func NewTransactionRepository(client API, tableName string) *TransactionRepository {
	if tableName == "" {
		tableName = "transactions"
	}
	return &TransactionRepository{client: client, tableName: tableName}
}

// MarkReceived reports false when the transaction was already received or
// does not exist.
func (r *TransactionRepository) MarkReceived(ctx context.Context, id string, at time.Time) (bool, error) {
	return markStatus(ctx, r.client, r.tableName, id, "received", "received_at", at)
}

func markStatus(ctx context.Context, client API, table, id, status, timestampAttr string, at time.Time) (bool, error) {
	_, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #status = :status, #at = :at"),
		ConditionExpression: aws.String("attribute_exists(id) AND #status <> :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#at":     timestampAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": str(status),
			":at":     str(at.UTC().Format(time.RFC3339)),
		},
	})
	if isConditionalCheckFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
