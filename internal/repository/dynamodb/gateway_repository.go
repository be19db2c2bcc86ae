package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// gatewayItem keeps the provider credentials as a raw JSON string; each
// adapter decodes its own shape.
type gatewayItem struct {
	CompanyID string    `dynamodbav:"company_id"`
	Provider  string    `dynamodbav:"provider"`
	IsActive  bool      `dynamodbav:"is_active"`
	IsSandbox bool      `dynamodbav:"is_sandbox"`
	Config    string    `dynamodbav:"config"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

type GatewayConfigRepository struct {
	client    API
	tableName string
}

func NewGatewayConfigRepository(client API, tableName string) *GatewayConfigRepository {
	if tableName == "" {
		tableName = "company_payment_gateways"
	}
	return &GatewayConfigRepository{client: client, tableName: tableName}
}

// GetActive returns nil when the company has no active configuration for the
// provider.
func (r *GatewayConfigRepository) GetActive(ctx context.Context, companyID string, provider domain.Provider) (*domain.GatewayConfig, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"company_id": str(companyID),
			"provider":   str(string(provider)),
		},
	})
	if err != nil {
		return nil, err
	}

	if result.Item == nil {
		return nil, nil
	}

	var item gatewayItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, nil
	}
	if item.Config != "" && !json.Valid([]byte(item.Config)) {
		return nil, fmt.Errorf("%w: stored %s config for company %s is not valid JSON", domain.ErrInvalidConfig, provider, companyID)
	}

	return &domain.GatewayConfig{
		CompanyID: item.CompanyID,
		Provider:  domain.Provider(item.Provider),
		IsActive:  item.IsActive,
		IsSandbox: item.IsSandbox,
		Config:    json.RawMessage(item.Config),
		UpdatedAt: item.UpdatedAt,
	}, nil
}

// Save upserts a gateway configuration.
func (r *GatewayConfigRepository) Save(ctx context.Context, cfg domain.GatewayConfig) error {
	item, err := attributevalue.MarshalMap(gatewayItem{
		CompanyID: cfg.CompanyID,
		Provider:  string(cfg.Provider),
		IsActive:  cfg.IsActive,
		IsSandbox: cfg.IsSandbox,
		Config:    string(cfg.Config),
		UpdatedAt: cfg.UpdatedAt,
	})
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}
