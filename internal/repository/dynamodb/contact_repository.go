package dynamodb

import (
	"context"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type contactItem struct {
	ID        string `dynamodbav:"id"`
	CompanyID string `dynamodbav:"company_id"`
	Name      string `dynamodbav:"name"`
	Email     string `dynamodbav:"email"`
	Document  string `dynamodbav:"document"`
}

type ContactRepository struct {
	client    API
	tableName string
}

func NewContactRepository(client API, tableName string) *ContactRepository {
	if tableName == "" {
		tableName = "contacts"
	}
	return &ContactRepository{client: client, tableName: tableName}
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, err
	}

	if result.Item == nil {
		return nil, nil
	}

	var item contactItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, err
	}

	return &domain.Contact{
		ID:        item.ID,
		CompanyID: item.CompanyID,
		Name:      item.Name,
		Email:     item.Email,
		Document:  item.Document,
	}, nil
}
