package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// CompanyReferenceIndex is keyed by company_id (hash) and external_reference
// (range); references are only unique within a company.
const CompanyReferenceIndex = "CompanyExternalReferenceIndex"

// API is the subset of the DynamoDB client used by the repositories.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type chargeItem struct {
	ID                string    `dynamodbav:"id"`
	CompanyID         string    `dynamodbav:"company_id"`
	ContactID         string    `dynamodbav:"contact_id,omitempty"`
	QuoteID           string    `dynamodbav:"quote_id,omitempty"`
	TransactionID     string    `dynamodbav:"transaction_id,omitempty"`
	Description       string    `dynamodbav:"description"`
	Amount            string    `dynamodbav:"amount"`
	CustomerName      string    `dynamodbav:"customer_name,omitempty"`
	CustomerEmail     string    `dynamodbav:"customer_email,omitempty"`
	CustomerTaxID     string    `dynamodbav:"customer_tax_id,omitempty"`
	Provider          string    `dynamodbav:"provider,omitempty"`
	PaymentMethod     string    `dynamodbav:"payment_method,omitempty"`
	ExternalReference string    `dynamodbav:"external_reference,omitempty"`
	ProviderPaymentID string    `dynamodbav:"provider_payment_id,omitempty"`
	Status            string    `dynamodbav:"status"`
	QRCode            string    `dynamodbav:"qr_code,omitempty"`
	QRCodeBase64      string    `dynamodbav:"qr_code_base64,omitempty"`
	PaymentLink       string    `dynamodbav:"payment_link,omitempty"`
	ErrorMessage      string    `dynamodbav:"error_message,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
}

func toChargeItem(c domain.Charge) chargeItem {
	return chargeItem{
		ID:                c.ID,
		CompanyID:         c.CompanyID,
		ContactID:         c.ContactID,
		QuoteID:           c.QuoteID,
		TransactionID:     c.TransactionID,
		Description:       c.Description,
		Amount:            c.Amount.StringFixed(2),
		CustomerName:      c.Customer.Name,
		CustomerEmail:     c.Customer.Email,
		CustomerTaxID:     c.Customer.TaxID,
		Provider:          string(c.Provider),
		PaymentMethod:     string(c.PaymentMethod),
		ExternalReference: c.ExternalReference,
		ProviderPaymentID: c.ProviderPaymentID,
		Status:            string(c.Status),
		QRCode:            c.QRCode,
		QRCodeBase64:      c.QRCodeBase64,
		PaymentLink:       c.PaymentLink,
		ErrorMessage:      c.ErrorMessage,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (i chargeItem) toDomain() (*domain.Charge, error) {
	amount := decimal.Zero
	if i.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(i.Amount)
		if err != nil {
			return nil, fmt.Errorf("charge %s has invalid amount %q: %w", i.ID, i.Amount, err)
		}
	}
	return &domain.Charge{
		ID:                i.ID,
		CompanyID:         i.CompanyID,
		ContactID:         i.ContactID,
		QuoteID:           i.QuoteID,
		TransactionID:     i.TransactionID,
		Description:       i.Description,
		Amount:            amount,
		Customer:          domain.Customer{Name: i.CustomerName, Email: i.CustomerEmail, TaxID: i.CustomerTaxID},
		Provider:          domain.Provider(i.Provider),
		PaymentMethod:     domain.PaymentMethod(i.PaymentMethod),
		ExternalReference: i.ExternalReference,
		ProviderPaymentID: i.ProviderPaymentID,
		Status:            domain.PaymentStatus(i.Status),
		QRCode:            i.QRCode,
		QRCodeBase64:      i.QRCodeBase64,
		PaymentLink:       i.PaymentLink,
		ErrorMessage:      i.ErrorMessage,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}, nil
}

type ChargeRepository struct {
	client    API
	tableName string
}

func NewChargeRepository(client API, tableName string) *ChargeRepository {
	if tableName == "" {
		tableName = "company_charges"
	}
	return &ChargeRepository{
		client:    client,
		tableName: tableName,
	}
}

// Save writes the whole record, replacing any item with the same id.
func (r *ChargeRepository) Save(ctx context.Context, charge domain.Charge) error {
	item, err := attributevalue.MarshalMap(toChargeItem(charge))
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ChargeRepository) GetByID(ctx context.Context, id string) (*domain.Charge, error) {
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

	var item chargeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, err
	}
	return item.toDomain()
}

func (r *ChargeRepository) GetByExternalReference(ctx context.Context, companyID, ref string) (*domain.Charge, error) {
	if companyID == "" || ref == "" {
		return nil, nil
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(CompanyReferenceIndex),
		KeyConditionExpression: aws.String("company_id = :company AND external_reference = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":company": &types.AttributeValueMemberS{Value: companyID},
			":ref":     &types.AttributeValueMemberS{Value: ref},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	var item chargeItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, err
	}
	return item.toDomain()
}

// UpdatePayment patches the provider fields of an existing charge in place.
func (r *ChargeRepository) UpdatePayment(ctx context.Context, id string, patch domain.ChargePatch) error {
	values := map[string]types.AttributeValue{
		":provider":       str(string(patch.Provider)),
		":payment_method": str(string(patch.PaymentMethod)),
		":status":         str(string(patch.Status)),
		":qr_code":        str(patch.QRCode),
		":qr_code_base64": str(patch.QRCodeBase64),
		":payment_link":   str(patch.PaymentLink),
		":error_message":  str(patch.ErrorMessage),
		":updated_at":     str(patch.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}
	expr := "SET provider = :provider, payment_method = :payment_method, #status = :status, " +
		"qr_code = :qr_code, qr_code_base64 = :qr_code_base64, payment_link = :payment_link, " +
		"error_message = :error_message, updated_at = :updated_at"

	// empty strings are not allowed on index keys
	if patch.ExternalReference != "" {
		expr += ", external_reference = :external_reference"
		values[":external_reference"] = str(patch.ExternalReference)
	}
	if patch.ProviderPaymentID != "" {
		expr += ", provider_payment_id = :provider_payment_id"
		values[":provider_payment_id"] = str(patch.ProviderPaymentID)
	}

	return r.update(ctx, id, expr, values)
}

func (r *ChargeRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, providerPaymentID string, at time.Time) error {
	values := map[string]types.AttributeValue{
		":status":     str(string(status)),
		":updated_at": str(at.UTC().Format(time.RFC3339Nano)),
	}
	expr := "SET #status = :status, updated_at = :updated_at"
	if providerPaymentID != "" {
		expr += ", provider_payment_id = :provider_payment_id"
		values[":provider_payment_id"] = str(providerPaymentID)
	}
	return r.update(ctx, id, expr, values)
}

func (r *ChargeRepository) update(ctx context.Context, id, expr string, values map[string]types.AttributeValue) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
	if isConditionalCheckFailed(err) {
		return fmt.Errorf("%w: %s", domain.ErrChargeNotFound, id)
	}
	return err
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}
