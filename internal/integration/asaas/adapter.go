package asaas

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/httpclient"
	"github.com/alexssanderFonseca/lucrocerto/internal/logger"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	SandboxBaseURL    = "https://sandbox.asaas.com/api/v3"
	ProductionBaseURL = "https://api.asaas.com/v3"

	webhookTokenHeader = "asaas-access-token"
	dueDateLayout      = "2006-01-02"
)

type Config struct {
	SandboxAPIKey string `json:"sandbox_api_key"`
	ProdAPIKey    string `json:"prod_api_key"`
	WebhookToken  string `json:"webhook_token,omitempty"`
}

type Option func(*Adapter)

// WithBaseURL overrides the host chosen by the sandbox flag.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.baseURL = baseURL }
}

func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) { a.timeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

type Adapter struct {
	httpClient   *resty.Client
	baseURL      string
	timeout      time.Duration
	webhookToken string
	sandbox      bool
	now          func() time.Time
}

func New(cfg Config, sandbox bool, opts ...Option) (*Adapter, error) {
	apiKey, baseURL, env := cfg.ProdAPIKey, ProductionBaseURL, "production"
	if sandbox {
		apiKey, baseURL, env = cfg.SandboxAPIKey, SandboxBaseURL, "sandbox"
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: asaas %s api key is required", domain.ErrInvalidConfig, env)
	}

	a := &Adapter{
		baseURL:      baseURL,
		webhookToken: cfg.WebhookToken,
		sandbox:      sandbox,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.httpClient = httpclient.New(a.baseURL, a.timeout).
		SetHeader("access_token", apiKey).
		SetHeader("Content-Type", "application/json")

	return a, nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	resp, err := a.createCharge(ctx, req)
	if err != nil {
		if rejected, ok := domain.RejectionResponse(err); ok {
			logger.Warn("asaas rejected charge",
				zap.String("external_reference", req.ExternalReference),
				zap.String("reason", rejected.Error),
			)
			return rejected, nil
		}
		return nil, err
	}
	return resp, nil
}

func (a *Adapter) createCharge(ctx context.Context, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.RejectionError{Provider: domain.ProviderAsaas, Message: err.Error()}
	}

	billingType := billingTypeFor(req.PaymentMethod)

	customerID, err := a.resolveCustomer(ctx, req.Customer)
	if err != nil {
		return nil, err
	}

	var created payment
	err = a.do(ctx, http.MethodPost, "/payments", paymentRequest{
		Customer:          customerID,
		BillingType:       billingType,
		Value:             req.Amount.Round(2).InexactFloat64(),
		DueDate:           a.now().Add(24 * time.Hour).Format(dueDateLayout),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}, &created)
	if err != nil {
		return nil, err
	}

	resp := &domain.PaymentResponse{
		Success:     true,
		PaymentID:   created.ID,
		Status:      mapStatus(created.Status),
		PaymentLink: created.InvoiceURL,
	}

	if billingType == billingPix {
		qr, err := a.pixQRCode(ctx, created.ID)
		if err != nil {
			// the charge already exists upstream; the QR code can still be read from the invoice page
			logger.Warn("failed to fetch asaas pix qr code",
				zap.Error(err),
				zap.String("payment_id", created.ID),
				zap.String("external_reference", req.ExternalReference),
			)
		} else {
			resp.QRCode = qr.Payload
			resp.QRCodeBase64 = qr.EncodedImage
		}
	}

	logger.Info("asaas charge created",
		zap.String("payment_id", created.ID),
		zap.String("billing_type", billingType),
		zap.String("status", created.Status),
	)

	return resp, nil
}

func (a *Adapter) resolveCustomer(ctx context.Context, c domain.Customer) (string, error) {
	taxID := c.TaxIDDigits()
	if taxID == "" {
		return "", &domain.RejectionError{
			Provider: domain.ProviderAsaas,
			Message:  "customer tax ID (CPF/CNPJ) is required to charge with Asaas",
		}
	}

	var found customerList
	query := url.Values{"cpfCnpj": {taxID}}
	if err := a.do(ctx, http.MethodGet, "/customers?"+query.Encode(), nil, &found); err != nil {
		return "", err
	}
	if len(found.Data) > 0 {
		return found.Data[0].ID, nil
	}

	var created customer
	err := a.do(ctx, http.MethodPost, "/customers", customer{
		Name:    c.Name,
		Email:   c.Email,
		CpfCnpj: taxID,
	}, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (a *Adapter) pixQRCode(ctx context.Context, paymentID string) (*pixQRCode, error) {
	var qr pixQRCode
	if err := a.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID)+"/pixQrCode", nil, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentResponse, error) {
	var p payment
	if err := a.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return nil, err
	}
	return &domain.PaymentResponse{
		Success:     true,
		PaymentID:   p.ID,
		Status:      mapStatus(p.Status),
		PaymentLink: p.InvoiceURL,
	}, nil
}

func (a *Adapter) HandleNotification(_ context.Context, payload []byte) (*domain.Notification, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	if n.Payment == nil {
		return nil, fmt.Errorf("%w: asaas payload has no payment object", domain.ErrInvalidNotification)
	}

	return &domain.Notification{
		ExternalReference: n.Payment.ExternalReference,
		Status:            mapStatus(n.Payment.Status),
		PaymentID:         n.Payment.ID,
	}, nil
}

func (a *Adapter) VerifyNotification(headers http.Header, _ []byte) error {
	if a.webhookToken == "" {
		return nil
	}
	got := headers.Get(webhookTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.webhookToken)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	var accounts accountList
	if err := a.do(ctx, http.MethodGet, "/accounts", nil, &accounts); err != nil {
		return domain.ConnectionResult{
			Success: false,
			Message: "Falha ao conectar com o Asaas: " + reason(err),
		}
	}

	var keys pixKeyList
	query := url.Values{"status": {"ACTIVE"}}
	if err := a.do(ctx, http.MethodGet, "/pix/addressKeys?"+query.Encode(), nil, &keys); err != nil {
		logger.Warn("failed to list asaas pix keys", zap.Error(err))
		return domain.ConnectionResult{
			Success: true,
			Message: "Conexão com o Asaas estabelecida, mas não foi possível verificar as chaves PIX.",
		}
	}

	if len(keys.Data) == 0 {
		return domain.ConnectionResult{
			Success: true,
			Message: "Conexão com o Asaas estabelecida. Nenhuma chave PIX ativa encontrada: crie uma chave aleatória para receber pagamentos via PIX.",
		}
	}

	return domain.ConnectionResult{
		Success: true,
		Message: "Conexão com o Asaas estabelecida com sucesso.",
	}
}

// CreateRandomPixKey provisions an EVP (random) PIX address key on the account.
func (a *Adapter) CreateRandomPixKey(ctx context.Context) (*domain.PixKey, error) {
	var key pixKey
	if err := a.do(ctx, http.MethodPost, "/pix/addressKeys", map[string]string{"type": "EVP"}, &key); err != nil {
		return nil, err
	}

	logger.Info("asaas pix key created", zap.String("pix_key_id", key.ID))

	return &domain.PixKey{
		ID:     key.ID,
		Key:    key.Key,
		Type:   key.Type,
		Status: key.Status,
	}, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body, result any) error {
	var apiErr errorResponse
	req := a.httpClient.R().
		SetContext(ctx).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("asaas %s %s: %w", method, path, err)
	}
	if httpclient.ServerError(resp) {
		return httpclient.UnexpectedStatus("asaas", resp)
	}
	if resp.IsError() {
		return &domain.RejectionError{
			Provider:   domain.ProviderAsaas,
			StatusCode: resp.StatusCode(),
			Message:    apiErr.message(resp.String()),
		}
	}
	return nil
}

func reason(err error) string {
	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		return rejection.Message
	}
	return err.Error()
}
