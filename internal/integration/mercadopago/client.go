package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/httpclient"
	"github.com/alexssanderFonseca/lucrocerto/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const BaseURL = "https://api.mercadopago.com"

type Config struct {
	SandboxAccessToken string `json:"sandbox_access_token"`
	ProdAccessToken    string `json:"prod_access_token"`
	WebhookSecret      string `json:"webhook_secret,omitempty"`
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// Client is the MercadoPago payment adapter. Sandbox and production share the
// host; the access token decides the environment.
type Client struct {
	httpClient    *resty.Client
	baseURL       string
	timeout       time.Duration
	webhookSecret string
	sandbox       bool
}

func NewClient(cfg Config, sandbox bool, opts ...Option) (*Client, error) {
	token, env := cfg.ProdAccessToken, "production"
	if sandbox {
		token, env = cfg.SandboxAccessToken, "sandbox"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: mercadopago %s access token is required", domain.ErrInvalidConfig, env)
	}

	c := &Client{
		baseURL:       BaseURL,
		webhookSecret: cfg.WebhookSecret,
		sandbox:       sandbox,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = httpclient.New(c.baseURL, c.timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")

	return c, nil
}

func (c *Client) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	var (
		resp *domain.PaymentResponse
		err  error
	)
	if verr := req.Validate(); verr != nil {
		err = &domain.RejectionError{Provider: domain.ProviderMercadoPago, Message: verr.Error()}
	} else if req.PaymentMethod.Normalize() == domain.MethodCreditCard {
		resp, err = c.createPreference(ctx, req)
	} else {
		resp, err = c.createPayment(ctx, req)
	}

	if err != nil {
		if rejected, ok := domain.RejectionResponse(err); ok {
			logger.Warn("mercadopago rejected charge",
				zap.String("external_reference", req.ExternalReference),
				zap.String("reason", rejected.Error),
			)
			return rejected, nil
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) createPayment(ctx context.Context, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	if strings.TrimSpace(req.Customer.Email) == "" {
		return nil, &domain.RejectionError{
			Provider: domain.ProviderMercadoPago,
			Message:  "customer email is required to charge with MercadoPago",
		}
	}

	methodID := "pix"
	if req.PaymentMethod.Normalize() == domain.MethodBoleto {
		methodID = "bolbradesco"
	}

	body := PaymentRequest{
		TransactionAmount: req.Amount.Round(2).InexactFloat64(),
		Description:       req.Description,
		PaymentMethodID:   methodID,
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
		Payer: Payer{
			Email:     req.Customer.Email,
			FirstName: req.Customer.Name,
		},
	}
	if taxID := req.Customer.TaxIDDigits(); taxID != "" {
		body.Payer.Identification = &Identification{Type: req.Customer.TaxIDType(), Number: taxID}
	}

	var payment PaymentResponse
	headers := map[string]string{"X-Idempotency-Key": idempotencyKey(req)}
	if err := c.do(ctx, http.MethodPost, "/v1/payments", headers, body, &payment); err != nil {
		return nil, err
	}

	status := mapStatus(payment.Status)
	if status == domain.StatusRejected {
		// the payment exists upstream; keep its id so it can still be traced
		logger.Warn("mercadopago rejected charge",
			zap.String("external_reference", req.ExternalReference),
			zap.Int64("mp_payment_id", payment.ID),
			zap.String("status_detail", payment.StatusDetail),
		)
		rejected := domain.Rejected("payment rejected: " + payment.StatusDetail)
		rejected.PaymentID = strconv.FormatInt(payment.ID, 10)
		return rejected, nil
	}

	data := payment.PointOfInteraction.TransactionData
	link := data.TicketURL
	if link == "" {
		link = payment.TransactionDetails.ExternalResourceURL
	}

	logger.Info("mercadopago payment created",
		zap.Int64("mp_payment_id", payment.ID),
		zap.String("payment_method", methodID),
		zap.String("mp_status", payment.Status),
	)

	return &domain.PaymentResponse{
		Success:      true,
		PaymentID:    strconv.FormatInt(payment.ID, 10),
		Status:       status,
		QRCode:       data.QRCode,
		QRCodeBase64: data.QRCodeBase64,
		PaymentLink:  link,
	}, nil
}

func (c *Client) createPreference(ctx context.Context, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	amount := req.Amount.Round(2).InexactFloat64()
	body := PreferenceRequest{
		Items: []Item{
			{
				Title:      req.Description,
				Quantity:   1,
				UnitPrice:  amount,
				CurrencyID: "BRL",
			},
		},
		Payer:             &PreferencePayer{Name: req.Customer.Name, Email: req.Customer.Email},
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
		PaymentMethods: PreferencePaymentMethods{
			ExcludedPaymentTypes: []PaymentType{{ID: "ticket"}, {ID: "bank_transfer"}},
		},
	}

	var pref PreferenceResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", nil, body, &pref); err != nil {
		return nil, err
	}

	link := pref.InitPoint
	if c.sandbox && pref.SandboxInitPoint != "" {
		link = pref.SandboxInitPoint
	}

	return &domain.PaymentResponse{
		Success:     true,
		PaymentID:   pref.ID,
		Status:      domain.StatusPending,
		PaymentLink: link,
	}, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentResponse, error) {
	payment, err := c.GetPaymentDetails(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentResponse{
		Success:   true,
		PaymentID: strconv.FormatInt(payment.ID, 10),
		Status:    mapStatus(payment.Status),
	}, nil
}

func (c *Client) GetPaymentDetails(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	var payment PaymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// HandleNotification resolves a webhook into the payment it refers to. The
// MercadoPago body carries only the payment id, so the payment is fetched.
func (c *Client) HandleNotification(ctx context.Context, payload []byte) (*domain.Notification, error) {
	n, err := parseNotification(payload)
	if err != nil {
		return nil, err
	}
	if n.Type != "payment" {
		return nil, fmt.Errorf("%w: mercadopago topic %q", domain.ErrNotificationIgnored, n.Type)
	}

	payment, err := c.GetPaymentDetails(ctx, n.Data.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch mercadopago payment %s: %w", n.Data.ID, err)
	}

	logger.Info("mercadopago payment details fetched",
		zap.String("mp_payment_id", n.Data.ID),
		zap.String("mp_status", payment.Status),
		zap.String("external_reference", payment.ExternalReference),
	)

	return &domain.Notification{
		ExternalReference: payment.ExternalReference,
		Status:            mapStatus(payment.Status),
		PaymentID:         n.Data.ID,
	}, nil
}

func parseNotification(payload []byte) (*WebhookNotification, error) {
	var n WebhookNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	if n.Data == nil || n.Data.ID == "" {
		return nil, fmt.Errorf("%w: mercadopago payload has no data.id", domain.ErrInvalidNotification)
	}
	return &n, nil
}

// VerifyNotification checks the x-signature header against the webhook secret.
func (c *Client) VerifyNotification(headers http.Header, payload []byte) error {
	if c.webhookSecret == "" {
		return nil
	}

	n, err := parseNotification(payload)
	if err != nil {
		return err
	}

	var ts, hash string
	for _, part := range strings.Split(headers.Get("x-signature"), ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			hash = kv[1]
		}
	}
	if ts == "" || hash == "" {
		return domain.ErrInvalidSignature
	}

	manifest := "id:" + strings.ToLower(n.Data.ID) + ";"
	if requestID := headers.Get("x-request-id"); requestID != "" {
		manifest += "request-id:" + requestID + ";"
	}
	manifest += "ts:" + ts + ";"

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(hash), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (c *Client) TestConnection(ctx context.Context) domain.ConnectionResult {
	var me UserResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &me); err != nil {
		return domain.ConnectionResult{
			Success: false,
			Message: "Falha ao conectar com o Mercado Pago: " + reason(err),
		}
	}
	return domain.ConnectionResult{
		Success: true,
		Message: fmt.Sprintf("Conexão com o Mercado Pago estabelecida (conta %s).", me.Nickname),
	}
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, result any) error {
	var apiErr ErrorResponse
	req := c.httpClient.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	if httpclient.ServerError(resp) {
		return httpclient.UnexpectedStatus("mercadopago", resp)
	}
	if resp.IsError() {
		return &domain.RejectionError{
			Provider:   domain.ProviderMercadoPago,
			StatusCode: resp.StatusCode(),
			Message:    apiErr.message(resp.String()),
		}
	}
	return nil
}

// idempotencyKey ties retries of the same charge to one MercadoPago payment.
func idempotencyKey(req domain.ChargeRequest) string {
	if req.ExternalReference == "" {
		return uuid.New().String()
	}
	return "lucrocerto-" + req.ExternalReference
}

func reason(err error) string {
	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		return rejection.Message
	}
	return err.Error()
}
