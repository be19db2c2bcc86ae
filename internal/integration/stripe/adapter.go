package stripe

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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	BaseURL = "https://api.stripe.com"

	signatureTolerance = 5 * time.Minute
	defaultSuccessURL  = "https://app.lucrocerto.com.br/checkout/sucesso"
	defaultCancelURL   = "https://app.lucrocerto.com.br/checkout/cancelado"
)

type Config struct {
	SandboxSecretKey string `json:"sandbox_secret_key"`
	ProdSecretKey    string `json:"prod_secret_key"`
	WebhookSecret    string `json:"webhook_secret,omitempty"`
	SuccessURL       string `json:"success_url,omitempty"`
	CancelURL        string `json:"cancel_url,omitempty"`
}

type Option func(*Adapter)

func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.baseURL = baseURL }
}

func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) { a.timeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// Adapter charges through Stripe Checkout Sessions. Test and live mode share
// the host; the secret key prefix (sk_test_/sk_live_) selects the mode.
type Adapter struct {
	httpClient    *resty.Client
	baseURL       string
	timeout       time.Duration
	webhookSecret string
	successURL    string
	cancelURL     string
	now           func() time.Time
}

func New(cfg Config, sandbox bool, opts ...Option) (*Adapter, error) {
	key, env := cfg.ProdSecretKey, "production"
	if sandbox {
		key, env = cfg.SandboxSecretKey, "sandbox"
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: stripe %s secret key is required", domain.ErrInvalidConfig, env)
	}

	a := &Adapter{
		baseURL:       BaseURL,
		webhookSecret: cfg.WebhookSecret,
		successURL:    firstNonEmpty(cfg.SuccessURL, defaultSuccessURL),
		cancelURL:     firstNonEmpty(cfg.CancelURL, defaultCancelURL),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.httpClient = httpclient.New(a.baseURL, a.timeout).SetAuthToken(key)
	return a, nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	resp, err := a.createCharge(ctx, req)
	if err != nil {
		if rejected, ok := domain.RejectionResponse(err); ok {
			logger.Warn("stripe rejected charge",
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
		return nil, &domain.RejectionError{Provider: domain.ProviderStripe, Message: err.Error()}
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", a.successURL)
	form.Set("cancel_url", a.cancelURL)
	form.Set("payment_method_types[0]", paymentMethodType(req.PaymentMethod))
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "brl")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(toCents(req.Amount), 10))
	form.Set("line_items[0][price_data][product_data][name]", firstNonEmpty(req.Description, "Cobrança"))
	if req.ExternalReference != "" {
		form.Set("client_reference_id", req.ExternalReference)
		form.Set("metadata[external_reference]", req.ExternalReference)
		form.Set("payment_intent_data[metadata][external_reference]", req.ExternalReference)
	}
	if req.Customer.Email != "" {
		form.Set("customer_email", req.Customer.Email)
	}

	var session checkoutSession
	headers := map[string]string{}
	if req.ExternalReference != "" {
		headers["Idempotency-Key"] = "lucrocerto-" + req.ExternalReference
	}
	if err := a.do(ctx, http.MethodPost, "/v1/checkout/sessions", headers, form, &session); err != nil {
		return nil, err
	}

	logger.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("status", session.Status),
	)

	return &domain.PaymentResponse{
		Success:     true,
		PaymentID:   session.ID,
		Status:      session.canonicalStatus(),
		PaymentLink: session.URL,
	}, nil
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentResponse, error) {
	var session checkoutSession
	if err := a.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(paymentID), nil, nil, &session); err != nil {
		return nil, err
	}
	return &domain.PaymentResponse{
		Success:     true,
		PaymentID:   session.ID,
		Status:      session.canonicalStatus(),
		PaymentLink: session.URL,
	}, nil
}

func (a *Adapter) HandleNotification(_ context.Context, payload []byte) (*domain.Notification, error) {
	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	if evt.Data == nil || evt.Data.Object == nil {
		return nil, fmt.Errorf("%w: stripe event has no data.object", domain.ErrInvalidNotification)
	}

	status, ok := eventStatus(evt.Type, evt.Data.Object)
	if !ok {
		return nil, fmt.Errorf("%w: stripe event %q", domain.ErrNotificationIgnored, evt.Type)
	}

	obj := evt.Data.Object
	ref := obj.ClientReferenceID
	if ref == "" {
		ref = obj.Metadata["external_reference"]
	}

	paymentID := obj.ID
	if strings.HasPrefix(evt.Type, "payment_intent.") {
		// charges are stored by checkout session id; keep it empty so the
		// stored id is not replaced by the intent id
		paymentID = ""
	}

	return &domain.Notification{
		ExternalReference: ref,
		Status:            status,
		PaymentID:         paymentID,
	}, nil
}

// VerifyNotification validates the Stripe-Signature header (t=…,v1=…).
func (a *Adapter) VerifyNotification(headers http.Header, payload []byte) error {
	if a.webhookSecret == "" {
		return nil
	}

	var ts string
	var signatures []string
	for _, part := range strings.Split(headers.Get("Stripe-Signature"), ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if ts == "" || len(signatures) == 0 {
		return domain.ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if age := a.now().Sub(time.Unix(unix, 0)); age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	var b balance
	if err := a.do(ctx, http.MethodGet, "/v1/balance", nil, nil, &b); err != nil {
		return domain.ConnectionResult{
			Success: false,
			Message: "Falha ao conectar com a Stripe: " + reason(err),
		}
	}
	mode := "produção"
	if !b.LiveMode {
		mode = "teste"
	}
	return domain.ConnectionResult{
		Success: true,
		Message: "Conexão com a Stripe estabelecida (modo " + mode + ").",
	}
}

func (a *Adapter) do(ctx context.Context, method, path string, headers map[string]string, form url.Values, result any) error {
	var apiErr errorResponse
	req := a.httpClient.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetError(&apiErr)
	if form != nil {
		req.SetFormDataFromValues(form)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("stripe %s %s: %w", method, path, err)
	}
	if httpclient.ServerError(resp) {
		return httpclient.UnexpectedStatus("stripe", resp)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.String()
		}
		return &domain.RejectionError{
			Provider:   domain.ProviderStripe,
			StatusCode: resp.StatusCode(),
			Message:    msg,
		}
	}
	return nil
}

func paymentMethodType(method domain.PaymentMethod) string {
	switch method.Normalize() {
	case domain.MethodBoleto:
		return "boleto"
	case domain.MethodCreditCard:
		return "card"
	default:
		return "pix"
	}
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func reason(err error) string {
	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		return rejection.Message
	}
	return err.Error()
}
