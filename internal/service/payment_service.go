package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/alexssanderFonseca/lucrocerto/internal/logger"
	"github.com/alexssanderFonseca/lucrocerto/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Deps struct {
	Charges        domain.ChargeRepository
	Gateways       domain.GatewayConfigRepository
	Contacts       domain.ContactRepository
	Quotes         domain.QuoteRepository
	Transactions   domain.TransactionRepository
	Adapters       domain.AdapterFactory
	EventPublisher domain.PaymentEventPublisher
	Metrics        *telemetry.PaymentMetrics
	// WebhookBaseURL is the public address providers call back on.
	WebhookBaseURL string
	Now            func() time.Time
}

type PaymentService struct {
	charges        domain.ChargeRepository
	gateways       domain.GatewayConfigRepository
	contacts       domain.ContactRepository
	quotes         domain.QuoteRepository
	transactions   domain.TransactionRepository
	adapters       domain.AdapterFactory
	eventPublisher domain.PaymentEventPublisher
	metrics        *telemetry.PaymentMetrics
	webhookBaseURL string
	now            func() time.Time
}

func NewPaymentService(deps Deps) *PaymentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PaymentService{
		charges:        deps.Charges,
		gateways:       deps.Gateways,
		contacts:       deps.Contacts,
		quotes:         deps.Quotes,
		transactions:   deps.Transactions,
		adapters:       deps.Adapters,
		eventPublisher: deps.EventPublisher,
		metrics:        deps.Metrics,
		webhookBaseURL: strings.TrimRight(deps.WebhookBaseURL, "/"),
		now:            now,
	}
}

type CreateChargeInput struct {
	Provider  domain.Provider
	Config    json.RawMessage
	Sandbox   bool
	CompanyID string
	Request   domain.ChargeRequest
}

type CheckoutInput struct {
	ChargeID string
	Provider domain.Provider
	Method   domain.PaymentMethod
}

type WebhookInput struct {
	Provider  domain.Provider
	CompanyID string
	Payload   []byte
	Headers   http.Header
}

// ChargeResult pairs the stored charge with the normalized provider answer.
type ChargeResult struct {
	Charge   domain.Charge
	Response domain.PaymentResponse
}

// WebhookURL is the callback address registered with the provider for a company.
func (s *PaymentService) WebhookURL(provider domain.Provider, companyID string) string {
	if s.webhookBaseURL == "" || companyID == "" {
		return ""
	}
	return fmt.Sprintf("%s/payments/webhook/%s/%s", s.webhookBaseURL, provider, url.PathEscape(companyID))
}

// CreateCharge sends a charge with caller supplied credentials and stores the
// outcome keyed by the company's external reference. Repeating a reference
// overwrites the stored record unless it is already paid.
func (s *PaymentService) CreateCharge(ctx context.Context, in CreateChargeInput) (*ChargeResult, error) {
	if in.CompanyID == "" {
		return nil, fmt.Errorf("%w: company_id is required", domain.ErrInvalidChargeRequest)
	}
	req := in.Request
	if req.ExternalReference == "" {
		req.ExternalReference = uuid.New().String()
	}
	req.PaymentMethod = req.PaymentMethod.Normalize()
	if req.NotificationURL == "" {
		req.NotificationURL = s.WebhookURL(in.Provider, in.CompanyID)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.charges.GetByExternalReference(ctx, in.CompanyID, req.ExternalReference)
	if err != nil {
		logger.Error("failed to fetch charge by external reference",
			zap.Error(err),
			zap.String("company_id", in.CompanyID),
			zap.String("external_reference", req.ExternalReference),
		)
		return nil, err
	}
	if existing != nil && existing.Status == domain.StatusApproved {
		return nil, fmt.Errorf("%w: %s", domain.ErrChargeAlreadyPaid, existing.ID)
	}

	logger.Info("creating charge",
		zap.String("provider", string(in.Provider)),
		zap.String("company_id", in.CompanyID),
		zap.String("external_reference", req.ExternalReference),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("payment_method", string(req.PaymentMethod)),
	)

	adapter, err := s.adapters.GetAdapter(in.Provider, in.Config, in.Sandbox)
	if err != nil {
		return nil, err
	}

	resp, err := s.createAtProvider(ctx, adapter, in.Provider, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	charge := domain.Charge{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}
	if existing != nil {
		charge = *existing
	}
	charge.CompanyID = in.CompanyID
	charge.Description = req.Description
	charge.Amount = req.Amount
	charge.Customer = req.Customer
	charge.ExternalReference = req.ExternalReference
	charge.ApplyResponse(in.Provider, req.PaymentMethod, resp, now)

	if err := s.charges.Save(ctx, charge); err != nil {
		logger.Error("failed to save charge in dynamodb",
			zap.Error(err),
			zap.String("charge_id", charge.ID),
		)
		return nil, err
	}

	logger.Info("charge stored",
		zap.String("charge_id", charge.ID),
		zap.String("status", string(charge.Status)),
		zap.Bool("overwritten", existing != nil),
	)

	return &ChargeResult{Charge: charge, Response: *resp}, nil
}

// ProcessCheckout charges an existing record with the company's configured
// gateway and patches the provider fields in place.
func (s *PaymentService) ProcessCheckout(ctx context.Context, in CheckoutInput) (*ChargeResult, error) {
	charge, err := s.charges.GetByID(ctx, in.ChargeID)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChargeNotFound, in.ChargeID)
	}
	if charge.Status == domain.StatusApproved {
		return nil, fmt.Errorf("%w: %s", domain.ErrChargeAlreadyPaid, charge.ID)
	}

	gateway, err := s.activeGateway(ctx, charge.CompanyID, in.Provider)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerFor(ctx, charge)
	if err != nil {
		return nil, err
	}

	ref := charge.ExternalReference
	if ref == "" {
		ref = charge.ID
	}
	req := domain.ChargeRequest{
		Amount:            charge.Amount,
		Description:       charge.Description,
		ExternalReference: ref,
		Customer:          customer,
		PaymentMethod:     in.Method.Normalize(),
		NotificationURL:   s.WebhookURL(in.Provider, charge.CompanyID),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger.Info("processing checkout",
		zap.String("charge_id", charge.ID),
		zap.String("company_id", charge.CompanyID),
		zap.String("provider", string(in.Provider)),
		zap.String("payment_method", string(req.PaymentMethod)),
	)

	adapter, err := s.adapters.GetAdapter(in.Provider, gateway.Config, gateway.IsSandbox)
	if err != nil {
		return nil, err
	}

	resp, err := s.createAtProvider(ctx, adapter, in.Provider, req)
	if err != nil {
		return nil, err
	}

	charge.ExternalReference = ref
	charge.Customer = customer
	charge.ApplyResponse(in.Provider, req.PaymentMethod, resp, s.now())

	if err := s.charges.UpdatePayment(ctx, charge.ID, domain.PatchFrom(*charge)); err != nil {
		logger.Error("failed to update charge after checkout",
			zap.Error(err),
			zap.String("charge_id", charge.ID),
		)
		return nil, err
	}

	return &ChargeResult{Charge: *charge, Response: *resp}, nil
}

func (s *PaymentService) TestConnection(ctx context.Context, provider domain.Provider, config json.RawMessage, sandbox bool) (*domain.ConnectionResult, error) {
	adapter, err := s.adapters.GetAdapter(provider, config, sandbox)
	if err != nil {
		return nil, err
	}
	result := adapter.TestConnection(ctx)
	logger.Info("gateway connection tested",
		zap.String("provider", string(provider)),
		zap.Bool("sandbox", sandbox),
		zap.Bool("success", result.Success),
	)
	return &result, nil
}

// CreatePixKey provisions a random PIX key on providers that support it.
func (s *PaymentService) CreatePixKey(ctx context.Context, provider domain.Provider, config json.RawMessage, sandbox bool) (*domain.PixKey, error) {
	adapter, err := s.adapters.GetAdapter(provider, config, sandbox)
	if err != nil {
		return nil, err
	}
	creator, ok := adapter.(domain.PixKeyCreator)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot create pix keys", domain.ErrOperationNotSupported, provider)
	}

	key, err := creator.CreateRandomPixKey(ctx)
	if err != nil {
		return nil, providerFailure(err)
	}
	logger.Info("pix key created",
		zap.String("provider", string(provider)),
		zap.String("key", logger.MaskSecret(key.Key)),
	)
	return key, nil
}

// HandleWebhook verifies and normalizes a provider notification, then moves
// the matching charge of the company to the reported status.
func (s *PaymentService) HandleWebhook(ctx context.Context, in WebhookInput) error {
	logger.Info("received webhook notification",
		zap.String("provider", string(in.Provider)),
		zap.String("company_id", in.CompanyID),
	)

	outcome, err := s.handleWebhook(ctx, in)
	if err != nil {
		outcome = "failed"
		if errors.Is(err, domain.ErrNotificationIgnored) {
			outcome = "ignored"
		}
	}
	s.metrics.WebhookProcessed(ctx, string(in.Provider), outcome)
	return err
}

func (s *PaymentService) handleWebhook(ctx context.Context, in WebhookInput) (string, error) {
	gateway, err := s.activeGateway(ctx, in.CompanyID, in.Provider)
	if err != nil {
		return "", err
	}

	adapter, err := s.adapters.GetAdapter(in.Provider, gateway.Config, gateway.IsSandbox)
	if err != nil {
		return "", err
	}

	if verifier, ok := adapter.(domain.NotificationVerifier); ok {
		if err := verifier.VerifyNotification(in.Headers, in.Payload); err != nil {
			logger.Warn("webhook signature rejected",
				zap.Error(err),
				zap.String("provider", string(in.Provider)),
				zap.String("company_id", in.CompanyID),
			)
			return "", err
		}
	}

	notification, err := adapter.HandleNotification(ctx, in.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationIgnored) || errors.Is(err, domain.ErrInvalidNotification) {
			return "", err
		}
		return "", providerFailure(err)
	}
	if notification.ExternalReference == "" {
		return "", fmt.Errorf("%w: notification has no external reference", domain.ErrInvalidNotification)
	}

	charge, err := s.charges.GetByExternalReference(ctx, in.CompanyID, notification.ExternalReference)
	if err != nil {
		logger.Error("failed to fetch local charge by external reference",
			zap.Error(err),
			zap.String("company_id", in.CompanyID),
			zap.String("external_reference", notification.ExternalReference),
		)
		return "", err
	}

	if charge == nil {
		logger.Warn("charge not found for received webhook",
			zap.String("external_reference", notification.ExternalReference),
			zap.String("company_id", in.CompanyID),
		)
		return "unmatched", nil
	}

	changed, err := s.applyStatus(ctx, charge, notification.Status, notification.PaymentID)
	if err != nil {
		return "", err
	}
	if !changed {
		return "unchanged", nil
	}
	return "updated", nil
}

// SyncStatus pulls the current status from the provider and applies it like a
// webhook would.
func (s *PaymentService) SyncStatus(ctx context.Context, chargeID string) (*domain.Charge, error) {
	charge, err := s.charges.GetByID(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChargeNotFound, chargeID)
	}
	if charge.Provider == "" || charge.ProviderPaymentID == "" {
		return nil, fmt.Errorf("%w: charge %s was never sent to a provider", domain.ErrInvalidChargeRequest, chargeID)
	}

	gateway, err := s.activeGateway(ctx, charge.CompanyID, charge.Provider)
	if err != nil {
		return nil, err
	}

	adapter, err := s.adapters.GetAdapter(charge.Provider, gateway.Config, gateway.IsSandbox)
	if err != nil {
		return nil, err
	}

	resp, err := adapter.GetPaymentStatus(ctx, charge.ProviderPaymentID)
	if err != nil {
		logger.Error("failed to get payment status from provider",
			zap.Error(err),
			zap.String("provider", string(charge.Provider)),
			zap.String("provider_payment_id", charge.ProviderPaymentID),
		)
		return nil, providerFailure(err)
	}

	if _, err := s.applyStatus(ctx, charge, resp.Status, resp.PaymentID); err != nil {
		return nil, err
	}
	return charge, nil
}

// applyStatus moves charge to status and reports whether it changed. Settling
// the linked transaction and quote is retried on every approved notification;
// both writes are conditional so repeats leave them untouched. A new provider
// payment id is stored even when the status stays the same.
func (s *PaymentService) applyStatus(ctx context.Context, charge *domain.Charge, status domain.PaymentStatus, providerPaymentID string) (bool, error) {
	changed := charge.Status != status
	if charge.Status == domain.StatusApproved && status == domain.StatusPending {
		logger.Warn("ignoring stale pending status for approved charge",
			zap.String("charge_id", charge.ID),
		)
		return false, nil
	}
	newPaymentID := providerPaymentID != "" && providerPaymentID != charge.ProviderPaymentID

	if changed || newPaymentID {
		at := s.now()
		if err := s.charges.UpdateStatus(ctx, charge.ID, status, providerPaymentID, at); err != nil {
			logger.Error("failed to update charge status",
				zap.Error(err),
				zap.String("charge_id", charge.ID),
				zap.String("new_status", string(status)),
			)
			return false, err
		}
		logger.Info("charge status updated",
			zap.String("charge_id", charge.ID),
			zap.String("old_status", string(charge.Status)),
			zap.String("new_status", string(status)),
			zap.String("provider_payment_id", providerPaymentID),
		)

		charge.Status = status
		if providerPaymentID != "" {
			charge.ProviderPaymentID = providerPaymentID
		}
		charge.UpdatedAt = at
	}

	if status == domain.StatusApproved {
		if err := s.settle(ctx, charge); err != nil {
			return changed, err
		}
	}

	if changed {
		s.publish(ctx, charge)
	}
	return changed, nil
}

func (s *PaymentService) settle(ctx context.Context, charge *domain.Charge) error {
	at := s.now()
	if charge.TransactionID != "" && s.transactions != nil {
		marked, err := s.transactions.MarkReceived(ctx, charge.TransactionID, at)
		if err != nil {
			logger.Error("failed to mark transaction as received",
				zap.Error(err),
				zap.String("transaction_id", charge.TransactionID),
			)
			return err
		}
		if marked {
			logger.Info("transaction marked as received",
				zap.String("transaction_id", charge.TransactionID),
				zap.String("charge_id", charge.ID),
			)
		}
	}
	if charge.QuoteID != "" && s.quotes != nil {
		marked, err := s.quotes.MarkPaid(ctx, charge.QuoteID, at)
		if err != nil {
			logger.Error("failed to mark quote as paid",
				zap.Error(err),
				zap.String("quote_id", charge.QuoteID),
			)
			return err
		}
		if marked {
			logger.Info("quote marked as paid",
				zap.String("quote_id", charge.QuoteID),
				zap.String("charge_id", charge.ID),
			)
		}
	}
	return nil
}

func (s *PaymentService) publish(ctx context.Context, charge *domain.Charge) {
	if s.eventPublisher == nil {
		return
	}
	err := s.eventPublisher.PublishPaymentProcessed(ctx, domain.PaymentProcessedEvent{
		ChargeID:          charge.ID,
		CompanyID:         charge.CompanyID,
		Provider:          charge.Provider,
		ExternalReference: charge.ExternalReference,
		ProviderPaymentID: charge.ProviderPaymentID,
		Status:            charge.Status,
		ProcessedAt:       s.now(),
	})
	if err != nil {
		// Não retornamos erro aqui para não causar re-tentativas do webhook por falha na publicação
		logger.Error("failed to publish payment processed event",
			zap.Error(err),
			zap.String("charge_id", charge.ID),
		)
		return
	}
	logger.Info("payment processed event published",
		zap.String("charge_id", charge.ID),
	)
}

func (s *PaymentService) createAtProvider(ctx context.Context, adapter domain.PaymentAdapter, provider domain.Provider, req domain.ChargeRequest) (*domain.PaymentResponse, error) {
	resp, err := adapter.CreateCharge(ctx, req)
	if err != nil {
		logger.Error("failed to create charge at provider",
			zap.Error(err),
			zap.String("provider", string(provider)),
			zap.String("external_reference", req.ExternalReference),
		)
		return nil, providerFailure(err)
	}
	s.metrics.ChargeCreated(ctx, string(provider), string(resp.Status))
	return resp, nil
}

func (s *PaymentService) activeGateway(ctx context.Context, companyID string, provider domain.Provider) (*domain.GatewayConfig, error) {
	gateway, err := s.gateways.GetActive(ctx, companyID, provider)
	if err != nil {
		return nil, err
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: %s for company %s", domain.ErrGatewayNotConfigured, provider, companyID)
	}
	return gateway, nil
}

func (s *PaymentService) customerFor(ctx context.Context, charge *domain.Charge) (domain.Customer, error) {
	if charge.ContactID == "" || s.contacts == nil {
		return charge.Customer, nil
	}
	contact, err := s.contacts.GetByID(ctx, charge.ContactID)
	if err != nil {
		return domain.Customer{}, err
	}
	if contact == nil {
		logger.Warn("contact not found, using charge customer snapshot",
			zap.String("contact_id", charge.ContactID),
			zap.String("charge_id", charge.ID),
		)
		return charge.Customer, nil
	}
	return contact.Customer(), nil
}

// providerFailure marks adapter errors that are not provider refusals as
// upstream failures.
func providerFailure(err error) error {
	var rejection *domain.RejectionError
	if errors.As(err, &rejection) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
}
