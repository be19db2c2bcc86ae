package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/alexssanderFonseca/lucrocerto/internal/logger"
	"github.com/alexssanderFonseca/lucrocerto/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentService interface {
	CreateCharge(ctx context.Context, in service.CreateChargeInput) (*service.ChargeResult, error)
	ProcessCheckout(ctx context.Context, in service.CheckoutInput) (*service.ChargeResult, error)
	TestConnection(ctx context.Context, provider domain.Provider, config json.RawMessage, sandbox bool) (*domain.ConnectionResult, error)
	HandleWebhook(ctx context.Context, in service.WebhookInput) error
	SyncStatus(ctx context.Context, chargeID string) (*domain.Charge, error)
	CreatePixKey(ctx context.Context, provider domain.Provider, config json.RawMessage, sandbox bool) (*domain.PixKey, error)
}

type PaymentHandler struct {
	service PaymentService
}

func NewPaymentHandler(service PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

type CreateChargeRequest struct {
	Provider  string               `json:"provider" binding:"required"`
	Config    json.RawMessage      `json:"config"`
	IsSandbox bool                 `json:"is_sandbox"`
	CompanyID string               `json:"company_id"`
	Charge    domain.ChargeRequest `json:"charge"`
}

type CheckoutRequest struct {
	ChargeID string `json:"chargeId" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Method   string `json:"method"`
}

// GatewayRequest carries caller supplied credentials for one provider.
type GatewayRequest struct {
	Provider  string          `json:"provider" binding:"required"`
	Config    json.RawMessage `json:"config"`
	IsSandbox bool            `json:"is_sandbox"`
}

type ChargeResponse struct {
	ChargeID string `json:"charge_id"`
	domain.PaymentResponse
}

// CreateCharge godoc
// @Summary      Criar uma cobrança
// @Description  Cria a cobrança no provedor informado e grava o resultado pela external_reference
// @Tags         pagamentos
// @Accept       json
// @Produce      json
// @Param        request  body      CreateChargeRequest  true  "Provedor, credenciais e cobrança"
// @Success      201      {object}  ChargeResponse
// @Success      200      {object}  ChargeResponse  "cobrança recusada pelo provedor"
// @Failure      400      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /payments/charges [post]
func (h *PaymentHandler) CreateCharge(c *gin.Context) {
	var req CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.service.CreateCharge(c.Request.Context(), service.CreateChargeInput{
		Provider:  provider,
		Config:    req.Config,
		Sandbox:   req.IsSandbox,
		CompanyID: req.CompanyID,
		Request:   req.Charge,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeCharge(c, result)
}

// ProcessCheckout godoc
// @Summary      Processar checkout público
// @Description  Cobra uma cobrança existente com o gateway configurado da empresa
// @Tags         pagamentos
// @Accept       json
// @Produce      json
// @Param        request  body      CheckoutRequest  true  "Cobrança, provedor e método"
// @Success      201      {object}  ChargeResponse
// @Failure      404      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Router       /payments/process-checkout [post]
func (h *PaymentHandler) ProcessCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.service.ProcessCheckout(c.Request.Context(), service.CheckoutInput{
		ChargeID: req.ChargeID,
		Provider: provider,
		Method:   domain.PaymentMethod(req.Method),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeCharge(c, result)
}

// TestConnection godoc
// @Summary      Testar credenciais do gateway
// @Tags         gateways
// @Accept       json
// @Produce      json
// @Param        request  body      GatewayRequest  true  "Provedor e credenciais"
// @Success      200      {object}  domain.ConnectionResult
// @Failure      400      {object}  map[string]string
// @Router       /payments/test-connection [post]
func (h *PaymentHandler) TestConnection(c *gin.Context) {
	var req GatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.service.TestConnection(c.Request.Context(), provider, req.Config, req.IsSandbox)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreatePixKey godoc
// @Summary      Criar chave PIX aleatória
// @Tags         gateways
// @Accept       json
// @Produce      json
// @Param        request  body      GatewayRequest  true  "Provedor e credenciais"
// @Success      201      {object}  domain.PixKey
// @Failure      422      {object}  map[string]string
// @Router       /payments/pix-keys [post]
func (h *PaymentHandler) CreatePixKey(c *gin.Context) {
	var req GatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		h.writeError(c, err)
		return
	}

	key, err := h.service.CreatePixKey(c.Request.Context(), provider, req.Config, req.IsSandbox)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, key)
}

// SyncStatus godoc
// @Summary      Sincronizar status da cobrança
// @Tags         pagamentos
// @Produce      json
// @Param        chargeId  path      string  true  "ID da cobrança"
// @Success      200       {object}  domain.Charge
// @Failure      404       {object}  map[string]string
// @Router       /payments/charges/{chargeId}/sync [post]
func (h *PaymentHandler) SyncStatus(c *gin.Context) {
	charge, err := h.service.SyncStatus(c.Request.Context(), c.Param("chargeId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}

// HandleWebhook godoc
// @Summary      Receber notificação do provedor
// @Description  Valida a assinatura quando suportada e atualiza a cobrança da empresa
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        provider   path      string  true  "asaas, mercadopago ou stripe"
// @Param        companyId  path      string  true  "ID da empresa"
// @Success      200        {object}  map[string]string
// @Failure      400        {object}  map[string]string
// @Failure      401        {object}  map[string]string
// @Router       /payments/webhook/{provider}/{companyId} [post]
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.service.HandleWebhook(c.Request.Context(), service.WebhookInput{
		Provider:  provider,
		CompanyID: c.Param("companyId"),
		Payload:   payload,
		Headers:   c.Request.Header,
	})
	if errors.Is(err, domain.ErrNotificationIgnored) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *PaymentHandler) writeCharge(c *gin.Context, result *service.ChargeResult) {
	status := http.StatusCreated
	if !result.Response.Success {
		status = http.StatusOK
	}
	c.JSON(status, ChargeResponse{
		ChargeID:        result.Charge.ID,
		PaymentResponse: result.Response,
	})
}

func (h *PaymentHandler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Warn("request rejected", fields...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var rejection *domain.RejectionError
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrChargeNotFound), errors.Is(err, domain.ErrGatewayNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrChargeAlreadyPaid):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderNotSupported),
		errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidChargeRequest),
		errors.Is(err, domain.ErrInvalidNotification):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOperationNotSupported), errors.As(err, &rejection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
