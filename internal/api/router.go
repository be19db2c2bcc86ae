package api

import (
	"github.com/alexssanderFonseca/lucrocerto/internal/api/handler"
	"github.com/gin-gonic/gin"
)

func SetupRouter(paymentHandler *handler.PaymentHandler) *gin.Engine {
	r := gin.Default()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "up"})
	})

	payments := r.Group("/payments")
	{
		payments.POST("/charges", paymentHandler.CreateCharge)
		payments.POST("/charges/:chargeId/sync", paymentHandler.SyncStatus)
		payments.POST("/process-checkout", paymentHandler.ProcessCheckout)
		payments.POST("/test-connection", paymentHandler.TestConnection)
		payments.POST("/pix-keys", paymentHandler.CreatePixKey)

		// Webhooks dos provedores, um endereço por empresa
		payments.POST("/webhook/:provider/:companyId", paymentHandler.HandleWebhook)
	}

	return r
}
