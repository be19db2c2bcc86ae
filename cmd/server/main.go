package main

import (
	"context"
	"os"

	"github.com/alexssanderFonseca/lucrocerto/internal/api"
	"github.com/alexssanderFonseca/lucrocerto/internal/api/handler"
	appconfig "github.com/alexssanderFonseca/lucrocerto/internal/config"
	"github.com/alexssanderFonseca/lucrocerto/internal/domain"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/gateway"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/kafka"
	"github.com/alexssanderFonseca/lucrocerto/internal/integration/sns"
	"github.com/alexssanderFonseca/lucrocerto/internal/logger"
	repo "github.com/alexssanderFonseca/lucrocerto/internal/repository/dynamodb"
	"github.com/alexssanderFonseca/lucrocerto/internal/service"
	"github.com/alexssanderFonseca/lucrocerto/internal/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()
	defer logger.Sync()

	appCfg, err := appconfig.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatal("unable to load config", zap.Error(err))
	}

	shutdown, err := telemetry.InitProvider(ctx, appCfg.OTel)
	if err != nil {
		logger.Fatal("unable to init telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewPaymentMetrics(nil)
	if err != nil {
		logger.Fatal("unable to create payment metrics", zap.Error(err))
	}

	// AWS Config
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("unable to load SDK config", zap.Error(err))
	}
	if appCfg.AWS.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(appCfg.AWS.EndpointURL)
	}

	// DynamoDB Client
	dbClient := dynamodb.NewFromConfig(cfg)
	tables := appCfg.DynamoDB

	publisher, closePublisher := eventPublisher(cfg, appCfg)
	defer closePublisher()

	// Dependency Injection
	paymentService := service.NewPaymentService(service.Deps{
		Charges:        repo.NewChargeRepository(dbClient, tables.ChargesTable),
		Gateways:       repo.NewGatewayConfigRepository(dbClient, tables.GatewaysTable),
		Contacts:       repo.NewContactRepository(dbClient, tables.ContactsTable),
		Quotes:         repo.NewQuoteRepository(dbClient, tables.QuotesTable),
		Transactions:   repo.NewTransactionRepository(dbClient, tables.TransactionsTable),
		Adapters:       gateway.NewFactory(gateway.Options{Timeout: appCfg.HTTPTimeout}),
		EventPublisher: publisher,
		Metrics:        metrics,
		WebhookBaseURL: appCfg.PublicBaseURL,
	})
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// Router initialization
	r := api.SetupRouter(paymentHandler)

	logger.Info("Server starting",
		zap.String("port", appCfg.Port),
		zap.String("events_backend", appCfg.Events.Backend),
	)
	if err := r.Run(":" + appCfg.Port); err != nil {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}

func eventPublisher(cfg aws.Config, appCfg *appconfig.Config) (domain.PaymentEventPublisher, func()) {
	switch appCfg.Events.Backend {
	case appconfig.EventsBackendSNS:
		return sns.NewClient(cfg, appCfg.AWS.SNSTopicARN), func() {}
	case appconfig.EventsBackendKafka:
		publisher, err := kafka.NewPublisher(appCfg.Kafka.BrokerList(), appCfg.Kafka.Topic)
		if err != nil {
			logger.Fatal("unable to create kafka publisher", zap.Error(err))
		}
		return publisher, func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to close kafka publisher", zap.Error(err))
			}
		}
	}
	return nil, func() {}
}
