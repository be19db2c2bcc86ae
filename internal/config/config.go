package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string         `mapstructure:"port"`
	Env           string         `mapstructure:"env"`
	PublicBaseURL string         `mapstructure:"public_base_url"`
	HTTPTimeout   time.Duration  `mapstructure:"http_client_timeout"`
	AWS           AWSConfig      `mapstructure:"aws"`
	DynamoDB      DynamoDBConfig `mapstructure:"dynamodb"`
	Events        EventsConfig   `mapstructure:"events"`
	Kafka         KafkaConfig    `mapstructure:"kafka"`
	OTel          OTelConfig     `mapstructure:"otel"`
}

type AWSConfig struct {
	EndpointURL string `mapstructure:"endpoint_url"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

type DynamoDBConfig struct {
	ChargesTable      string `mapstructure:"charges_table"`
	GatewaysTable     string `mapstructure:"gateways_table"`
	ContactsTable     string `mapstructure:"contacts_table"`
	QuotesTable       string `mapstructure:"quotes_table"`
	TransactionsTable string `mapstructure:"transactions_table"`
}

type EventsConfig struct {
	Backend string `mapstructure:"backend"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// BrokerList splits the comma separated broker addresses.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type OTelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Endpoint    string `mapstructure:"exporter_otlp_endpoint"`
}

const (
	EventsBackendSNS   = "sns"
	EventsBackendKafka = "kafka"
	EventsBackendNone  = "none"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "production")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("http_client_timeout", 30*time.Second)

	v.SetDefault("aws.endpoint_url", "")
	v.SetDefault("aws.sns_topic_arn", "")

	v.SetDefault("dynamodb.charges_table", "company_charges")
	v.SetDefault("dynamodb.gateways_table", "company_payment_gateways")
	v.SetDefault("dynamodb.contacts_table", "contacts")
	v.SetDefault("dynamodb.quotes_table", "quotes")
	v.SetDefault("dynamodb.transactions_table", "transactions")

	v.SetDefault("events.backend", EventsBackendSNS)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "payment-processed")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "lucrocerto-pagamentos")
	v.SetDefault("otel.version", "1.0.0")
	v.SetDefault("otel.environment", "local")
	v.SetDefault("otel.exporter_otlp_endpoint", "localhost:4318")
}

// Load reads defaults, an optional config file and environment variables.
// Nested keys map to env vars with underscores, e.g. DYNAMODB_CHARGES_TABLE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Events.Backend {
	case EventsBackendSNS, EventsBackendKafka, EventsBackendNone:
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_client_timeout must be positive")
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}
