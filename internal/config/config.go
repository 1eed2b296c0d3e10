package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Outbox   Outbox   `yaml:"outbox"`
	Consumer Consumer `yaml:"consumer"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"shop"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"shop"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"shop"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"shop"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	StartOffset string   `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
	Topics      Topics   `yaml:"topics"`
}

// Topics maps each fact type to its destination. One topic per fact,
// plus the shared dead-letter destination for poison messages.
type Topics struct {
	BasketCheckedOut string `yaml:"basket_checked_out" env:"KAFKA_TOPIC_BASKET_CHECKED_OUT" env-default:"basket-checked-out"`
	OrderCreated     string `yaml:"order_created" env:"KAFKA_TOPIC_ORDER_CREATED" env-default:"order-created"`
	OrderDeleted     string `yaml:"order_deleted" env:"KAFKA_TOPIC_ORDER_DELETED" env-default:"order-deleted"`
	DeadLetter       string `yaml:"dead_letter" env:"KAFKA_TOPIC_DEAD_LETTER" env-default:"shop-dead-letter"`
}

type Outbox struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"1s"`
	BatchSize    int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	MaxBackoff   time.Duration `yaml:"max_backoff" env:"OUTBOX_MAX_BACKOFF" env-default:"30s"`
}

type Consumer struct {
	OrderGroupID     string        `yaml:"order_group_id" env:"CONSUMER_ORDER_GROUP_ID" env-default:"order-service"`
	StockGroupID     string        `yaml:"stock_group_id" env:"CONSUMER_STOCK_GROUP_ID" env-default:"product-service"`
	MaxPoisonRetries int           `yaml:"max_poison_retries" env:"CONSUMER_MAX_POISON_RETRIES" env-default:"3"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" env:"CONSUMER_RETRY_BACKOFF" env-default:"1s"`
	MaxBackoff       time.Duration `yaml:"max_backoff" env:"CONSUMER_MAX_BACKOFF" env-default:"30s"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
