package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/vladislavdragonenkov/pos/internal/receipt"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

// StorageDriver выбирает бэкенд хранилища ключ/значение.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverFile     StorageDriver = "file"
	StorageDriverRedis    StorageDriver = "redis"
	StorageDriverPostgres StorageDriver = "postgres"
)

// PrinterDriver выбирает адаптер принтера.
type PrinterDriver string

const (
	PrinterDriverSerial PrinterDriver = "serial"
	PrinterDriverNet    PrinterDriver = "net"
	PrinterDriverFile   PrinterDriver = "file"
)

// Config описывает настройки запуска; читается из переменных POS_*.
type Config struct {
	HTTPAddr    string `env:"POS_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string `env:"POS_GRPC_ADDR" envDefault:":50051"`
	LogLevel    string `env:"POS_LOG_LEVEL" envDefault:"info"`
	Environment string `env:"POS_ENV" envDefault:"development"`

	StorageDriver       StorageDriver `env:"POS_STORAGE_DRIVER" envDefault:"file"`
	DataDir             string        `env:"POS_DATA_DIR" envDefault:"./data"`
	RedisAddr           string        `env:"POS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword       string        `env:"POS_REDIS_PASSWORD"`
	RedisDB             int           `env:"POS_REDIS_DB" envDefault:"0"`
	RedisPrefix         string        `env:"POS_REDIS_PREFIX" envDefault:"pos:"`
	PostgresDSN         string        `env:"POS_POSTGRES_DSN"`
	PostgresNamespace   string        `env:"POS_POSTGRES_NAMESPACE" envDefault:"default"`
	PostgresAutoMigrate bool          `env:"POS_POSTGRES_AUTO_MIGRATE" envDefault:"true"`

	PrinterDriver           PrinterDriver `env:"POS_PRINTER_DRIVER" envDefault:"file"`
	PrinterMode             string        `env:"POS_PRINTER_MODE" envDefault:"permissive"`
	PrinterPorts            []string      `env:"POS_PRINTER_PORTS" envSeparator:","`
	PrinterBaudRate         int           `env:"POS_PRINTER_BAUD_RATE" envDefault:"9600"`
	PrinterAddress          string        `env:"POS_PRINTER_ADDRESS"`
	PrinterPath             string        `env:"POS_PRINTER_PATH" envDefault:"./data/printer.out"`
	PrinterEncoding         string        `env:"POS_PRINTER_ENCODING" envDefault:"utf-8"`
	PrinterDiscoveryTimeout time.Duration `env:"POS_PRINTER_DISCOVERY_TIMEOUT" envDefault:"30s"`
	PrinterConnectTimeout   time.Duration `env:"POS_PRINTER_CONNECT_TIMEOUT" envDefault:"30s"`
	ReceiptFormat           string        `env:"POS_RECEIPT_FORMAT" envDefault:"escpos"`

	RemoteCatalogURL string        `env:"POS_REMOTE_CATALOG_URL"`
	RemoteTimeout    time.Duration `env:"POS_REMOTE_TIMEOUT" envDefault:"15s"`
	SyncPollInterval time.Duration `env:"POS_SYNC_POLL_INTERVAL" envDefault:"30s"`
	SyncMaxAttempts  int           `env:"POS_SYNC_MAX_ATTEMPTS" envDefault:"5"`

	KafkaBrokers  []string `env:"POS_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `env:"POS_KAFKA_TOPIC" envDefault:"pos.receipt.events"`
	KafkaClientID string   `env:"POS_KAFKA_CLIENT_ID" envDefault:"pos-server"`

	// JWTSecret пустой — секрет генерируется при старте, токены живут до перезапуска.
	JWTSecret string        `env:"POS_JWT_SECRET"`
	JWTTTL    time.Duration `env:"POS_JWT_TTL" envDefault:"12h"`
	// DefaultPassword заменяет встроенный пароль администратора для нового магазина.
	DefaultPassword string `env:"POS_DEFAULT_PASSWORD"`

	TracingEnabled  bool    `env:"POS_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"POS_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"POS_TRACE_SAMPLE_RATE" envDefault:"1"`
}

// DefaultConfig возвращает значения по умолчанию из тегов envDefault.
func DefaultConfig() Config {
	var cfg Config
	// Пустое окружение: берутся только envDefault.
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// LoadConfig читает конфигурацию из окружения процесса и проверяет её.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverFile, StorageDriverRedis:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POS_POSTGRES_DSN is required for %s storage", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	switch c.PrinterDriver {
	case PrinterDriverSerial, PrinterDriverFile:
	case PrinterDriverNet:
		if c.PrinterAddress == "" {
			return fmt.Errorf("POS_PRINTER_ADDRESS is required for %s printer", c.PrinterDriver)
		}
	default:
		return fmt.Errorf("unsupported printer driver %q", c.PrinterDriver)
	}

	if _, err := receipt.ParseFormat(c.ReceiptFormat); err != nil {
		return err
	}
	if c.SyncMaxAttempts <= 0 {
		return fmt.Errorf("POS_SYNC_MAX_ATTEMPTS must be positive, got %d", c.SyncMaxAttempts)
	}
	_, err := c.Settings()
	return err
}

// Settings накладывает настройки запуска на статические параметры.
func (c Config) Settings() (settings.Settings, error) {
	s := settings.Default()
	s.RemoteCatalogURL = c.RemoteCatalogURL
	s.Printer.Mode = settings.DiscoveryMode(c.PrinterMode)
	s.Printer.Encoding = c.PrinterEncoding
	if c.PrinterDiscoveryTimeout > 0 {
		s.Printer.DiscoveryTimeout = c.PrinterDiscoveryTimeout
	}
	if c.PrinterConnectTimeout > 0 {
		s.Printer.ConnectTimeout = c.PrinterConnectTimeout
	}
	if c.DefaultPassword != "" {
		s.Shop.Password = c.DefaultPassword
	}
	if err := s.Validate(); err != nil {
		return settings.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
