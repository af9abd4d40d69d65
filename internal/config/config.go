package config

import (
	"fmt"
	"log"
	"os"
	"time"

	platformkafka "github.com/gobigtech/status-service/platform/kafka"
)

// Env представляет окружение приложения
type Env string

const (
	// EnvLocal - локальное окружение (для разработки на хосте)
	EnvLocal Env = "local"
	// EnvDocker - Docker окружение (для запуска в контейнерах)
	EnvDocker Env = "docker"
)

// Topics — имена пяти upstream-топиков, по одному на стадию пайплайна
type Topics struct {
	Orders       string
	Inventory    string
	Payment      string
	Notification string
	Shipping     string
}

// All возвращает все топики в фиксированном порядке
func (t Topics) All() []string {
	return []string{t.Orders, t.Inventory, t.Payment, t.Notification, t.Shipping}
}

// Config содержит конфигурацию Status Service
type Config struct {
	AppEnv          Env
	HTTPAddr        string
	Kafka           platformkafka.Config
	Topics          Topics
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения
// Читает APP_ENV и устанавливает дефолты в зависимости от окружения
func Load() (Config, error) {
	cfg := Config{}

	// Читаем APP_ENV
	appEnvStr := getString("APP_ENV", string(EnvLocal))
	appEnv := Env(appEnvStr)
	if appEnv != EnvLocal && appEnv != EnvDocker {
		return Config{}, fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", appEnvStr)
	}
	cfg.AppEnv = appEnv

	// HTTP_ADDR
	if cfg.AppEnv == EnvLocal {
		cfg.HTTPAddr = getString("HTTP_ADDR", "127.0.0.1:8087")
	} else {
		cfg.HTTPAddr = getString("HTTP_ADDR", "0.0.0.0:8087")
	}

	// Kafka: KAFKA_BROKERS / KAFKA_GROUP_ID
	cfg.Kafka = platformkafka.DefaultConfig()
	cfg.Kafka.GroupID = "status-service"
	if cfg.AppEnv == EnvDocker {
		cfg.Kafka.Brokers = []string{"kafka:9092"}
	}
	if err := platformkafka.LoadEnv(&cfg.Kafka); err != nil {
		return Config{}, fmt.Errorf("invalid kafka config: %w", err)
	}

	// Топики стадий пайплайна; дефолты — имена, под которыми публикуют продюсеры
	cfg.Topics = Topics{
		Orders:       getString("KAFKA_ORDERS_TOPIC", "orders"),
		Inventory:    getString("KAFKA_INVENTORY_TOPIC", "inventory"),
		Payment:      getString("KAFKA_PAYMENT_TOPIC", "payment"),
		Notification: getString("KAFKA_NOTIFICATION_TOPIC", "notification"),
		Shipping:     getString("KAFKA_SHIPPING_TOPIC", "shipping"),
	}

	// SHUTDOWN_TIMEOUT
	shutdownTimeoutStr := getString("SHUTDOWN_TIMEOUT", "10s")
	shutdownTimeout, err := time.ParseDuration(shutdownTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout = shutdownTimeout

	// Валидация
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("KAFKA_GROUP_ID is required")
	}
	for _, topic := range c.Topics.All() {
		if topic == "" {
			return fmt.Errorf("all kafka topics are required")
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Log выводит конфигурацию в лог
func (c Config) Log() {
	log.Printf("Config loaded:")
	log.Printf("  APP_ENV: %s", c.AppEnv)
	log.Printf("  HTTP_ADDR: %s", c.HTTPAddr)
	log.Printf("  KAFKA_BROKERS: %v", c.Kafka.Brokers)
	log.Printf("  KAFKA_GROUP_ID: %s", c.Kafka.GroupID)
	log.Printf("  KAFKA_TOPICS: %v", c.Topics.All())
	log.Printf("  SHUTDOWN_TIMEOUT: %s", c.ShutdownTimeout)
}

// getString читает переменную окружения или возвращает дефолт
func getString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
