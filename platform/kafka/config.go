package kafka

// Config содержит конфигурацию для подключения к Kafka
type Config struct {
	// Brokers — список брокеров Kafka.
	// Можно указать несколько брокеров через запятую: "broker1:9092,broker2:9092"
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// GroupID — consumer group, общая для всех читателей сервиса.
	// Один group id на сервис: каждый топик читается независимым reader-ом,
	// но offset-ы трекаются под одной группой. Дефолт задаёт сервис
	// в своём config слое.
	GroupID string `env:"KAFKA_GROUP_ID"`
}

// DefaultConfig возвращает конфигурацию с дефолтными значениями для локальной разработки.
// Сервисы должны получать актуальные значения через переменные окружения.
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:9092"},
	}
}
