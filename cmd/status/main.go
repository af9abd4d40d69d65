package main

import (
	"log"

	"github.com/gobigtech/status-service/internal/app"
	"github.com/gobigtech/status-service/internal/config"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Log()

	// Собираем граф зависимостей
	application, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	// Run блокируется до graceful shutdown
	if err := application.Run(); err != nil {
		log.Fatalf("Service error: %v", err)
	}
}
