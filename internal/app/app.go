package app

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/gobigtech/status-service/internal/api/http"
	"github.com/gobigtech/status-service/internal/broadcast"
	"github.com/gobigtech/status-service/internal/config"
	eventkafka "github.com/gobigtech/status-service/internal/event/kafka"
	"github.com/gobigtech/status-service/internal/repository/memory"
	"github.com/gobigtech/status-service/internal/service"
	platformlogging "github.com/gobigtech/status-service/platform/logging"
	platformshutdown "github.com/gobigtech/status-service/platform/shutdown"
)

// App содержит все зависимости для запуска и корректного shutdown Status Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	consumers   []*eventkafka.StreamConsumer
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Status Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	// Создаём logger
	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "status",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Status service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("group_id", cfg.Kafka.GroupID),
		zap.Strings("topics", cfg.Topics.All()),
	)

	// Состояние целиком in-memory: рестарт теряет агрегат, upstream-лог
	// при этом остаётся источником истины
	repo := memory.NewMemoryRepository()
	registry := broadcast.NewRegistry(logger)
	statusService := service.NewStatusService(logger, repo, registry)

	// По одному consumer-у на каждый upstream-топик
	consumers := make([]*eventkafka.StreamConsumer, 0, len(cfg.Topics.All()))
	for _, topic := range cfg.Topics.All() {
		consumers = append(consumers, eventkafka.NewStreamConsumer(
			logger,
			cfg.Kafka.Brokers,
			cfg.Kafka.GroupID,
			topic,
			statusService,
		))
	}

	// HTTP слой
	handler := httpapi.NewHandler(logger, statusService)
	router := httpapi.NewRouter(handler, func() bool { return true })

	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout не ставим: /ws держит соединение открытым
		// неограниченно долго
		IdleTimeout: 60 * time.Second,
	}

	// Создаём shutdown manager
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)

	app := &App{
		logger:      logger,
		httpServer:  httpServer,
		consumers:   consumers,
		shutdownMgr: shutdownMgr,
	}

	// Регистрируем shutdown функции: сперва закрываются readers
	// (регистрация в обратном порядке выполнения)
	for i, consumer := range consumers {
		shutdownMgr.Add("kafka_consumer_"+cfg.Topics.All()[i], platformshutdown.CloseReader(consumer))
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return app, nil
}

// Run запускает consumers и HTTP сервер, блокируется до сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	ctx, cancel := context.WithCancel(context.Background())
	a.shutdownMgr.Add("consumer_context", func(context.Context) error {
		cancel()
		return nil
	})

	for _, consumer := range a.consumers {
		a.wg.Add(1)
		go func(c *eventkafka.StreamConsumer) {
			defer a.wg.Done()
			if err := c.Start(ctx); err != nil {
				a.logger.Error("consumer stopped with error", zap.Error(err))
			}
		}(consumer)
	}

	a.logger.Info("Starting Status service", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Ожидаем сигнал и выполняем shutdown
	a.shutdownMgr.Wait()

	a.wg.Wait()
	a.logger.Info("Status service stopped")
	return nil
}
