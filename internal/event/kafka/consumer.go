package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/service"
)

// StreamConsumer читает один upstream-топик и применяет его события
// к агрегатору. На каждый из пяти топиков (orders/inventory/payment/
// notification/shipping) создаётся свой StreamConsumer; порядок сохраняется
// только внутри одного топика.
type StreamConsumer struct {
	logger  *zap.Logger
	reader  *kafka.Reader
	service *service.StatusService
}

// NewStreamConsumer создаёт consumer для одного топика
func NewStreamConsumer(logger *zap.Logger, brokers []string, groupID, topic string, svc *service.StatusService) *StreamConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &StreamConsumer{
		logger:  logger.With(zap.String("topic", topic)),
		reader:  reader,
		service: svc,
	}
}

// envelope — минимальный конверт события; всё остальное kind-специфично
// и разбирается на уровне сервиса
type envelope struct {
	OrderID   string `json:"order_id"`
	EventType string `json:"event_type"`
}

// parseEnvelope валидирует обязательные поля конверта.
// Сообщение без order_id или event_type непригодно для агрегации.
func parseEnvelope(value []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.OrderID == "" {
		return envelope{}, fmt.Errorf("order_id is required")
	}
	if env.EventType == "" {
		return envelope{}, fmt.Errorf("event_type is required")
	}
	return env, nil
}

// Start запускает цикл чтения и блокируется до отмены контекста.
// Семантика at-most-once: offset коммитится всегда, в том числе для
// некорректных сообщений — они логируются и отбрасываются без retry и DLQ.
func (c *StreamConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer",
		zap.String("group_id", c.reader.Config().GroupID),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka",
				zap.Error(err),
			)
			continue
		}

		c.processMessage(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to commit message offset",
				zap.Error(err),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// processMessage применяет одно сообщение; любая ошибка приводит к дропу
func (c *StreamConsumer) processMessage(ctx context.Context, m kafka.Message) {
	env, err := parseEnvelope(m.Value)
	if err != nil {
		c.logger.Error("dropping malformed message",
			zap.Error(err),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return
	}

	state, err := c.service.ApplyEvent(ctx, env.OrderID, env.EventType, m.Value)
	if err != nil {
		c.logger.Error("dropping unappliable event",
			zap.Error(err),
			zap.String("order_id", env.OrderID),
			zap.String("event_type", env.EventType),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return
	}

	c.logger.Debug("event ingested",
		zap.String("order_id", env.OrderID),
		zap.String("event_type", env.EventType),
		zap.String("status", string(state.Status)),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)
}

// Close закрывает Kafka reader
func (c *StreamConsumer) Close() error {
	c.logger.Info("closing kafka consumer")
	return c.reader.Close()
}
