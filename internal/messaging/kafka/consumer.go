package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// ReceiptHandler обрабатывает событие по чеку.
type ReceiptHandler func(ctx context.Context, event domain.ReceiptEvent) error

// Consumer читает события по чекам из consumer group.
type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	handler  ReceiptHandler
	// types, если не пуст, ограничивает обрабатываемые типы событий.
	types  map[domain.ReceiptEventType]struct{}
	logger *log.Entry
	wg     sync.WaitGroup
}

// NewConsumer создаёт consumer. fromOldest читает топик с начала.
func NewConsumer(brokers []string, groupID string, topics []string, fromOldest bool, handler ReceiptHandler, types ...domain.ReceiptEventType) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if fromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return newConsumer(consumer, topics, handler, types...), nil
}

func newConsumer(group sarama.ConsumerGroup, topics []string, handler ReceiptHandler, types ...domain.ReceiptEventType) *Consumer {
	filter := make(map[domain.ReceiptEventType]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	return &Consumer{
		consumer: group,
		topics:   topics,
		handler:  handler,
		types:    filter,
		logger:   log.WithField("component", "kafka-consumer"),
	}
}

// Start запускает чтение в фоне.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается при каждом rebalance.
			if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает consumer group и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения партиции. Нечитаемые сообщения
// пропускаются с отметкой, сообщения с ошибкой обработчика не отмечаются.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}

			if !c.wanted(domain.ReceiptEventType(header(message, HeaderEventType))) {
				session.MarkMessage(message, "")
				continue
			}

			event, err := ParseReceiptEvent(message)
			if err != nil {
				c.logger.WithError(err).WithFields(fields).Warn("skipping malformed message")
				session.MarkMessage(message, "")
				continue
			}
			if !c.wanted(event.Type) {
				session.MarkMessage(message, "")
				continue
			}

			if err := c.handler(session.Context(), event); err != nil {
				c.logger.WithError(err).WithFields(fields).Error("receipt event handler failed")
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// wanted: пустой тип (нет заголовка) пропускается дальше до разбора тела.
func (c *Consumer) wanted(t domain.ReceiptEventType) bool {
	if len(c.types) == 0 || t == "" {
		return true
	}
	_, ok := c.types[t]
	return ok
}
