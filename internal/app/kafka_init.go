package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

// initKafkaPublisher создаёт publisher событий по чекам, если заданы брокеры.
// Недоступная Kafka не мешает работе кассы: возвращается ошибка, а продажи
// и печать идут без публикации.
func initKafkaPublisher(cfg Config, logger *log.Entry) (domain.EventPublisher, *kafka.Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, nil, err
	}

	logger.WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
	}).Info("kafka producer initialized")
	return kafka.NewReceiptPublisher(producer, cfg.KafkaTopic), producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
