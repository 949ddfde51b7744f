package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// TopicReceiptEvents — топик событий по чекам.
const TopicReceiptEvents = "pos.receipt.events"

// Заголовки сообщений: по ним потребитель фильтрует события, не разбирая тело.
const (
	HeaderEventType = "x-event-type"
	HeaderInvoiceNo = "x-invoice-no"
)

// ReceiptKey — ключ партиционирования: id чека.
func ReceiptKey(event domain.ReceiptEvent) string {
	return strconv.FormatInt(event.Receipt.ID, 10)
}

// ReceiptHeaders возвращает заголовки сообщения для события.
func ReceiptHeaders(event domain.ReceiptEvent) map[string]string {
	return map[string]string{
		HeaderEventType: string(event.Type),
		HeaderInvoiceNo: strconv.Itoa(event.Receipt.InvoiceNo),
	}
}

// ParseReceiptEvent разбирает событие из сообщения.
func ParseReceiptEvent(message *sarama.ConsumerMessage) (domain.ReceiptEvent, error) {
	var event domain.ReceiptEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return domain.ReceiptEvent{}, fmt.Errorf("failed to unmarshal receipt event: %w", err)
	}
	if event.Type == "" {
		return domain.ReceiptEvent{}, fmt.Errorf("receipt event without type at offset %d", message.Offset)
	}
	return event, nil
}

func header(message *sarama.ConsumerMessage, key string) string {
	for _, h := range message.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
