package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt — неизменяемый снимок продажи.
type Receipt struct {
	ID         int64           `json:"id"`
	ShopName   string          `json:"shopName"`
	Address    string          `json:"address"`
	Phone      string          `json:"phone"`
	InvoiceNo  int             `json:"invoiceNo"`
	Date       time.Time       `json:"date"`
	Items      []CartLine      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"serviceFee"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// ReceiptEventType перечисляет события, публикуемые по чекам.
type ReceiptEventType string

const (
	ReceiptEventSaved   ReceiptEventType = "receipt.saved"
	ReceiptEventPrinted ReceiptEventType = "receipt.printed"
)

// ReceiptEvent уходит во внешнюю шину после сохранения или печати чека.
type ReceiptEvent struct {
	Type       ReceiptEventType `json:"type"`
	Receipt    Receipt          `json:"receipt"`
	OccurredAt time.Time        `json:"occurredAt"`
}
