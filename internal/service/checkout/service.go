// Package checkout — сценарии корзины и оформления продажи.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// Store — часть хранилища, нужная кассе.
type Store interface {
	Cart() []domain.CartLine
	AddToCart(ctx context.Context, productID string, quantity int) (domain.CartLine, error)
	UpdateCartItem(ctx context.Context, productID string, quantity int) (domain.CartLine, error)
	RemoveFromCart(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
	Subtotal() decimal.Decimal
	PreviewReceipt(serviceFee decimal.Decimal) (domain.Receipt, error)
	SaveReceipt(ctx context.Context, serviceFee decimal.Decimal) (domain.Receipt, error)
	Receipts() []domain.Receipt
	Receipt(id int64) (domain.Receipt, error)
}

// Totals — итоги корзины.
type Totals struct {
	Items      int             `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"serviceFee"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// Service — операции кассира.
type Service struct {
	store     Store
	publisher domain.EventPublisher
	metrics   *metrics.POSMetrics
	logger    *log.Entry
	now       func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithPublisher включает публикацию receipt.saved.
func WithPublisher(p domain.EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.POSMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: log.WithField("component", "checkout"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Cart() []domain.CartLine {
	return s.store.Cart()
}

// Add кладёт товар в корзину; повторное добавление увеличивает количество.
func (s *Service) Add(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	return s.store.AddToCart(ctx, productID, quantity)
}

func (s *Service) Update(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	return s.store.UpdateCartItem(ctx, productID, quantity)
}

func (s *Service) Remove(ctx context.Context, productID string) error {
	return s.store.RemoveFromCart(ctx, productID)
}

func (s *Service) Clear(ctx context.Context) error {
	return s.store.ClearCart(ctx)
}

// Totals считает итоги корзины с сервисным сбором.
func (s *Service) Totals(serviceFee decimal.Decimal) (Totals, error) {
	if serviceFee.IsNegative() {
		return Totals{}, fmt.Errorf("%w: service fee must not be negative", domain.ErrValidation)
	}
	lines := s.store.Cart()
	items := 0
	for _, l := range lines {
		items += l.Quantity
	}
	subtotal := domain.Subtotal(lines)
	return Totals{
		Items:      items,
		Subtotal:   subtotal,
		ServiceFee: serviceFee,
		GrandTotal: subtotal.Add(serviceFee),
	}, nil
}

// Preview собирает чек без сохранения.
func (s *Service) Preview(serviceFee decimal.Decimal) (domain.Receipt, error) {
	return s.store.PreviewReceipt(serviceFee)
}

// Save фиксирует продажу и публикует receipt.saved. Ошибка публикации
// не отменяет продажу.
func (s *Service) Save(ctx context.Context, serviceFee decimal.Decimal) (domain.Receipt, error) {
	receipt, err := s.store.SaveReceipt(ctx, serviceFee)
	if err != nil {
		return domain.Receipt{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordReceiptSaved()
	}

	logger := s.logger.WithFields(log.Fields{
		"receipt_id": receipt.ID,
		"invoice_no": receipt.InvoiceNo,
		"total":      receipt.GrandTotal.String(),
	})
	logger.Info("receipt saved")

	if s.publisher != nil {
		event := domain.ReceiptEvent{Type: domain.ReceiptEventSaved, Receipt: receipt, OccurredAt: s.now().UTC()}
		if err := s.publisher.Publish(ctx, event); err != nil {
			logger.WithError(err).Warn("failed to publish receipt event")
		}
	}
	return receipt, nil
}

// History возвращает сохранённые чеки, новые первыми.
func (s *Service) History() []domain.Receipt {
	return s.store.Receipts()
}

func (s *Service) Receipt(id int64) (domain.Receipt, error) {
	return s.store.Receipt(id)
}
