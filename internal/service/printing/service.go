// Package printing печатает чеки через транспорт принтера. Одновременно
// выполняется не больше одного задания: остальные сразу получают domain.ErrBusy.
package printing

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/printer"
	"github.com/vladislavdragonenkov/pos/internal/receipt"
)

// Printer — то, что сервису нужно от транспорта.
type Printer interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Status() printer.Status
	SendData(ctx context.Context, text string) (printer.Delivery, error)
}

var _ Printer = (*printer.Transport)(nil)

// Result — итог печати.
type Result struct {
	Bytes    int  `json:"bytes"`
	Fallback bool `json:"fallback"`
	Chunks   int  `json:"chunks,omitempty"`
}

// Service — сценарии печати.
type Service struct {
	printer   Printer
	formatter receipt.Formatter
	publisher domain.EventPublisher
	metrics   *metrics.POSMetrics
	logger    *log.Entry
	now       func() time.Time

	printing atomic.Bool
}

// Option настраивает Service.
type Option func(*Service)

// WithPublisher включает публикацию receipt.printed.
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

// WithClock подменяет часы для тестовой страницы.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт Service.
func NewService(p Printer, formatter receipt.Formatter, opts ...Option) *Service {
	s := &Service{
		printer:   p,
		formatter: formatter,
		logger:    log.WithField("component", "printing"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect подключает принтер.
func (s *Service) Connect(ctx context.Context) (printer.Status, error) {
	err := s.printer.Connect(ctx)
	return s.printer.Status(), err
}

// Disconnect разрывает соединение.
func (s *Service) Disconnect() (printer.Status, error) {
	err := s.printer.Disconnect()
	return s.printer.Status(), err
}

func (s *Service) Status() printer.Status {
	return s.printer.Status()
}

// Busy сообщает, выполняется ли сейчас печать.
func (s *Service) Busy() bool {
	return s.printing.Load()
}

// PrintReceipt печатает чек, при необходимости подключая принтер.
func (s *Service) PrintReceipt(ctx context.Context, r domain.Receipt) (Result, error) {
	res, err := s.run(ctx, s.formatter.Receipt(r))
	if err != nil {
		s.logger.WithError(err).WithField("receipt_id", r.ID).Warn("receipt print failed")
		return res, err
	}

	logger := s.logger.WithFields(log.Fields{"receipt_id": r.ID, "bytes": res.Bytes, "fallback": res.Fallback})
	logger.Info("receipt printed")
	if s.publisher != nil {
		event := domain.ReceiptEvent{Type: domain.ReceiptEventPrinted, Receipt: r, OccurredAt: s.now().UTC()}
		if err := s.publisher.Publish(ctx, event); err != nil {
			logger.WithError(err).Warn("failed to publish receipt event")
		}
	}
	return res, nil
}

// TestPrint печатает тестовую страницу.
func (s *Service) TestPrint(ctx context.Context) (Result, error) {
	res, err := s.run(ctx, receipt.TestPage(s.now()))
	if err != nil {
		s.logger.WithError(err).Warn("test print failed")
	}
	return res, err
}

func (s *Service) run(ctx context.Context, payload string) (Result, error) {
	if !s.printing.CompareAndSwap(false, true) {
		s.record(metrics.ResultBusy, 0)
		return Result{}, domain.ErrBusy
	}
	defer s.printing.Store(false)

	started := time.Now()
	if !s.printer.Connected() {
		if err := s.printer.Connect(ctx); err != nil {
			s.record(metrics.ResultFailure, time.Since(started))
			return Result{}, err
		}
	}

	d, err := s.printer.SendData(ctx, payload)
	if err != nil {
		s.record(metrics.ResultFailure, time.Since(started))
		return Result{}, err
	}

	result := metrics.ResultSuccess
	if d.Fallback {
		result = metrics.ResultFallback
	}
	s.record(result, time.Since(started))
	return Result{Bytes: d.Bytes, Fallback: d.Fallback, Chunks: d.Chunks}, nil
}

func (s *Service) record(result string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordPrint(result, d)
	}
}
