// Package syncer воспроизводит очередь отложенных операций удалённого каталога.
// Очередь сбрасывается только когда удалённый каталог отвечает на testConnection;
// записи идут строго в порядке добавления. Если запись товара не прошла или
// отложена навсегда, следующие записи того же товара ждут, пока она не уйдёт из очереди.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultMaxAttempts  = 5
)

// Store — часть хранилища, нужная воркеру.
type Store interface {
	PendingSync() []domain.PendingSyncEntry
	RemovePendingSync(ctx context.Context, id string) error
	RecordPendingAttempt(ctx context.Context, id string, cause error) (domain.PendingSyncEntry, error)
}

// Report — итог одного прохода по очереди.
type Report struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Parked    int `json:"parked"`
	Deferred  int `json:"deferred"`
	Remaining int `json:"remaining"`
}

// WorkerOptions задаёт параметры воркера.
type WorkerOptions struct {
	Logger       *log.Entry
	Metrics      *metrics.POSMetrics
	PollInterval time.Duration
	MaxAttempts  int
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.POSMetrics) Option {
	return func(opts *WorkerOptions) {
		opts.Metrics = m
	}
}

// WithPollInterval задаёт частоту проверки связи.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

// WithMaxAttempts задаёт число попыток, после которого запись откладывается
// и больше не воспроизводится автоматически.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// Worker сбрасывает очередь при восстановлении связи.
type Worker struct {
	store        Store
	remote       domain.CatalogClient
	logger       *log.Entry
	metrics      *metrics.POSMetrics
	pollInterval time.Duration
	maxAttempts  int

	// mu не даёт двум проходам (по таймеру и ручному) идти одновременно.
	mu sync.Mutex
}

// NewWorker создаёт воркер.
func NewWorker(store Store, remote domain.CatalogClient, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval: defaultPollInterval,
		MaxAttempts:  defaultMaxAttempts,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "sync-worker")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}

	return &Worker{
		store:        store,
		remote:       remote,
		logger:       logger,
		metrics:      opts.Metrics,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
	}
}

// Run периодически пытается сбросить очередь до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.store == nil || w.remote == nil {
		w.logger.Warn("sync worker is disabled: store or remote catalog is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один проход, если в очереди есть что воспроизводить.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.Flush(ctx); err != nil && !errors.Is(err, domain.ErrRemoteUnreachable) {
		w.logger.WithError(err).Warn("pending sync flush failed")
	}
}

// Flush проверяет связь и воспроизводит очередь. Если удалённый каталог
// недоступен, возвращает ошибку и очередь не трогает.
func (w *Worker) Flush(ctx context.Context) (Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := w.store.PendingSync()
	w.setPending(len(entries))

	var report Report
	if w.replayable(entries) == 0 {
		report.Parked = len(entries)
		report.Remaining = len(entries)
		return report, nil
	}

	if err := w.remote.TestConnection(ctx); err != nil {
		report.Remaining = len(entries)
		return report, fmt.Errorf("%w: %w", domain.ErrRemoteUnreachable, err)
	}

	blocked := make(map[string]struct{})
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		logger := w.logger.WithFields(log.Fields{"pending_id": entry.ID, "action": entry.Action})
		key := productKey(entry)

		if entry.Attempts >= w.maxAttempts {
			report.Parked++
			w.record(metrics.ResultParked)
			block(blocked, key)
			continue
		}
		if _, ok := blocked[key]; ok {
			report.Deferred++
			logger.WithField("product_id", key).Debug("earlier entry for product still pending, deferred")
			continue
		}

		err := w.replay(ctx, entry)
		if err == nil {
			if rmErr := w.store.RemovePendingSync(ctx, entry.ID); rmErr != nil {
				logger.WithError(rmErr).Warn("failed to remove replayed entry")
			}
			report.Replayed++
			w.record(metrics.ResultSuccess)
			continue
		}

		report.Failed++
		w.record(metrics.ResultFailure)
		block(blocked, key)
		updated, attemptErr := w.store.RecordPendingAttempt(ctx, entry.ID, err)
		if attemptErr != nil {
			logger.WithError(attemptErr).Warn("failed to record sync attempt")
		} else if updated.Attempts >= w.maxAttempts {
			logger.WithError(err).Error("pending sync entry parked after max attempts")
		} else {
			logger.WithError(err).Warn("pending sync replay failed")
		}

		// Связь пропала посреди прохода: остаток ждёт следующего раза, порядок сохраняется.
		if isTransient(err) {
			break
		}
	}

	report.Remaining = len(w.store.PendingSync())
	w.setPending(report.Remaining)
	if report.Replayed > 0 || report.Failed > 0 {
		w.logger.WithFields(log.Fields{
			"replayed":  report.Replayed,
			"failed":    report.Failed,
			"deferred":  report.Deferred,
			"remaining": report.Remaining,
		}).Info("pending sync flushed")
	}
	return report, nil
}

func (w *Worker) replay(ctx context.Context, entry domain.PendingSyncEntry) error {
	payload, err := entry.DecodeProductPayload()
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch entry.Action {
	case domain.SyncActionAddProduct:
		if payload.Product == nil {
			return errors.New("payload has no product")
		}
		err := w.remote.AddProduct(ctx, payload.CatalogID, *payload.Product)
		if isDuplicate(err) {
			return nil
		}
		return err
	case domain.SyncActionUpdateProduct:
		if payload.Product == nil {
			return errors.New("payload has no product")
		}
		return w.remote.UpdateProduct(ctx, payload.CatalogID, *payload.Product)
	case domain.SyncActionDeleteProduct:
		return w.remote.DeleteProduct(ctx, payload.CatalogID, payload.ProductID)
	default:
		return fmt.Errorf("unknown sync action %q", entry.Action)
	}
}

// productKey возвращает id товара, которого касается запись, или "" если
// payload не читается.
func productKey(entry domain.PendingSyncEntry) string {
	payload, err := entry.DecodeProductPayload()
	if err != nil {
		return ""
	}
	if payload.Product != nil {
		return payload.Product.ID
	}
	return payload.ProductID
}

func block(blocked map[string]struct{}, key string) {
	if key != "" {
		blocked[key] = struct{}{}
	}
}

func (w *Worker) replayable(entries []domain.PendingSyncEntry) int {
	n := 0
	for _, e := range entries {
		if e.Attempts < w.maxAttempts {
			n++
		}
	}
	return n
}

func (w *Worker) record(result string) {
	if w.metrics != nil {
		w.metrics.RecordSyncReplay(result)
	}
}

func (w *Worker) setPending(n int) {
	if w.metrics != nil {
		w.metrics.SetPendingSync(n)
	}
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrRemoteUnreachable) ||
		errors.Is(err, domain.ErrRemoteServer) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// isDuplicate: товар уже добавлен в удалённый каталог предыдущей попыткой.
func isDuplicate(err error) bool {
	var remote *domain.RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	msg := strings.ToLower(remote.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
