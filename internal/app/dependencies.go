package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/datastore"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/printer"
	"github.com/vladislavdragonenkov/pos/internal/receipt"
	"github.com/vladislavdragonenkov/pos/internal/remotecatalog"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/service/printing"
	"github.com/vladislavdragonenkov/pos/internal/service/syncer"
	"github.com/vladislavdragonenkov/pos/internal/settings"
	"github.com/vladislavdragonenkov/pos/internal/tracing"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Settings  settings.Settings
	Store     *datastore.Store
	Transport *printer.Transport
	// Remote и Syncer nil, если удалённый каталог не настроен.
	Remote   *remotecatalog.Client
	Syncer   *syncer.Worker
	Catalog  *catalog.Service
	Checkout *checkout.Service
	Printing *printing.Service
	Health   *health.Handler
	JWT      *httpapi.JWTManager

	Registry *prometheus.Registry
	Metrics  *metrics.POSMetrics
	Logger   *log.Entry

	producer *kafka.Producer
	closeKV  func() error
}

// NewDependencies создаёт и связывает все зависимости приложения.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	s, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	format, err := receipt.ParseFormat(cfg.ReceiptFormat)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	posMetrics := metrics.NewPOSMetricsWithRegisterer(registry)

	kv, closeKV, err := openKeyValueStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	d := &Dependencies{
		Settings: s,
		Registry: registry,
		Metrics:  posMetrics,
		Logger:   logger,
		closeKV:  closeKV,
	}

	d.Store, err = datastore.Open(ctx, kv, s, datastore.WithLogger(logger.WithField("component", "datastore")))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load local data: %w", err)
	}

	adapter, err := newPrinterAdapter(cfg, s.Printer, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Transport, err = printer.NewTransport(adapter, s.Printer,
		printer.WithLogger(logger.WithField("component", "printer")),
		printer.WithMetrics(posMetrics),
		printer.WithTracer(tracing.Tracer("pos/printer")),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("init printer transport: %w", err)
	}

	var remote domain.CatalogClient
	if cfg.RemoteCatalogURL != "" {
		rc := remotecatalog.DefaultConfig(cfg.RemoteCatalogURL)
		if cfg.RemoteTimeout > 0 {
			rc.RequestTimeout = cfg.RemoteTimeout
		}
		d.Remote = remotecatalog.New(rc,
			remotecatalog.WithLogger(logger.WithField("component", "remote-catalog")),
			remotecatalog.WithMetrics(posMetrics),
		)
		remote = d.Remote
	}

	// Kafka необязательна: ошибка уже залогирована, продажи и печать работают без событий.
	publisher, producer, _ := initKafkaPublisher(cfg, logger)
	d.producer = producer

	d.Catalog = catalog.NewService(d.Store, remote, logger.WithField("component", "catalog"))
	checkoutOpts := []checkout.Option{checkout.WithMetrics(posMetrics), checkout.WithLogger(logger.WithField("component", "checkout"))}
	printingOpts := []printing.Option{printing.WithMetrics(posMetrics), printing.WithLogger(logger.WithField("component", "printing"))}
	if publisher != nil {
		checkoutOpts = append(checkoutOpts, checkout.WithPublisher(publisher))
		printingOpts = append(printingOpts, printing.WithPublisher(publisher))
	}
	d.Checkout = checkout.NewService(d.Store, checkoutOpts...)
	d.Printing = printing.NewService(d.Transport, receipt.NewFormatter(format, s), printingOpts...)

	if remote != nil {
		d.Syncer = syncer.NewWorker(d.Store, remote,
			syncer.WithLogger(logger.WithField("component", "syncer")),
			syncer.WithMetrics(posMetrics),
			syncer.WithPollInterval(cfg.SyncPollInterval),
			syncer.WithMaxAttempts(cfg.SyncMaxAttempts),
		)
	}

	d.Health = d.newHealthHandler()

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			d.Close()
			return nil, err
		}
		logger.Warn("POS_JWT_SECRET is empty, admin tokens are valid until restart")
	}
	d.JWT = httpapi.NewJWTManager(secret, cfg.JWTTTL)

	return d, nil
}

func (d *Dependencies) newHealthHandler() *health.Handler {
	h := health.NewHandler(version.Get().Version)
	h.RegisterChecker("storage", health.NewCriticalChecker("storage", d.Store.Ping))
	h.RegisterChecker("printer", health.NewOptionalChecker("printer", func(context.Context) error {
		if !d.Transport.Connected() {
			return domain.ErrNotConnected
		}
		return nil
	}))
	if d.Remote != nil {
		h.RegisterChecker("remote_catalog", health.NewOptionalChecker("remote_catalog", d.Remote.TestConnection))
	}
	return h
}

// Router собирает HTTP API поверх зависимостей.
func (d *Dependencies) Router() http.Handler {
	deps := httpapi.Deps{
		Catalog:  d.Catalog,
		Checkout: d.Checkout,
		Printing: d.Printing,
		Admin:    d.Store,
		JWT:      d.JWT,
		Labels:   d.Settings.Labels,
		Health:   d.Health,
		Metrics:  promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}),
		Logger:   d.Logger.WithField("component", "http-api"),
		Now:      time.Now,
	}
	if d.Syncer != nil {
		deps.Syncer = d.Syncer
	}
	return httpapi.NewRouter(deps)
}

// Close отключает принтер и освобождает хранилище и Kafka.
func (d *Dependencies) Close() {
	if d.Transport != nil && d.Transport.Connected() {
		if err := d.Transport.Disconnect(); err != nil {
			d.Logger.WithError(err).Warn("failed to disconnect printer")
		}
	}
	closeKafka(d.producer, d.Logger)
	d.producer = nil
	if d.closeKV != nil {
		if err := d.closeKV(); err != nil {
			d.Logger.WithError(err).Warn("failed to close storage")
		}
		d.closeKV = nil
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
