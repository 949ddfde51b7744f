package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для меток.
const (
	ResultSuccess  = "success"
	ResultFallback = "fallback"
	ResultFailure  = "failure"
	ResultBusy     = "busy"
	ResultParked   = "parked"
)

// POSMetrics содержит метрики печати, чеков и синхронизации каталога.
type POSMetrics struct {
	// Печать
	printAttempts    *prometheus.CounterVec
	printDuration    prometheus.Histogram
	fallbackChunks   prometheus.Counter
	printerConnected prometheus.Gauge

	// Чеки
	receiptsSaved prometheus.Counter

	// Синхронизация с удалённым каталогом
	syncReplays   *prometheus.CounterVec
	pendingSync   prometheus.Gauge
	remoteCalls   *prometheus.CounterVec
	remoteLatency prometheus.Histogram
}

// NewPOSMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewPOSMetrics() *POSMetrics {
	return NewPOSMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPOSMetricsWithRegisterer регистрирует метрики в указанном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewPOSMetricsWithRegisterer(registerer prometheus.Registerer) *POSMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &POSMetrics{
		printAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_print_attempts_total",
			Help: "Total number of print requests by result",
		}, []string{"result"}),
		printDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_print_duration_seconds",
			Help:    "Duration of print requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		fallbackChunks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_print_fallback_chunks_total",
			Help: "Total number of chunks written by the chunked fallback",
		}),
		printerConnected: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_printer_connected",
			Help: "1 when a printer channel is connected",
		}),
		receiptsSaved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_receipts_saved_total",
			Help: "Total number of receipts saved",
		}),
		syncReplays: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_sync_replays_total",
			Help: "Total number of pending sync replays by result",
		}, []string{"result"}),
		pendingSync: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_pending_sync_entries",
			Help: "Number of queued catalog operations",
		}),
		remoteCalls: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_remote_catalog_requests_total",
			Help: "Total number of remote catalog requests by action and result",
		}, []string{"action", "result"}),
		remoteLatency: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_remote_catalog_request_duration_seconds",
			Help:    "Duration of remote catalog requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPrint фиксирует итог запроса печати и его длительность.
func (m *POSMetrics) RecordPrint(result string, duration time.Duration) {
	m.printAttempts.WithLabelValues(result).Inc()
	if result != ResultBusy {
		m.printDuration.Observe(duration.Seconds())
	}
}

// RecordFallbackChunks увеличивает счётчик записанных частей.
func (m *POSMetrics) RecordFallbackChunks(n int) {
	m.fallbackChunks.Add(float64(n))
}

// SetPrinterConnected отражает состояние подключения.
func (m *POSMetrics) SetPrinterConnected(connected bool) {
	if connected {
		m.printerConnected.Set(1)
		return
	}
	m.printerConnected.Set(0)
}

// RecordReceiptSaved увеличивает счётчик сохранённых чеков.
func (m *POSMetrics) RecordReceiptSaved() {
	m.receiptsSaved.Inc()
}

// RecordSyncReplay фиксирует результат воспроизведения отложенной операции.
func (m *POSMetrics) RecordSyncReplay(result string) {
	m.syncReplays.WithLabelValues(result).Inc()
}

// SetPendingSync выставляет длину очереди.
func (m *POSMetrics) SetPendingSync(n int) {
	m.pendingSync.Set(float64(n))
}

// RecordRemoteCall фиксирует обращение к удалённому каталогу.
func (m *POSMetrics) RecordRemoteCall(action, result string, duration time.Duration) {
	m.remoteCalls.WithLabelValues(action, result).Inc()
	m.remoteLatency.Observe(duration.Seconds())
}
