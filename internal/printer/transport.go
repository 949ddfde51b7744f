package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

// Delivery описывает, как были доставлены данные.
type Delivery struct {
	Bytes    int
	Fallback bool
	Chunks   int
}

// Transport держит не более одного соединения с принтером и пишет в него данные.
// Безопасен для конкурентного использования.
type Transport struct {
	adapter Adapter
	cfg     settings.Printer
	encode  Encoder
	logger  *log.Entry
	metrics *metrics.POSMetrics
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	state       State
	device      Device
	link        Link
	service     string
	channel     Characteristic
	unsubscribe func()
	lastErr     string
	observers   []StatusObserver

	// connecting держится до возврата попытки подключения, даже отменённой.
	connecting bool
	// gen увеличивается при каждом Connect и Disconnect; попытка со старым
	// поколением не применяет результат.
	gen           uint64
	cancelConnect context.CancelFunc

	// writeMu упорядочивает отправки целиком, вместе с фолбэком по частям.
	writeMu sync.Mutex
}

// Option настраивает Transport.
type Option func(*Transport)

// WithLogger задаёт logger транспорта.
func WithLogger(logger *log.Entry) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics включает метрики подключения и фолбэка.
func WithMetrics(m *metrics.POSMetrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithObserver подписывает наблюдателя на изменения состояния.
func WithObserver(o StatusObserver) Option {
	return func(t *Transport) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

// WithTracer задаёт трассировщик.
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Transport) {
		if tracer != nil {
			t.tracer = tracer
		}
	}
}

// NewTransport создаёт транспорт в состоянии Disconnected.
func NewTransport(adapter Adapter, cfg settings.Printer, opts ...Option) (*Transport, error) {
	if adapter == nil {
		return nil, errors.New("printer adapter is required")
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("invalid discovery mode %q", cfg.Mode)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	encode, err := NewEncoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		adapter: adapter,
		cfg:     cfg,
		encode:  encode,
		logger:  log.WithField("component", "printer"),
		tracer:  otel.Tracer("github.com/vladislavdragonenkov/pos/internal/printer"),
		sleep:   sleepContext,
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Subscribe добавляет наблюдателя после создания транспорта.
func (t *Transport) Subscribe(o StatusObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Status возвращает текущий снимок состояния.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Connected сообщает, есть ли канал записи.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateConnected && t.channel != nil
}

// Connect находит устройство, открывает соединение и выбирает канал записи.
// Повторный вызов во время подключения возвращает domain.ErrBusy, при
// установленном соединении ничего не делает. Disconnect во время подключения
// отменяет попытку.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connecting {
		t.mu.Unlock()
		return domain.ErrBusy
	}
	if t.state == StateConnected {
		t.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.gen++
	gen := t.gen
	t.connecting = true
	t.cancelConnect = cancel
	t.state = StateDiscovering
	t.lastErr = ""
	t.notifyLocked()

	ctx, span := t.tracer.Start(ctx, "printer.Connect",
		trace.WithAttributes(attribute.String("printer.discovery_mode", string(t.cfg.Mode))))
	defer span.End()

	device, link, channel, serviceUUID, err := t.establish(ctx, gen)

	t.mu.Lock()
	t.connecting = false
	t.cancelConnect = nil
	if t.gen != gen {
		t.mu.Unlock()
		if link != nil {
			if derr := link.Disconnect(); derr != nil {
				t.logger.WithError(derr).Warn("failed to close superseded link")
			}
		}
		err = fmt.Errorf("printer connect canceled: %w", context.Canceled)
		span.RecordError(err)
		return err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.resetLocked()
		t.lastErr = err.Error()
		t.notifyLocked()
		t.logger.WithError(err).Warn("printer connection failed")
		return err
	}

	t.device = device
	t.link = link
	t.channel = channel
	t.service = serviceUUID
	t.state = StateConnected
	t.notifyLocked()

	// Подписка вне мьютекса: адаптер может сообщить о разрыве прямо из Subscribe.
	unsubscribe := link.Subscribe(DisconnectFunc(func() { t.linkLost(link) }))
	t.mu.Lock()
	if t.link != link {
		t.mu.Unlock()
		unsubscribe()
		return fmt.Errorf("%w: link lost while connecting", domain.ErrNotConnected)
	}
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	t.logger.WithFields(log.Fields{
		"device":         device.Name(),
		"service":        serviceUUID,
		"characteristic": channel.UUID(),
	}).Info("printer connected")
	return nil
}

func (t *Transport) establish(ctx context.Context, gen uint64) (Device, Link, Characteristic, string, error) {
	if err := t.adapter.Available(); err != nil {
		return nil, nil, nil, "", err
	}

	discoverCtx, cancel := context.WithTimeout(ctx, t.cfg.DiscoveryTimeout)
	device, err := t.adapter.RequestDevice(discoverCtx, t.deviceRequest())
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, nil, "", fmt.Errorf("%w: discovery timed out", domain.ErrDeviceNotFound)
		}
		return nil, nil, nil, "", err
	}

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return nil, nil, nil, "", context.Canceled
	}
	t.state = StateNegotiating
	t.device = device
	t.notifyLocked()

	connectCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	link, err := device.Connect(connectCtx)
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("connect %s: %w", device.Name(), err)
	}

	channel, serviceUUID, err := t.findChannel(connectCtx, link)
	if err != nil {
		if derr := link.Disconnect(); derr != nil {
			t.logger.WithError(derr).Warn("failed to close link after negotiation error")
		}
		return nil, nil, nil, "", err
	}
	return device, link, channel, serviceUUID, nil
}

func (t *Transport) deviceRequest() DeviceRequest {
	if t.cfg.Mode == settings.DiscoveryStrict {
		return DeviceRequest{Services: []string{t.cfg.ServiceUUID}}
	}
	return DeviceRequest{AcceptAll: true}
}

// findChannel выбирает характеристику для записи согласно режиму обнаружения.
func (t *Transport) findChannel(ctx context.Context, link Link) (Characteristic, string, error) {
	services, err := link.Services(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list services: %w", err)
	}

	for _, svc := range services {
		strict := t.cfg.Mode == settings.DiscoveryStrict
		if strict && !SameUUID(svc.UUID(), t.cfg.ServiceUUID) {
			continue
		}

		chars, err := svc.Characteristics(ctx)
		if err != nil {
			if strict {
				return nil, "", fmt.Errorf("list characteristics of %s: %w", svc.UUID(), err)
			}
			t.logger.WithError(err).WithField("service", svc.UUID()).Debug("skip service")
			continue
		}

		if strict {
			for _, c := range chars {
				if SameUUID(c.UUID(), t.cfg.CharacteristicUUID) && c.Properties().Writable() {
					return c, svc.UUID(), nil
				}
			}
		}
		for _, c := range chars {
			if c.Properties().Writable() {
				return c, svc.UUID(), nil
			}
		}
	}
	return nil, "", domain.ErrNoWritableChannel
}

// Disconnect закрывает соединение и отменяет незавершённое подключение.
// Без соединения ничего не делает.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	t.gen++
	if t.cancelConnect != nil {
		t.cancelConnect()
		t.cancelConnect = nil
	}
	link := t.link
	unsubscribe := t.unsubscribe
	t.resetLocked()
	t.notifyLocked()

	if unsubscribe != nil {
		unsubscribe()
	}
	if link != nil && link.Connected() {
		if err := link.Disconnect(); err != nil {
			t.logger.WithError(err).Warn("disconnect failed")
			return fmt.Errorf("disconnect: %w", err)
		}
	}
	if link != nil {
		t.logger.Info("printer disconnected")
	}
	return nil
}

// linkLost обрабатывает разрыв, пришедший от стека связи.
func (t *Transport) linkLost(link Link) {
	t.mu.Lock()
	if t.link != link {
		t.mu.Unlock()
		return
	}
	unsubscribe := t.unsubscribe
	t.resetLocked()
	t.lastErr = "link lost"
	t.notifyLocked()

	if unsubscribe != nil {
		unsubscribe()
	}
	t.logger.Warn("printer link lost")
}

// SendData кодирует текст и пишет его в канал одной записью. При ошибке
// отправляется проба; если проба прошла, данные уходят частями по ChunkSize
// байт с паузой ChunkDelay после каждой части.
func (t *Transport) SendData(ctx context.Context, text string) (Delivery, error) {
	payload, err := t.encode(text)
	if err != nil {
		return Delivery{}, err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	// Канал берётся под writeMu: переподключение между проверкой и записью
	// не должно отправить данные в старый канал.
	t.mu.Lock()
	channel := t.channel
	connected := t.state == StateConnected && channel != nil
	t.mu.Unlock()
	if !connected {
		return Delivery{}, domain.ErrNotConnected
	}

	ctx, span := t.tracer.Start(ctx, "printer.SendData",
		trace.WithAttributes(attribute.Int("printer.bytes", len(payload))))
	defer span.End()

	delivery := Delivery{Bytes: len(payload)}
	bulkErr := write(ctx, channel, payload)
	if bulkErr == nil {
		return delivery, nil
	}

	logger := t.logger.WithError(bulkErr).WithField("bytes", len(payload))
	logger.Warn("bulk write failed, sending probe")

	if err := write(ctx, channel, t.cfg.Probe); err != nil {
		logger.WithField("probe_error", err.Error()).Error("probe write failed")
		err = fmt.Errorf("%w: %w", domain.ErrWriteFailed, bulkErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		return delivery, err
	}

	delivery.Fallback = true
	for start := 0; start < len(payload); start += t.cfg.ChunkSize {
		end := min(start+t.cfg.ChunkSize, len(payload))
		if err := write(ctx, channel, payload[start:end]); err != nil {
			err = fmt.Errorf("%w: chunk %d: %w", domain.ErrWriteFailed, delivery.Chunks, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "chunk write failed")
			t.recordChunks(delivery.Chunks)
			return delivery, err
		}
		delivery.Chunks++
		if err := t.sleep(ctx, t.cfg.ChunkDelay); err != nil {
			t.recordChunks(delivery.Chunks)
			return delivery, fmt.Errorf("%w: %w", domain.ErrWriteFailed, err)
		}
	}
	t.recordChunks(delivery.Chunks)
	span.SetAttributes(attribute.Int("printer.chunks", delivery.Chunks))
	logger.WithField("chunks", delivery.Chunks).Info("data delivered in chunks")
	return delivery, nil
}

func (t *Transport) recordChunks(n int) {
	if t.metrics != nil && n > 0 {
		t.metrics.RecordFallbackChunks(n)
	}
}

// write предпочитает запись с подтверждением.
func write(ctx context.Context, c Characteristic, data []byte) error {
	props := c.Properties()
	switch {
	case props.Write:
		return c.WriteWithResponse(ctx, data)
	case props.WriteWithoutResponse:
		return c.WriteWithoutResponse(ctx, data)
	default:
		return fmt.Errorf("characteristic %s is not writable", c.UUID())
	}
}

func (t *Transport) resetLocked() {
	t.state = StateDisconnected
	t.device = nil
	t.link = nil
	t.channel = nil
	t.service = ""
	t.unsubscribe = nil
}

func (t *Transport) statusLocked() Status {
	s := Status{
		State:     t.state,
		StateName: t.state.String(),
		Connected: t.state == StateConnected,
		Service:   t.service,
		LastError: t.lastErr,
	}
	if t.device != nil {
		s.DeviceID = t.device.ID()
		s.DeviceName = t.device.Name()
	}
	if t.channel != nil {
		s.Characteristic = t.channel.UUID()
	}
	return s
}

// notifyLocked снимает состояние под мьютексом, отпускает его и оповещает
// наблюдателей. Вызывающий не должен повторно отпускать мьютекс.
func (t *Transport) notifyLocked() {
	status := t.statusLocked()
	observers := append([]StatusObserver(nil), t.observers...)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetPrinterConnected(status.Connected)
	}
	for _, o := range observers {
		o.OnStatus(status)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
