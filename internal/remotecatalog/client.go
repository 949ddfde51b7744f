// Package remotecatalog — клиент удалённого каталога товаров (скрипт поверх таблицы).
// Все вызовы — GET на один адрес с параметром action.
package remotecatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

// Действия удалённого скрипта.
const (
	ActionTestConnection = "testConnection"
	ActionGetProducts    = "getProducts"
	ActionAddProduct     = "addProduct"
	ActionUpdateProduct  = "updateProduct"
	ActionDeleteProduct  = "deleteProduct"
)

const maxResponseBytes = 4 << 20

// BreakerConfig — параметры автомата защиты.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// Config — параметры клиента.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// RatePerSecond и Burst ограничивают частоту запросов; 0 отключает ограничение.
	RatePerSecond float64
	Burst         int
	Breaker       BreakerConfig
}

// DefaultConfig возвращает параметры по умолчанию для адреса baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 15 * time.Second,
		RatePerSecond:  5,
		Burst:          5,
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.5,
			MinRequests:  5,
		},
	}
}

type response struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Products []domain.Product `json:"products"`
}

// Client реализует domain.CatalogClient.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	limiter *rate.Limiter
	logger  *log.Entry
	metrics *metrics.POSMetrics
	tracer  trace.Tracer
}

var _ domain.CatalogClient = (*Client)(nil)

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithMetrics включает метрики запросов.
func WithMetrics(m *metrics.POSMetrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// New создаёт клиента. Пустой BaseURL допустим: каждый вызов вернёт
// domain.ErrRemoteNotConfigured.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: log.WithField("component", "remote-catalog"),
		tracer: otel.Tracer("github.com/vladislavdragonenkov/pos/internal/remotecatalog"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	bc := cfg.Breaker
	c.breaker = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "remote-catalog",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		// Логические отказы (404, success=false) не размыкают цепь.
		IsSuccessful: func(err error) bool {
			return err == nil || !(errors.Is(err, domain.ErrRemoteUnreachable) || errors.Is(err, domain.ErrRemoteServer))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state change")
		},
	})
	return c
}

// State возвращает состояние автомата защиты.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// TestConnection проверяет доступность скрипта.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.call(ctx, ActionTestConnection, nil)
	return err
}

// GetProducts загружает каталог.
func (c *Client) GetProducts(ctx context.Context, catalogID string) ([]domain.Product, error) {
	resp, err := c.call(ctx, ActionGetProducts, map[string]any{"sheetId": catalogID})
	if err != nil {
		return nil, err
	}
	if resp.Products == nil {
		return []domain.Product{}, nil
	}
	return resp.Products, nil
}

// AddProduct добавляет товар в удалённый каталог.
func (c *Client) AddProduct(ctx context.Context, catalogID string, product domain.Product) error {
	_, err := c.call(ctx, ActionAddProduct, map[string]any{"sheetId": catalogID, "product": product})
	return err
}

// UpdateProduct обновляет товар.
func (c *Client) UpdateProduct(ctx context.Context, catalogID string, product domain.Product) error {
	_, err := c.call(ctx, ActionUpdateProduct, map[string]any{"sheetId": catalogID, "product": product})
	return err
}

// DeleteProduct удаляет товар.
func (c *Client) DeleteProduct(ctx context.Context, catalogID, productID string) error {
	_, err := c.call(ctx, ActionDeleteProduct, map[string]any{"sheetId": catalogID, "productId": productID})
	return err
}

func (c *Client) call(ctx context.Context, action string, params map[string]any) (resp response, err error) {
	if c.cfg.BaseURL == "" {
		return response{}, domain.ErrRemoteNotConfigured
	}
	if action != ActionGetProducts && action != ActionTestConnection {
		if id, _ := params["sheetId"].(string); id == "" {
			return response{}, domain.ErrCatalogIDRequired
		}
	}

	target, err := BuildURL(c.cfg.BaseURL, action, params)
	if err != nil {
		return response{}, err
	}

	ctx, span := c.tracer.Start(ctx, "remotecatalog."+action,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("remote.action", action)))
	defer span.End()

	started := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.metrics != nil {
			result := metrics.ResultSuccess
			if err != nil {
				result = metrics.ResultFailure
			}
			c.metrics.RecordRemoteCall(action, result, time.Since(started))
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, fmt.Errorf("%w: rate limit: %w", domain.ErrRemoteUnreachable, err)
		}
	}

	resp, err = c.breaker.Execute(func() (response, error) {
		return c.do(ctx, target)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return response{}, fmt.Errorf("%w: %w", domain.ErrRemoteUnreachable, err)
	}
	if err != nil {
		c.logger.WithError(err).WithField("action", action).Warn("remote catalog request failed")
		return response{}, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, target string) (response, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	httpResp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %w", domain.ErrRemoteUnreachable, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusNotFound:
		return response{}, domain.ErrRemoteNotFound
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return response{}, fmt.Errorf("%w: HTTP %d", domain.ErrRemoteServer, httpResp.StatusCode)
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return response{}, &domain.RemoteError{Message: fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, http.StatusText(httpResp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("%w: read body: %w", domain.ErrRemoteUnreachable, err)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return response{}, &domain.RemoteError{Message: "invalid response: " + err.Error()}
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "request failed"
		}
		return response{}, &domain.RemoteError{Message: msg}
	}
	return out, nil
}

// BuildURL добавляет к базовому адресу action и параметры. Строки и числа
// передаются как текст, объекты кодируются в JSON, nil и пустые строки пропускаются.
func BuildURL(base, action string, params map[string]any) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse remote catalog url: %w", err)
	}
	q := u.Query()
	q.Set("action", action)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, ok, err := encodeParam(params[k])
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", k, err)
		}
		if ok {
			q.Set(k, value)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func encodeParam(v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, x != "", nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case int:
		return strconv.Itoa(x), true, nil
	case int64:
		return strconv.FormatInt(x, 10), true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return "", false, err
		}
		return string(raw), true, nil
	}
}
