// Package datastore владеет состоянием кассы: каталогом, корзиной, реквизитами магазина,
// историей чеков и очередью отложенной синхронизации.
//
// Каждая мутация синхронно пишет затронутые ключи в KeyValueStore; состояние в памяти
// заменяется только после успешной записи. Доступ сериализуется мьютексом.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

// Store — DataStore кассы.
type Store struct {
	mu sync.Mutex

	kv         domain.KeyValueStore
	keys       settings.StorageKeys
	defaults   settings.ShopDefaults
	logger     *log.Entry
	now        func() time.Time
	newID      func() string
	bcryptCost int

	products []domain.Product
	cart     []domain.CartLine
	shop     domain.ShopProfile
	history  []domain.Receipt
	pending  []domain.PendingSyncEntry
}

// Option настраивает Store.
type Option func(*Store)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов записей очереди.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithBcryptCost задаёт стоимость хеширования паролей.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// Open загружает все разделы из хранилища. Отсутствующий или повреждённый раздел
// заменяется значением по умолчанию; недоступное хранилище — ошибка.
func Open(ctx context.Context, kv domain.KeyValueStore, cfg settings.Settings, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("datastore: key/value store is required")
	}
	s := &Store{
		kv:         kv,
		keys:       cfg.Keys,
		defaults:   cfg.Shop,
		logger:     log.WithField("component", "datastore"),
		now:        time.Now,
		newID:      uuid.NewString,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	if err := loadKey(ctx, s, s.keys.Products, &s.products); err != nil {
		return err
	}
	if err := loadKey(ctx, s, s.keys.Cart, &s.cart); err != nil {
		return err
	}
	if err := loadKey(ctx, s, s.keys.ReceiptHistory, &s.history); err != nil {
		return err
	}
	if err := loadKey(ctx, s, s.keys.PendingSync, &s.pending); err != nil {
		return err
	}

	var shop *domain.ShopProfile
	if err := loadKey(ctx, s, s.keys.ShopInfo, &shop); err != nil {
		return err
	}
	if shop == nil {
		def, err := s.defaultShop()
		if err != nil {
			return err
		}
		shop = &def
	}
	if shop.InvoiceNo < 1 {
		shop.InvoiceNo = 1
	}
	if shop.PasswordHash == "" {
		hash, err := s.hashPassword(s.defaults.Password)
		if err != nil {
			return err
		}
		shop.PasswordHash = hash
	}
	s.shop = *shop

	if s.products == nil {
		s.products = []domain.Product{}
	}
	if s.cart == nil {
		s.cart = []domain.CartLine{}
	}
	if s.history == nil {
		s.history = []domain.Receipt{}
	}
	if s.pending == nil {
		s.pending = []domain.PendingSyncEntry{}
	}

	s.logger.WithFields(log.Fields{
		"products": len(s.products),
		"cart":     len(s.cart),
		"receipts": len(s.history),
		"pending":  len(s.pending),
	}).Info("datastore loaded")
	return nil
}

// loadKey читает ключ в dst. Отсутствие ключа и битый JSON оставляют dst нетронутым.
func loadKey[T any](ctx context.Context, s *Store, key string, dst *T) error {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("datastore: load %s: %w", key, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("corrupted key, using default")
		return nil
	}
	*dst = value
	return nil
}

func (s *Store) defaultShop() (domain.ShopProfile, error) {
	hash, err := s.hashPassword(s.defaults.Password)
	if err != nil {
		return domain.ShopProfile{}, err
	}
	return domain.ShopProfile{
		Name:         s.defaults.Name,
		Address:      s.defaults.Address,
		Phone:        s.defaults.Phone,
		InvoiceNo:    1,
		PasswordHash: hash,
	}, nil
}

func (s *Store) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("datastore: hash password: %w", err)
	}
	return string(hash), nil
}

// write — одна запись ключа в рамках мутации.
type write struct {
	key   string
	value any
}

// persist пишет ключи по порядку. При сбое уже записанные ключи откатываются
// к прежним значениям (best effort), чтобы хранилище не разошлось с памятью.
func (s *Store) persist(ctx context.Context, writes ...write) error {
	type written struct {
		key      string
		previous []byte
		existed  bool
	}
	done := make([]written, 0, len(writes))

	for _, w := range writes {
		data, err := json.Marshal(w.value)
		if err != nil {
			return fmt.Errorf("datastore: marshal %s: %w", w.key, err)
		}

		var (
			previous []byte
			existed  bool
		)
		if len(writes) > 1 {
			prev, getErr := s.kv.Get(ctx, w.key)
			existed = getErr == nil
			previous = prev
		}

		if err := s.kv.Set(ctx, w.key, data); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				var rbErr error
				if done[i].existed {
					rbErr = s.kv.Set(ctx, done[i].key, done[i].previous)
				} else {
					rbErr = s.kv.Delete(ctx, done[i].key)
				}
				if rbErr != nil {
					s.logger.WithError(rbErr).WithField("key", done[i].key).Error("rollback failed")
				}
			}
			return fmt.Errorf("datastore: persist %s: %w", w.key, err)
		}
		done = append(done, written{key: w.key, previous: previous, existed: existed})
	}
	return nil
}

// Ping проверяет доступность нижележащего хранилища.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}
