// Package catalog связывает локальный каталог с удалённым. Добавление идёт
// сначала в удалённый каталог; если он недоступен, товар сохраняется локально,
// а операция ставится в очередь отложенной синхронизации.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/validator"
)

// Store — часть хранилища, нужная каталогу.
type Store interface {
	Products() []domain.Product
	Product(id string) (domain.Product, error)
	HasProduct(id string) bool
	SearchProducts(term string) []domain.Product
	AddProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ReplaceProducts(ctx context.Context, products []domain.Product) error
	Shop() domain.ShopProfile
	EnqueuePendingSync(ctx context.Context, action domain.SyncAction, payload any) (domain.PendingSyncEntry, error)
}

// ProductInput — данные нового или изменённого товара. Если Price не задан,
// цена вычисляется из себестоимости и наценки.
type ProductInput struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Cost   decimal.Decimal  `json:"cost"`
	Profit decimal.Decimal  `json:"profit"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}

// Product собирает товар из входных данных.
func (in ProductInput) Product() domain.Product {
	p := domain.NewProduct(in.ID, in.Name, in.Cost, in.Profit)
	if in.Price != nil {
		p.Price = *in.Price
	}
	return p
}

// Result — итог изменения каталога.
type Result struct {
	Product domain.Product `json:"product"`
	// Synced — изменение применено в удалённом каталоге.
	Synced bool `json:"synced"`
	// Queued — удалённый каталог недоступен, операция поставлена в очередь.
	Queued bool `json:"queued"`
}

// Service — сценарии работы с каталогом.
type Service struct {
	store  Store
	remote domain.CatalogClient
	logger *log.Entry
}

// NewService создаёт сервис. remote может быть nil: тогда каталог только локальный.
func NewService(store Store, remote domain.CatalogClient, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{store: store, remote: remote, logger: logger}
}

// List возвращает каталог.
func (s *Service) List() []domain.Product {
	return s.store.Products()
}

// Search ищет по подстроке в id или названии.
func (s *Service) Search(term string) []domain.Product {
	return s.store.SearchProducts(term)
}

// Get возвращает товар по id.
func (s *Service) Get(id string) (domain.Product, error) {
	return s.store.Product(id)
}

// AddProduct добавляет товар.
func (s *Service) AddProduct(ctx context.Context, in ProductInput) (Result, error) {
	product := in.Product()
	if err := validator.Validate(product); err != nil {
		return Result{}, err
	}
	if s.store.HasProduct(product.ID) {
		return Result{}, fmt.Errorf("%w: %w: %s", domain.ErrValidation, domain.ErrProductExists, product.ID)
	}

	catalogID, remote := s.remoteTarget()
	if !remote {
		if err := s.store.AddProduct(ctx, product); err != nil {
			return Result{}, err
		}
		return Result{Product: product}, nil
	}

	logger := s.logger.WithField("product_id", product.ID)

	existing, err := s.remote.GetProducts(ctx, catalogID)
	if err != nil {
		logger.WithError(err).Warn("cannot check remote catalog for duplicates, proceeding")
	} else {
		for _, p := range existing {
			if p.ID == product.ID {
				return Result{}, fmt.Errorf("%w: %w in remote catalog: %s", domain.ErrValidation, domain.ErrProductExists, product.ID)
			}
		}
	}

	if err := s.remote.AddProduct(ctx, catalogID, product); err != nil {
		if isRemoteDuplicate(err) {
			return Result{}, fmt.Errorf("%w: %w in remote catalog: %s", domain.ErrValidation, domain.ErrProductExists, product.ID)
		}
		logger.WithError(err).Warn("remote add failed, saving locally")
		if err := s.store.AddProduct(ctx, product); err != nil {
			return Result{}, err
		}
		if err := s.enqueue(ctx, domain.SyncActionAddProduct, catalogID, &product, ""); err != nil {
			return Result{}, err
		}
		return Result{Product: product, Queued: true}, nil
	}

	if err := s.store.AddProduct(ctx, product); err != nil {
		return Result{}, err
	}
	logger.Info("product added")
	return Result{Product: product, Synced: true}, nil
}

// UpdateProduct меняет товар локально и затем в удалённом каталоге.
func (s *Service) UpdateProduct(ctx context.Context, in ProductInput) (Result, error) {
	product := in.Product()
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return Result{}, err
	}

	catalogID, remote := s.remoteTarget()
	if !remote {
		return Result{Product: product}, nil
	}
	if err := s.remote.UpdateProduct(ctx, catalogID, product); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Warn("remote update failed, queued")
		if err := s.enqueue(ctx, domain.SyncActionUpdateProduct, catalogID, &product, ""); err != nil {
			return Result{}, err
		}
		return Result{Product: product, Queued: true}, nil
	}
	return Result{Product: product, Synced: true}, nil
}

// DeleteProduct удаляет товар локально и затем в удалённом каталоге.
func (s *Service) DeleteProduct(ctx context.Context, id string) (Result, error) {
	product, err := s.store.Product(id)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return Result{}, err
	}

	catalogID, remote := s.remoteTarget()
	if !remote {
		return Result{Product: product}, nil
	}
	if err := s.remote.DeleteProduct(ctx, catalogID, id); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("remote delete failed, queued")
		if err := s.enqueue(ctx, domain.SyncActionDeleteProduct, catalogID, nil, id); err != nil {
			return Result{}, err
		}
		return Result{Product: product, Queued: true}, nil
	}
	return Result{Product: product, Synced: true}, nil
}

// Sync загружает удалённый каталог и заменяет им локальный. Пустой удалённый
// каталог локальный не трогает. Возвращает число загруженных товаров.
func (s *Service) Sync(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, domain.ErrRemoteNotConfigured
	}
	catalogID := s.store.Shop().RemoteCatalogID
	if catalogID == "" {
		return 0, domain.ErrCatalogIDRequired
	}

	products, err := s.remote.GetProducts(ctx, catalogID)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		s.logger.Warn("remote catalog is empty, local catalog kept")
		return 0, nil
	}
	if err := s.store.ReplaceProducts(ctx, products); err != nil {
		return 0, err
	}
	s.logger.WithField("count", len(products)).Info("catalog synced from remote")
	return len(products), nil
}

func (s *Service) remoteTarget() (string, bool) {
	if s.remote == nil {
		return "", false
	}
	shop := s.store.Shop()
	return shop.RemoteCatalogID, shop.RemoteConfigured()
}

func (s *Service) enqueue(ctx context.Context, action domain.SyncAction, catalogID string, product *domain.Product, productID string) error {
	payload := domain.ProductSyncPayload{CatalogID: catalogID, Product: product, ProductID: productID}
	entry, err := s.store.EnqueuePendingSync(ctx, action, payload)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", action, err)
	}
	s.logger.WithFields(log.Fields{"pending_id": entry.ID, "action": action}).Info("operation queued for sync")
	return nil
}

// isRemoteDuplicate распознаёт отказ удалённого каталога из-за существующего id.
func isRemoteDuplicate(err error) bool {
	var remote *domain.RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	msg := strings.ToLower(remote.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
