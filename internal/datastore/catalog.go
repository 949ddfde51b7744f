package datastore

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/validator"
)

// Products возвращает копию каталога в порядке добавления.
func (s *Store) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.products...)
}

// Product ищет товар по точному id.
func (s *Store) Product(id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(id)
	if idx < 0 {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return s.products[idx], nil
}

// HasProduct сообщает, есть ли товар с таким id.
func (s *Store) HasProduct(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productIndex(id) >= 0
}

// SearchProducts ищет по подстроке в id или названии без учёта регистра.
func (s *Store) SearchProducts(term string) []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.Matches(term) {
			result = append(result, p)
		}
	}
	return result
}

// AddProduct добавляет товар. Дубликат id — ErrProductExists, каталог не меняется.
func (s *Store) AddProduct(ctx context.Context, product domain.Product) error {
	if err := validator.Validate(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.productIndex(product.ID) >= 0 {
		return fmt.Errorf("%w: %w: %s", domain.ErrValidation, domain.ErrProductExists, product.ID)
	}

	next := append(append([]domain.Product(nil), s.products...), product)
	if err := s.persist(ctx, write{s.keys.Products, next}); err != nil {
		return err
	}
	s.products = next
	return nil
}

// UpdateProduct заменяет товар с тем же id.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) error {
	if err := validator.Validate(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(product.ID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, product.ID)
	}

	next := append([]domain.Product(nil), s.products...)
	next[idx] = product
	if err := s.persist(ctx, write{s.keys.Products, next}); err != nil {
		return err
	}
	s.products = next
	return nil
}

// DeleteProduct удаляет товар из каталога. Позиции корзины остаются: это снимки.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	next := make([]domain.Product, 0, len(s.products)-1)
	next = append(next, s.products[:idx]...)
	next = append(next, s.products[idx+1:]...)
	if err := s.persist(ctx, write{s.keys.Products, next}); err != nil {
		return err
	}
	s.products = next
	return nil
}

// ReplaceProducts целиком заменяет каталог (синхронизация с удалённым каталогом).
// Правила мягче, чем при добавлении: нулевая наценка или цена допустимы.
// Товар без id или названия, отрицательное число или повтор id отклоняют всю замену.
func (s *Store) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if err := checkSynced(p); err != nil {
			return fmt.Errorf("product %q: %w", p.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %w: %s", domain.ErrValidation, domain.ErrProductExists, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	next := append([]domain.Product{}, products...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, write{s.keys.Products, next}); err != nil {
		return err
	}
	s.products = next
	return nil
}

func (s *Store) productIndex(id string) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func checkSynced(p domain.Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	case p.Name == "":
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	case p.Cost.IsNegative(), p.Profit.IsNegative(), p.Price.IsNegative():
		return fmt.Errorf("%w: negative amount", domain.ErrValidation)
	}
	return nil
}
