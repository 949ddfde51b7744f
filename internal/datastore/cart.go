package datastore

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Cart возвращает копию корзины.
func (s *Store) Cart() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneLines(s.cart)
}

// AddToCart кладёт в корзину снимок товара из каталога. Повторное добавление того же
// товара увеличивает количество существующей позиции.
func (s *Store) AddToCart(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, domain.ErrQuantityInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.productIndex(productID)
	if idx < 0 {
		return domain.CartLine{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	product := s.products[idx]

	next := domain.CloneLines(s.cart)
	pos := cartIndex(next, productID)
	if pos >= 0 {
		next[pos].Quantity += quantity
	} else {
		next = append(next, domain.CartLine{Product: product, Quantity: quantity})
		pos = len(next) - 1
	}

	if err := s.persist(ctx, write{s.keys.Cart, next}); err != nil {
		return domain.CartLine{}, err
	}
	s.cart = next
	return next[pos], nil
}

// UpdateCartItem задаёт количество позиции.
func (s *Store) UpdateCartItem(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, domain.ErrQuantityInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := cartIndex(s.cart, productID)
	if pos < 0 {
		return domain.CartLine{}, fmt.Errorf("%w: %s", domain.ErrCartLineNotFound, productID)
	}

	next := domain.CloneLines(s.cart)
	next[pos].Quantity = quantity
	if err := s.persist(ctx, write{s.keys.Cart, next}); err != nil {
		return domain.CartLine{}, err
	}
	s.cart = next
	return next[pos], nil
}

// RemoveFromCart удаляет позицию; отсутствие позиции не ошибка.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.CartLine, 0, len(s.cart))
	for _, line := range s.cart {
		if line.Product.ID != productID {
			next = append(next, line)
		}
	}
	if err := s.persist(ctx, write{s.keys.Cart, next}); err != nil {
		return err
	}
	s.cart = next
	return nil
}

// ClearCart очищает корзину.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := []domain.CartLine{}
	if err := s.persist(ctx, write{s.keys.Cart, next}); err != nil {
		return err
	}
	s.cart = next
	return nil
}

// Subtotal — сумма price * quantity по корзине.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Subtotal(s.cart)
}

// Total — подытог плюс сервисный сбор.
func (s *Store) Total(serviceFee decimal.Decimal) decimal.Decimal {
	return s.Subtotal().Add(serviceFee)
}

func cartIndex(lines []domain.CartLine, productID string) int {
	for i, line := range lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}
