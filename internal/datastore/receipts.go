package datastore

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// PreviewReceipt собирает чек по текущей корзине, ничего не сохраняя.
func (s *Store) PreviewReceipt(serviceFee decimal.Decimal) (domain.Receipt, error) {
	if serviceFee.IsNegative() {
		return domain.Receipt{}, fmt.Errorf("%w: service fee must not be negative", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildReceipt(serviceFee), nil
}

// SaveReceipt фиксирует продажу: чек попадает в начало истории, номер счёта
// увеличивается, корзина очищается. Пустая корзина — ErrEmptyCart, состояние не меняется.
func (s *Store) SaveReceipt(ctx context.Context, serviceFee decimal.Decimal) (domain.Receipt, error) {
	if serviceFee.IsNegative() {
		return domain.Receipt{}, fmt.Errorf("%w: service fee must not be negative", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cart) == 0 {
		return domain.Receipt{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrEmptyCart)
	}

	receipt := s.buildReceipt(serviceFee)

	history := make([]domain.Receipt, 0, len(s.history)+1)
	history = append(history, receipt)
	history = append(history, s.history...)

	shop := s.shop
	shop.InvoiceNo++

	cart := []domain.CartLine{}

	if err := s.persist(ctx,
		write{s.keys.ReceiptHistory, history},
		write{s.keys.ShopInfo, shop},
		write{s.keys.Cart, cart},
	); err != nil {
		return domain.Receipt{}, err
	}

	s.history = history
	s.shop = shop
	s.cart = cart
	return receipt, nil
}

// Receipts возвращает историю, новые чеки первыми.
func (s *Store) Receipts() []domain.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Receipt(nil), s.history...)
}

// Receipt ищет чек по id.
func (s *Store) Receipt(id int64) (domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.history {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Receipt{}, fmt.Errorf("%w: %d", domain.ErrReceiptNotFound, id)
}

// buildReceipt вызывается под мьютексом.
func (s *Store) buildReceipt(serviceFee decimal.Decimal) domain.Receipt {
	now := s.now()
	id := now.UnixMilli()
	if len(s.history) > 0 && id <= s.history[0].ID {
		id = s.history[0].ID + 1
	}

	items := domain.CloneLines(s.cart)
	subtotal := domain.Subtotal(items)
	return domain.Receipt{
		ID:         id,
		ShopName:   s.shop.Name,
		Address:    s.shop.Address,
		Phone:      s.shop.Phone,
		InvoiceNo:  s.shop.InvoiceNo,
		Date:       now,
		Items:      items,
		Subtotal:   subtotal,
		ServiceFee: serviceFee,
		GrandTotal: subtotal.Add(serviceFee),
	}
}
