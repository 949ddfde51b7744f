package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Shop возвращает реквизиты магазина.
func (s *Store) Shop() domain.ShopProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shop
}

// UpdateShop меняет реквизиты. Название обязательно; пустые адрес и телефон
// заменяются значениями по умолчанию; пустой пароль оставляет прежний.
func (s *Store) UpdateShop(ctx context.Context, upd domain.ShopUpdate) (domain.ShopProfile, error) {
	name := strings.TrimSpace(upd.Name)
	if name == "" {
		return domain.ShopProfile{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrShopNameRequired)
	}

	var hash string
	if upd.NewPassword != "" {
		h, err := s.hashPassword(upd.NewPassword)
		if err != nil {
			return domain.ShopProfile{}, err
		}
		hash = h
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.shop
	next.Name = name
	next.Address = orDefault(strings.TrimSpace(upd.Address), s.defaults.Address)
	next.Phone = orDefault(strings.TrimSpace(upd.Phone), s.defaults.Phone)
	next.RemoteCatalogID = strings.TrimSpace(upd.RemoteCatalogID)
	if hash != "" {
		next.PasswordHash = hash
	}

	if err := s.persist(ctx, write{s.keys.ShopInfo, next}); err != nil {
		return domain.ShopProfile{}, err
	}
	s.shop = next
	return next, nil
}

// VerifyPassword сверяет пароль администратора.
func (s *Store) VerifyPassword(password string) error {
	s.mu.Lock()
	hash := s.shop.PasswordHash
	s.mu.Unlock()

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidPassword
	}
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}

// ClearLocalData стирает каталог, корзину, историю и очередь. Реквизиты сбрасываются
// к значениям по умолчанию (номер счёта и пароль тоже), но название, адрес, телефон
// и привязка к удалённому каталогу сохраняются.
func (s *Store) ClearLocalData(ctx context.Context) error {
	def, err := s.defaultShop()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	def.Name = s.shop.Name
	def.Address = s.shop.Address
	def.Phone = s.shop.Phone
	def.RemoteCatalogID = s.shop.RemoteCatalogID

	for _, key := range []string{s.keys.Products, s.keys.Cart, s.keys.ReceiptHistory, s.keys.PendingSync} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("datastore: clear %s: %w", key, err)
		}
	}
	if err := s.persist(ctx, write{s.keys.ShopInfo, def}); err != nil {
		return err
	}

	s.products = []domain.Product{}
	s.cart = []domain.CartLine{}
	s.history = []domain.Receipt{}
	s.pending = []domain.PendingSyncEntry{}
	s.shop = def
	s.logger.Warn("local data cleared")
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
