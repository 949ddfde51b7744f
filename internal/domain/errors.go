package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported — беспроводной стек недоступен на этой платформе.
	ErrNotSupported = errors.New("wireless printing is not supported")
	// ErrDeviceNotFound — пользователь отменил выбор или подходящее устройство не найдено.
	ErrDeviceNotFound = errors.New("printer device not found")
	// ErrNoWritableChannel — у устройства нет характеристики с правом записи.
	ErrNoWritableChannel = errors.New("no writable characteristic found")
	// ErrNotConnected — попытка отправки без активного соединения.
	ErrNotConnected = errors.New("printer not connected")
	// ErrWriteFailed — не удалось доставить данные ни целиком, ни по частям.
	ErrWriteFailed = errors.New("printer write failed")
	// ErrBusy — идёт подключение или печать, повторный запрос отклонён.
	ErrBusy = errors.New("printer busy")

	// ErrRemoteUnreachable — сетевой сбой при обращении к удалённому каталогу.
	ErrRemoteUnreachable = errors.New("remote catalog unreachable")
	// ErrRemoteNotFound — адрес скрипта не найден (HTTP 404).
	ErrRemoteNotFound = errors.New("remote catalog script not found")
	// ErrRemoteServer — ошибка на стороне удалённого сервера (HTTP 5xx).
	ErrRemoteServer = errors.New("remote catalog server error")
	// ErrCatalogIDRequired — операция требует идентификатор таблицы.
	ErrCatalogIDRequired = errors.New("remote catalog id is required")
	// ErrRemoteNotConfigured — удалённый каталог не настроен.
	ErrRemoteNotConfigured = errors.New("remote catalog is not configured")

	// ErrProductExists — товар с таким id уже есть в каталоге.
	ErrProductExists = errors.New("product already exists")
	// ErrProductNotFound — товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartLineNotFound — в корзине нет позиции с таким товаром.
	ErrCartLineNotFound = errors.New("cart line not found")
	// ErrEmptyCart — нельзя сохранить чек без позиций.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrQuantityInvalid — количество должно быть не меньше единицы.
	ErrQuantityInvalid = errors.New("quantity must be at least 1")
	// ErrReceiptNotFound — чек не найден в истории.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrShopNameRequired — название магазина обязательно.
	ErrShopNameRequired = errors.New("shop name is required")
	// ErrInvalidPassword — пароль администратора не совпал.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrPendingNotFound — запись очереди синхронизации не найдена.
	ErrPendingNotFound = errors.New("pending sync entry not found")

	// ErrKeyNotFound возвращается хранилищем ключ/значение для отсутствующего ключа.
	ErrKeyNotFound = errors.New("key not found")
	// ErrValidation — входные данные не прошли проверку.
	ErrValidation = errors.New("validation failed")
)

// RemoteError — удалённый каталог ответил success=false или неожиданным статусом.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote catalog: %s", e.Message)
}

// IsRemoteFailure сообщает, что ошибка пришла со стороны удалённого каталога.
func IsRemoteFailure(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) ||
		errors.Is(err, ErrRemoteUnreachable) ||
		errors.Is(err, ErrRemoteNotFound) ||
		errors.Is(err, ErrRemoteServer)
}

// IsNotFound проверяет ошибки вида «не найдено».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrReceiptNotFound) ||
		errors.Is(err, ErrCartLineNotFound) ||
		errors.Is(err, ErrPendingNotFound)
}
