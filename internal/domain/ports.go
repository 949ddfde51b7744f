package domain

import "context"

// KeyValueStore — локальное хранилище строковых ключей с JSON-значениями.
type KeyValueStore interface {
	// Get возвращает ErrKeyNotFound, если ключа нет.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Ping проверяет доступность хранилища (используется health-чекером).
	Ping(ctx context.Context) error
}

// CatalogClient описывает удалённый каталог товаров.
type CatalogClient interface {
	TestConnection(ctx context.Context) error
	GetProducts(ctx context.Context, catalogID string) ([]Product, error)
	AddProduct(ctx context.Context, catalogID string, product Product) error
	UpdateProduct(ctx context.Context, catalogID string, product Product) error
	DeleteProduct(ctx context.Context, catalogID, productID string) error
}

// EventPublisher публикует события по чекам; реализация должна быть безопасной для конкурентного вызова.
type EventPublisher interface {
	Publish(ctx context.Context, event ReceiptEvent) error
}
