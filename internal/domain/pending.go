package domain

import (
	"encoding/json"
	"time"
)

// SyncAction — операция удалённого каталога, отложенная до восстановления связи.
type SyncAction string

const (
	SyncActionAddProduct    SyncAction = "addProduct"
	SyncActionUpdateProduct SyncAction = "updateProduct"
	SyncActionDeleteProduct SyncAction = "deleteProduct"
)

// PendingSyncEntry — запись очереди отложенной синхронизации.
type PendingSyncEntry struct {
	ID        string          `json:"id"`
	Action    SyncAction      `json:"action"`
	Payload   json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
}

// ProductSyncPayload — полезная нагрузка для действий над товарами.
type ProductSyncPayload struct {
	CatalogID string   `json:"sheetId"`
	Product   *Product `json:"product,omitempty"`
	ProductID string   `json:"productId,omitempty"`
}

// DecodeProductPayload разбирает полезную нагрузку записи.
func (e PendingSyncEntry) DecodeProductPayload() (ProductSyncPayload, error) {
	var payload ProductSyncPayload
	err := json.Unmarshal(e.Payload, &payload)
	return payload, err
}
