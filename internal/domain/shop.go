package domain

// ShopProfile — единственная запись с реквизитами магазина.
type ShopProfile struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Phone           string `json:"phone"`
	InvoiceNo       int    `json:"invoiceNo"`
	PasswordHash    string `json:"passwordHash"`
	RemoteCatalogID string `json:"remoteCatalogId,omitempty"`
}

// RemoteConfigured сообщает, привязан ли магазин к удалённому каталогу.
func (s ShopProfile) RemoteConfigured() bool {
	return s.RemoteCatalogID != ""
}

// ShopUpdate описывает изменение реквизитов. Пустой пароль оставляет прежний.
type ShopUpdate struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Phone           string `json:"phone"`
	RemoteCatalogID string `json:"remoteCatalogId"`
	NewPassword     string `json:"newPassword,omitempty"`
}
