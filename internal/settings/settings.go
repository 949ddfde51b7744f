// Package settings содержит статические параметры приложения: идентификаторы принтера,
// управляющие последовательности ESC/POS, ключи хранилища, реквизиты магазина по умолчанию
// и подписи чека. Значение собирается один раз при старте и передаётся компонентам явно.
package settings

import (
	"fmt"
	"time"
)

// DiscoveryMode задаёт, как транспорт ищет устройство и канал записи.
type DiscoveryMode string

const (
	// DiscoveryPermissive — любое устройство, первая характеристика с правом записи в любом сервисе.
	DiscoveryPermissive DiscoveryMode = "permissive"
	// DiscoveryStrict — только устройства с заданным сервисом; предпочитается заданная характеристика.
	DiscoveryStrict DiscoveryMode = "strict"
)

// Valid проверяет допустимость режима.
func (m DiscoveryMode) Valid() bool {
	return m == DiscoveryPermissive || m == DiscoveryStrict
}

// PrinterCommands — байтовые последовательности ESC/POS.
type PrinterCommands struct {
	Init        []byte
	AlignLeft   []byte
	AlignCenter []byte
	AlignRight  []byte
	BoldOn      []byte
	BoldOff     []byte
	CutPaper    []byte
	LineFeed    []byte
}

// StorageKeys — ключи, под которыми DataStore хранит свои разделы.
type StorageKeys struct {
	Products       string
	Cart           string
	ShopInfo       string
	ReceiptHistory string
	PendingSync    string
}

// All возвращает ключи в порядке загрузки.
func (k StorageKeys) All() []string {
	return []string{k.Products, k.Cart, k.ShopInfo, k.ReceiptHistory, k.PendingSync}
}

// ShopDefaults — реквизиты, которые получает магазин при первом запуске и после сброса.
type ShopDefaults struct {
	Name     string
	Address  string
	Phone    string
	Password string
}

// ReceiptLabels — подписи строк чека.
type ReceiptLabels struct {
	Invoice    string
	Date       string
	Time       string
	Item       string
	Qty        string
	Total      string
	Subtotal   string
	ServiceFee string
	GrandTotal string
	ThankYou   string
	Currency   string
}

// Printer — параметры обнаружения принтера и доставки данных.
type Printer struct {
	ServiceUUID        string
	CharacteristicUUID string
	Mode               DiscoveryMode
	DiscoveryTimeout   time.Duration
	ConnectTimeout     time.Duration
	ChunkSize          int
	ChunkDelay         time.Duration
	Probe              []byte
	// Encoding — метка кодировки для полезной нагрузки ("utf-8", "cp437", "windows-1251"...).
	Encoding string
}

// Settings — полный набор статических параметров.
type Settings struct {
	Version          string
	RemoteCatalogURL string
	Printer          Printer
	Commands         PrinterCommands
	Keys             StorageKeys
	Shop             ShopDefaults
	Labels           ReceiptLabels
}

// Default возвращает параметры по умолчанию.
func Default() Settings {
	return Settings{
		Version:          "2.0.0",
		RemoteCatalogURL: "",
		Printer: Printer{
			ServiceUUID:        "000018f0-0000-1000-8000-00805f9b34fb",
			CharacteristicUUID: "00002af0-0000-1000-8000-00805f9b34fb",
			Mode:               DiscoveryPermissive,
			DiscoveryTimeout:   30 * time.Second,
			ConnectTimeout:     30 * time.Second,
			ChunkSize:          10,
			ChunkDelay:         10 * time.Millisecond,
			Probe:              []byte("Test\n"),
			Encoding:           "utf-8",
		},
		Commands: PrinterCommands{
			Init:        []byte{0x1B, 0x40},
			AlignLeft:   []byte{0x1B, 0x61, 0x00},
			AlignCenter: []byte{0x1B, 0x61, 0x01},
			AlignRight:  []byte{0x1B, 0x61, 0x02},
			BoldOn:      []byte{0x1B, 0x45, 0x01},
			BoldOff:     []byte{0x1B, 0x45, 0x00},
			CutPaper:    []byte{0x1D, 0x56, 0x41, 0x10},
			LineFeed:    []byte{0x0A},
		},
		Keys: StorageKeys{
			Products:       "pos_products",
			Cart:           "pos_cart",
			ShopInfo:       "pos_shop_info",
			ReceiptHistory: "pos_receipt_history",
			PendingSync:    "pos_pending_sync",
		},
		Shop: ShopDefaults{
			Name:     "Aung Ko",
			Address:  "address: Tada",
			Phone:    "ph: 09790222504",
			Password: "200056",
		},
		Labels: ReceiptLabels{
			Invoice:    "ဘောင်ချာအမှတ်",
			Date:       "ရက်စွဲ",
			Time:       "အချိန်",
			Item:       "ကုန်ပစ္စည်း",
			Qty:        "Qty",
			Total:      "စုစုပေါင်း",
			Subtotal:   "စုစုပေါင်း",
			ServiceFee: "ဝန်ဆောင်ခ",
			GrandTotal: "ကျသင့်ငွေ",
			ThankYou:   "ကျေးဇူးတင်ပါသည်",
			Currency:   "ks",
		},
	}
}

// Validate проверяет согласованность параметров.
func (s Settings) Validate() error {
	if !s.Printer.Mode.Valid() {
		return fmt.Errorf("unknown discovery mode %q", s.Printer.Mode)
	}
	if s.Printer.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.Printer.ChunkSize)
	}
	if s.Printer.DiscoveryTimeout <= 0 || s.Printer.ConnectTimeout <= 0 {
		return fmt.Errorf("printer timeouts must be positive")
	}
	for _, key := range s.Keys.All() {
		if key == "" {
			return fmt.Errorf("storage keys must not be empty")
		}
	}
	return nil
}
