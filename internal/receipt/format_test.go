package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

var englishLabels = settings.ReceiptLabels{
	Invoice:    "Invoice",
	Date:       "Date",
	Time:       "Time",
	Item:       "Item",
	Qty:        "Qty",
	Total:      "Total",
	Subtotal:   "Subtotal",
	ServiceFee: "Service",
	GrandTotal: "Grand Total",
	ThankYou:   "Thank you!",
	Currency:   "ks",
}

func sampleReceipt() domain.Receipt {
	return domain.Receipt{
		ID:        1700000000000,
		ShopName:  "Aung Ko",
		Address:   "address: Tada",
		Phone:     "ph: 09790222504",
		InvoiceNo: 7,
		Date:      time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC),
		Items: []domain.CartLine{
			{Product: domain.Product{ID: "A1", Name: "Rice", Price: decimal.NewFromInt(500)}, Quantity: 3},
			{Product: domain.Product{ID: "B2", Name: "Premium Jasmine Rice 5kg", Price: decimal.NewFromInt(1200)}, Quantity: 1},
		},
		Subtotal:   decimal.NewFromInt(2700),
		ServiceFee: decimal.NewFromInt(100),
		GrandTotal: decimal.NewFromInt(2800),
	}
}

func TestPlainText_Layout(t *testing.T) {
	got := PlainText(sampleReceipt(), englishLabels)

	want := "\n\n" +
		"==============================\n" +
		"           Aung Ko            \n" +
		"==============================\n" +
		"\n" +
		"        address: Tada         \n" +
		"       ph: 09790222504        \n" +
		"\n" +
		"Invoice: 007\n" +
		"Date: 2026-03-14\n" +
		"Time: 09:05\n" +
		"\n" +
		"------------------------------\n" +
		"Item              Qty  Total\n" +
		"------------------------------\n" +
		"Rice              3        1500 ks\n" +
		"Premium Jasmi...  1        1200 ks\n" +
		"------------------------------\n" +
		"Subtotal:                 2700 ks\n" +
		"Service:                   100 ks\n" +
		"Grand Total:              2800 ks\n" +
		"\n" +
		"******************************\n" +
		"          Thank you!          \n" +
		"******************************\n" +
		strings.Repeat("\n", 11)

	assert.Equal(t, want, got)
}

func TestPlainText_DeterministicAndPure(t *testing.T) {
	r := sampleReceipt()
	before := r.Items[1].Product.Name

	first := PlainText(r, englishLabels)
	second := PlainText(r, englishLabels)

	assert.Equal(t, first, second)
	assert.Equal(t, before, r.Items[1].Product.Name)
	assert.Equal(t, 3, r.Items[0].Quantity)
}

func TestPlainText_CountsRunesForBurmese(t *testing.T) {
	r := sampleReceipt()
	r.Items = []domain.CartLine{
		{Product: domain.Product{Name: "ဆန်", Price: decimal.NewFromInt(100)}, Quantity: 1},
	}
	out := PlainText(r, settings.Default().Labels)

	line := ""
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "ဆန်") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Equal(t, "ဆန်"+strings.Repeat(" ", 15)+"1    "+"     100 ks", line)
}

func TestItemName(t *testing.T) {
	assert.Equal(t, "Sixteen chars ok", itemName("Sixteen chars ok"))
	assert.Equal(t, "Seventeen cha...", itemName("Seventeen chars!!"))
}

func TestESCPOS(t *testing.T) {
	cmd := settings.Default().Commands
	out := ESCPOS(sampleReceipt(), cmd, englishLabels)

	assert.True(t, strings.HasPrefix(out, "\x1B\x40\x1B\x61\x01\x1B\x45\x01Aung Ko\n\x1B\x45\x00"))
	assert.True(t, strings.HasSuffix(out, "\x1D\x56\x41\x10"))
	assert.Contains(t, out, "\x1B\x61\x00Invoice: 007\n")
	assert.Contains(t, out, "\x1B\x45\x01Grand Total:              2800 ks\n\x1B\x45\x00")
	assert.Equal(t, out, ESCPOS(sampleReceipt(), cmd, englishLabels))
}

func TestFormatterAndParse(t *testing.T) {
	f, err := ParseFormat("ESCPOS")
	require.NoError(t, err)
	assert.Equal(t, FormatESCPOS, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	s := settings.Default()
	s.Labels = englishLabels
	plain := NewFormatter(FormatPlain, s)
	assert.Equal(t, PlainText(sampleReceipt(), englishLabels), plain.Receipt(sampleReceipt()))

	esc := NewFormatter(FormatESCPOS, s)
	assert.Equal(t, ESCPOS(sampleReceipt(), s.Commands, englishLabels), esc.Receipt(sampleReceipt()))
}

func TestTestPage(t *testing.T) {
	page := TestPage(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Contains(t, page, "TEST PRINT SUCCESSFUL\n")
	assert.Contains(t, page, "2026-01-02 03:04:05\n")
}
