// Package receipt превращает чек в текст для термопринтера. Функции чистые:
// одинаковый вход даёт одинаковый выход, входной чек не меняется.
package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

const (
	// Width — ширина строки чека в символах.
	Width = 30

	nameColumn    = 18
	qtyColumn     = 5
	amountColumn  = 8
	labelColumn   = 23
	totalColumn   = 7
	maxNameRunes  = 16
	truncatedName = 13

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Format — вариант вёрстки.
type Format string

const (
	FormatPlain  Format = "plain"
	FormatESCPOS Format = "escpos"
)

// ParseFormat разбирает имя формата.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPlain, "":
		return FormatPlain, nil
	case FormatESCPOS, "esc/pos":
		return FormatESCPOS, nil
	default:
		return "", fmt.Errorf("unknown receipt format %q", s)
	}
}

// Formatter выбирает вёрстку и держит подписи и управляющие команды.
type Formatter struct {
	Format   Format
	Labels   settings.ReceiptLabels
	Commands settings.PrinterCommands
}

// NewFormatter собирает Formatter из статических параметров.
func NewFormatter(format Format, s settings.Settings) Formatter {
	return Formatter{Format: format, Labels: s.Labels, Commands: s.Commands}
}

// Receipt возвращает полезную нагрузку для печати.
func (f Formatter) Receipt(r domain.Receipt) string {
	if f.Format == FormatESCPOS {
		return ESCPOS(r, f.Commands, f.Labels)
	}
	return PlainText(r, f.Labels)
}

// PlainText — простая текстовая вёрстка шириной Width.
func PlainText(r domain.Receipt, labels settings.ReceiptLabels) string {
	var b strings.Builder

	b.WriteString("\n\n")
	b.WriteString(rule('='))
	b.WriteString(center(r.ShopName) + "\n")
	b.WriteString(rule('='))
	b.WriteString("\n")

	b.WriteString(center(r.Address) + "\n")
	b.WriteString(center(r.Phone) + "\n\n")

	writeMeta(&b, r, labels)
	b.WriteString("\n")

	writeItems(&b, r, labels)
	writeTotals(&b, r, labels)
	b.WriteString("\n")

	b.WriteString(rule('*'))
	b.WriteString(center(labels.ThankYou) + "\n")
	b.WriteString(rule('*'))
	b.WriteString(strings.Repeat("\n", 11))

	return b.String()
}

// ESCPOS — та же вёрстка с командами выравнивания, жирного шрифта и отрезки.
func ESCPOS(r domain.Receipt, cmd settings.PrinterCommands, labels settings.ReceiptLabels) string {
	var b strings.Builder
	lf := string(cmd.LineFeed)

	b.Write(cmd.Init)
	b.Write(cmd.AlignCenter)
	b.Write(cmd.BoldOn)
	b.WriteString(r.ShopName + lf)
	b.Write(cmd.BoldOff)
	b.WriteString(r.Address + lf)
	b.WriteString(r.Phone + lf + lf)

	b.Write(cmd.AlignLeft)
	writeMeta(&b, r, labels)
	b.WriteString(lf)
	writeItems(&b, r, labels)

	b.WriteString(totalLine(labels.Subtotal, r.Subtotal, labels.Currency))
	b.WriteString(totalLine(labels.ServiceFee, r.ServiceFee, labels.Currency))
	b.Write(cmd.BoldOn)
	b.WriteString(totalLine(labels.GrandTotal, r.GrandTotal, labels.Currency))
	b.Write(cmd.BoldOff)
	b.WriteString(lf)

	b.Write(cmd.AlignCenter)
	b.WriteString(labels.ThankYou + lf)
	b.WriteString(strings.Repeat(lf, 4))
	b.Write(cmd.CutPaper)

	return b.String()
}

// TestPage — короткая страница для проверки принтера.
func TestPage(now time.Time) string {
	return "\n\n" +
		"TEST PRINT SUCCESSFUL\n" +
		"=====================\n" +
		"POS System Test\n" +
		now.Format(dateLayout+" "+timeLayout+":05") + "\n" +
		"Working correctly!\n" +
		strings.Repeat("\n", 6)
}

func writeMeta(b *strings.Builder, r domain.Receipt, labels settings.ReceiptLabels) {
	fmt.Fprintf(b, "%s: %03d\n", labels.Invoice, r.InvoiceNo)
	fmt.Fprintf(b, "%s: %s\n", labels.Date, r.Date.Format(dateLayout))
	fmt.Fprintf(b, "%s: %s\n", labels.Time, r.Date.Format(timeLayout))
}

func writeItems(b *strings.Builder, r domain.Receipt, labels settings.ReceiptLabels) {
	b.WriteString(rule('-'))
	b.WriteString(padEnd(labels.Item, nameColumn) + padEnd(labels.Qty, qtyColumn) + labels.Total + "\n")
	b.WriteString(rule('-'))
	for _, item := range r.Items {
		b.WriteString(padEnd(itemName(item.Product.Name), nameColumn))
		b.WriteString(padEnd(strconv.Itoa(item.Quantity), qtyColumn))
		b.WriteString(padStart(item.LineTotal().String(), amountColumn))
		b.WriteString(" " + labels.Currency + "\n")
	}
	b.WriteString(rule('-'))
}

func writeTotals(b *strings.Builder, r domain.Receipt, labels settings.ReceiptLabels) {
	b.WriteString(totalLine(labels.Subtotal, r.Subtotal, labels.Currency))
	b.WriteString(totalLine(labels.ServiceFee, r.ServiceFee, labels.Currency))
	b.WriteString(totalLine(labels.GrandTotal, r.GrandTotal, labels.Currency))
}

func totalLine(label string, amount decimal.Decimal, currency string) string {
	return padEnd(label+":", labelColumn) + padStart(amount.String(), totalColumn) + " " + currency + "\n"
}

func itemName(name string) string {
	if utf8.RuneCountInString(name) <= maxNameRunes {
		return name
	}
	return string([]rune(name)[:truncatedName]) + "..."
}

func rule(ch rune) string {
	return strings.Repeat(string(ch), Width) + "\n"
}

func center(text string) string {
	n := utf8.RuneCountInString(text)
	if n >= Width {
		return text
	}
	left := (Width - n) / 2
	right := Width - n - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}

func padEnd(text string, width int) string {
	n := utf8.RuneCountInString(text)
	if n >= width {
		return text
	}
	return text + strings.Repeat(" ", width-n)
}

func padStart(text string, width int) string {
	n := utf8.RuneCountInString(text)
	if n >= width {
		return text
	}
	return strings.Repeat(" ", width-n) + text
}
