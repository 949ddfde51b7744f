// Package export выгружает каталог и чеки в файлы: TXT, JSON и XLSX.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/settings"
)

// Format — формат выгрузки.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	productsSheet = "Products"
	receiptSheet  = "Receipt"
)

// ErrNothingToExport — выгружать нечего.
var ErrNothingToExport = fmt.Errorf("%w: nothing to export", domain.ErrValidation)

var spaces = regexp.MustCompile(`\s+`)

// ParseFormat разбирает имя формата; "excel" — синоним xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt", "text":
		return FormatTXT, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", domain.ErrValidation, s)
	}
}

// ContentType возвращает MIME-тип формата.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Products кодирует каталог в выбранном формате.
func Products(format Format, products []domain.Product) ([]byte, error) {
	if len(products) == 0 {
		return nil, ErrNothingToExport
	}
	switch format {
	case FormatTXT:
		return ProductsTXT(products), nil
	case FormatJSON:
		return json.MarshalIndent(products, "", "  ")
	case FormatXLSX:
		var buf bytes.Buffer
		if err := ProductsXLSX(&buf, products); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", domain.ErrValidation, format)
	}
}

// ProductsTXT — по строке id,name,cost,profit,price на товар.
func ProductsTXT(products []domain.Product) []byte {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, strings.Join([]string{
			p.ID, p.Name, p.Cost.String(), p.Profit.String(), p.Price.String(),
		}, ","))
	}
	return []byte(strings.Join(lines, "\n"))
}

// ProductsXLSX пишет книгу с листом Products.
func ProductsXLSX(w io.Writer, products []domain.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), productsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]any{{"ID", "Name", "Cost", "Profit %", "Price"}}
	for _, p := range products {
		rows = append(rows, []any{p.ID, p.Name, number(p.Cost), number(p.Profit), number(p.Price)})
	}
	if err := writeRows(f, productsSheet, rows); err != nil {
		return err
	}
	return f.Write(w)
}

// Receipt пишет книгу с листом Receipt: реквизиты, позиции и итоги.
func Receipt(w io.Writer, r domain.Receipt, labels settings.ReceiptLabels) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), receiptSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	money := func(d decimal.Decimal) string { return d.String() + " " + labels.Currency }

	rows := [][]any{
		{r.ShopName},
		{r.Address},
		{r.Phone},
		{fmt.Sprintf("%s: %03d", labels.Invoice, r.InvoiceNo)},
		{fmt.Sprintf("%s: %s", labels.Date, r.Date.Format("2006-01-02"))},
		{},
		{labels.Item, labels.Qty, "Price", labels.Total},
	}
	for _, item := range r.Items {
		rows = append(rows, []any{item.Product.Name, item.Quantity, money(item.Product.Price), money(item.LineTotal())})
	}
	rows = append(rows,
		[]any{},
		[]any{labels.Subtotal + ":", "", "", money(r.Subtotal)},
		[]any{labels.ServiceFee + ":", "", "", money(r.ServiceFee)},
		[]any{labels.GrandTotal + ":", "", "", money(r.GrandTotal)},
	)
	if err := writeRows(f, receiptSheet, rows); err != nil {
		return err
	}
	return f.Write(w)
}

// ProductsFilename — имя файла выгрузки каталога.
func ProductsFilename(format Format, now time.Time) string {
	return fmt.Sprintf("products_%s.%s", timestamp(now), format)
}

// ReceiptFilename — имя файла выгрузки чека.
func ReceiptFilename(r domain.Receipt) string {
	shop := spaces.ReplaceAllString(strings.TrimSpace(r.ShopName), "_")
	return fmt.Sprintf("%s_Receipt_%d_%s.xlsx", shop, r.InvoiceNo, timestamp(r.Date))
}

func timestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}

func number(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
