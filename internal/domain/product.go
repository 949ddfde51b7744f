package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Суммы в JSON пишутся числами, как их ждут клиенты и удалённый каталог.
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// Product — позиция каталога. Цена вычисляется один раз при создании и дальше хранится как есть.
type Product struct {
	ID     string          `json:"id" validate:"required"`
	Name   string          `json:"name" validate:"required"`
	Cost   decimal.Decimal `json:"cost" validate:"gt=0"`
	Profit decimal.Decimal `json:"profit" validate:"gt=0"`
	Price  decimal.Decimal `json:"price" validate:"gt=0"`
}

// ComputePrice возвращает cost + cost*profit/100, округлённое до целой единицы.
func ComputePrice(cost, profit decimal.Decimal) decimal.Decimal {
	return cost.Add(cost.Mul(profit).Div(hundred)).Round(0)
}

// NewProduct собирает товар с вычисленной ценой; пробелы по краям id и названия отбрасываются.
func NewProduct(id, name string, cost, profit decimal.Decimal) Product {
	return Product{
		ID:     strings.TrimSpace(id),
		Name:   strings.TrimSpace(name),
		Cost:   cost,
		Profit: profit,
		Price:  ComputePrice(cost, profit),
	}
}

// Matches реализует поиск без учёта регистра по подстроке в id или названии.
func (p Product) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.ID), term) ||
		strings.Contains(strings.ToLower(p.Name), term)
}
