package webConverter

import (
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const dateTimeLayout = "2006-01-02 15:04:05"

type PositionRow struct {
	Symbol string
	Name   string
	Shares int
	Price  string
	Total  string
	Stale  bool
}

type PortfolioView struct {
	Positions []PositionRow
	Cash      string
	Total     string
}

type HistoryRow struct {
	Symbol     string
	Name       string
	Shares     int
	Price      string
	Transacted string
}

type QuoteView struct {
	Symbol string
	Name   string
	Price  string
}

// USD formats an amount as dollars with thousands separators and two decimals, e.g. $1,234.50.
func USD(amount decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	cents := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(cents.IntPart())
}

func PortfolioResponse(portfolio model.Portfolio) PortfolioView {
	view := PortfolioView{
		Positions: make([]PositionRow, 0, len(portfolio.Positions)),
		Cash:      USD(portfolio.Cash),
		Total:     USD(portfolio.Total),
	}

	for _, position := range portfolio.Positions {
		view.Positions = append(view.Positions, PositionRow{
			Symbol: position.Symbol,
			Name:   position.Name,
			Shares: position.Shares,
			Price:  USD(position.Price),
			Total:  USD(position.Total),
			Stale:  position.Stale,
		})
	}

	return view
}

func HistoryResponse(entries []model.HistoryEntry) []HistoryRow {
	rows := make([]HistoryRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, HistoryRow{
			Symbol:     entry.Symbol,
			Name:       entry.Name,
			Shares:     entry.Shares,
			Price:      USD(entry.Price),
			Transacted: entry.DtCreate.Format(dateTimeLayout),
		})
	}
	return rows
}

func QuoteResponse(quote model.Quote) QuoteView {
	return QuoteView{
		Symbol: quote.Symbol,
		Name:   quote.Name,
		Price:  USD(quote.Price),
	}
}
