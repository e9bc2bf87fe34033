package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	Symbol   string
	Name     string
	Shares   int
	Price    decimal.Decimal
	Total    decimal.Decimal
	Stale    bool // price could not be refreshed, last persisted values are shown
	DtUpdate time.Time
}

type Portfolio struct {
	Positions []Position
	Cash      decimal.Decimal
	Total     decimal.Decimal
}

type HistoryEntry struct {
	ID       int64
	Symbol   string
	Name     string
	Shares   int // signed: buys are positive, sells negative
	Price    decimal.Decimal
	DtCreate time.Time
}

// Amount is the signed cash effect of the entry seen from the position side.
func (e HistoryEntry) Amount() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Shares)))
}

// LedgerReport is everything the history export contains for one user.
type LedgerReport struct {
	Portfolio Portfolio
	History   []HistoryEntry
}
