package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	UserID   int64           `db:"user_id"`
	Symbol   string          `db:"symbol"`
	Name     string          `db:"name"`
	Shares   int             `db:"shares"`
	Price    decimal.Decimal `db:"price"`
	Total    decimal.Decimal `db:"total"`
	DtUpdate time.Time       `db:"dt_update"`
}

type HistoryEntry struct {
	HistoryID int64           `db:"history_id"`
	UserID    int64           `db:"user_id"`
	Symbol    string          `db:"symbol"`
	Name      string          `db:"name"`
	Shares    int             `db:"shares"`
	Price     decimal.Decimal `db:"price"`
	DtCreate  time.Time       `db:"dt_create"`
}
