package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	UserID   int64
	Username string
	Hash     string
	Cash     decimal.Decimal
	DtCreate time.Time
}
