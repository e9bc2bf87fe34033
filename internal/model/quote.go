package model

import "github.com/shopspring/decimal"

// PriceScale is the number of decimal places a price is stored with.
const PriceScale = 4

type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}
