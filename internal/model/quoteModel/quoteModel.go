package quoteModel

import "github.com/shopspring/decimal"

// RawQuote is the subset of the provider's /stock/{symbol}/quote payload we use.
type RawQuote struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"companyName"`
	LatestPrice *decimal.Decimal `json:"latestPrice"`
}
