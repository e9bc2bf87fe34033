package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/KotFed0t/papertrade/data/repository"
	"github.com/KotFed0t/papertrade/internal/externalApi"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/internal/service"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// upper bound of concurrent quote requests made for one portfolio
const quoteFetchConcurrency = 8

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	SetQuote(ctx context.Context, quote model.Quote) error
	SetQuotes(ctx context.Context, quotes []model.Quote) error
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	LockUserCash(ctx context.Context, userID int64) (cash decimal.Decimal, err error)
	AddUserCash(ctx context.Context, userID int64, delta decimal.Decimal) (cash decimal.Decimal, err error)
	GetUserCash(ctx context.Context, userID int64) (cash decimal.Decimal, err error)
	GetPositions(ctx context.Context, userID int64) (positions []model.Position, err error)
	GetPosition(ctx context.Context, userID int64, symbol string) (position model.Position, err error)
	UpsertPosition(ctx context.Context, userID int64, quote model.Quote, shares int) (total int, err error)
	SetPositionShares(ctx context.Context, userID int64, symbol string, shares int, price decimal.Decimal) (err error)
	DeletePosition(ctx context.Context, userID int64, symbol string) (err error)
	UpdatePositionValuation(ctx context.Context, userID int64, symbol string, price, total decimal.Decimal) (err error)
	InsertHistoryEntry(ctx context.Context, userID int64, entry model.HistoryEntry) (saved model.HistoryEntry, err error)
	GetHistory(ctx context.Context, userID int64) (entries []model.HistoryEntry, err error)
	GetPositionSymbols(ctx context.Context, userID int64) (symbols []string, err error)
	GetHeldSymbols(ctx context.Context) (symbols []string, err error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.LedgerReport) (fileBytes []byte, fileExtension string, err error)
}

type LedgerService struct {
	repo            Repository
	cache           Cache
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
}

func New(repo Repository, cache Cache, quoteApi QuoteApi, reportGenerator ReportGenerator) *LedgerService {
	return &LedgerService{
		repo:            repo,
		cache:           cache,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote resolves a symbol through the cache, falling back to the quote provider.
func (s *LedgerService) Quote(ctx context.Context, symbol string) (quote model.Quote, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Quote"

	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return model.Quote{}, service.ErrMissingField
	}

	slog.Debug("Quote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("Quote finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	quote, err = s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote, nil
	}

	slog.Debug("can't get quote from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

	quote, err = s.fetchQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}

	s.cacheQuote(ctx, quote)

	return quote, nil
}

// tradeQuote asks the provider directly so a trade never executes at a cached price.
func (s *LedgerService) tradeQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if symbol == "" {
		return model.Quote{}, service.ErrMissingField
	}

	quote, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}

	s.cacheQuote(ctx, quote)

	return quote, nil
}

func (s *LedgerService) cacheQuote(ctx context.Context, quote model.Quote) {
	go func() {
		_ = s.cache.SetQuote(context.WithoutCancel(ctx), quote)
	}()
}

func (s *LedgerService) fetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.fetchQuote"

	quote, err := s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("symbol not found in quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return model.Quote{}, service.ErrUnknownSymbol
		}
		slog.Error("can't get quote from quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, fmt.Errorf("%w: %w", service.ErrQuoteUnavailable, err)
	}

	quote.Price = quote.Price.Round(model.PriceScale)
	if !quote.Price.IsPositive() {
		slog.Error("quoteApi returned no usable price", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return model.Quote{}, service.ErrQuoteUnavailable
	}

	return quote, nil
}

// fetchQuotes returns the quotes that could be resolved, keyed by symbol.
// Symbols whose lookup failed are absent from the result.
func (s *LedgerService) fetchQuotes(ctx context.Context, symbols []string, useCache bool) map[string]model.Quote {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.fetchQuotes"

	var mu sync.Mutex
	quotes := make(map[string]model.Quote, len(symbols))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(quoteFetchConcurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			var (
				quote model.Quote
				err   error
			)
			if useCache {
				quote, err = s.Quote(gCtx, symbol)
			} else {
				quote, err = s.fetchQuote(gCtx, symbol)
			}
			if err != nil {
				slog.Warn("quote lookup failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
				return nil
			}

			mu.Lock()
			quotes[symbol] = quote
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return quotes
}

// ValuePortfolio refreshes price and total of every position and returns the portfolio.
// Positions whose quote can't be fetched keep their persisted values and are marked Stale.
func (s *LedgerService) ValuePortfolio(ctx context.Context, userID int64) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ValuePortfolio"

	slog.Debug("ValuePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("ValuePortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	symbols, err := s.repo.GetPositionSymbols(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetPositionSymbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	// quotes are fetched before taking the user lock so slow providers don't hold it
	quotes := s.fetchQuotes(ctx, symbols, true)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		cash, err := s.repo.LockUserCash(ctx, userID)
		if err != nil {
			return err
		}

		positions, err := s.repo.GetPositions(ctx, userID)
		if err != nil {
			return err
		}

		for i := range positions {
			quote, ok := quotes[positions[i].Symbol]
			if !ok {
				positions[i].Stale = true
				slog.Warn(
					"using persisted valuation",
					slog.String("rqID", rqID),
					slog.String("op", op),
					slog.String("symbol", positions[i].Symbol),
				)
				continue
			}

			positions[i].Price = quote.Price
			positions[i].Total = quote.Price.Mul(decimal.NewFromInt(int64(positions[i].Shares)))

			err = s.repo.UpdatePositionValuation(ctx, userID, positions[i].Symbol, positions[i].Price, positions[i].Total)
			if err != nil {
				return err
			}
		}

		portfolio = model.Portfolio{Positions: positions, Cash: cash, Total: cash}
		for _, position := range positions {
			portfolio.Total = portfolio.Total.Add(position.Total)
		}

		return nil
	})
	if err != nil {
		slog.Error("can't value portfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	return portfolio, nil
}

func (s *LedgerService) Buy(ctx context.Context, userID int64, symbol string, shares int) (entry model.HistoryEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Buy"

	symbol = normalizeSymbol(symbol)

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("shares", shares))
	}()

	if shares <= 0 {
		return model.HistoryEntry{}, service.ErrInvalidQuantity
	}

	quote, err := s.tradeQuote(ctx, symbol)
	if err != nil {
		return model.HistoryEntry{}, err
	}

	cost := quote.Price.Mul(decimal.NewFromInt(int64(shares)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		cash, err := s.repo.LockUserCash(ctx, userID)
		if err != nil {
			return err
		}

		if cost.GreaterThan(cash) {
			return service.ErrInsufficientFunds
		}

		if _, err = s.repo.UpsertPosition(ctx, userID, quote, shares); err != nil {
			return err
		}

		if _, err = s.repo.AddUserCash(ctx, userID, cost.Neg()); err != nil {
			return err
		}

		entry, err = s.repo.InsertHistoryEntry(ctx, userID, model.HistoryEntry{
			Symbol: quote.Symbol,
			Name:   quote.Name,
			Shares: shares,
			Price:  quote.Price,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, service.ErrInsufficientFunds) {
			slog.Error("buy failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.HistoryEntry{}, err
	}

	slog.Info(
		"bought",
		slog.String("rqID", rqID),
		slog.Int64("userID", userID),
		slog.String("symbol", quote.Symbol),
		slog.Int("shares", shares),
		slog.String("price", quote.Price.String()),
	)

	return entry, nil
}

func (s *LedgerService) Sell(ctx context.Context, userID int64, symbol string, shares int) (entry model.HistoryEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Sell"

	symbol = normalizeSymbol(symbol)

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("shares", shares))
	}()

	if shares <= 0 {
		return model.HistoryEntry{}, service.ErrInvalidQuantity
	}

	quote, err := s.tradeQuote(ctx, symbol)
	if err != nil {
		return model.HistoryEntry{}, err
	}

	proceeds := quote.Price.Mul(decimal.NewFromInt(int64(shares)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockUserCash(ctx, userID); err != nil {
			return err
		}

		position, err := s.repo.GetPosition(ctx, userID, quote.Symbol)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrInsufficientShares
			}
			return err
		}

		if shares > position.Shares {
			return service.ErrInsufficientShares
		}

		remaining := position.Shares - shares
		if remaining == 0 {
			err = s.repo.DeletePosition(ctx, userID, quote.Symbol)
		} else {
			err = s.repo.SetPositionShares(ctx, userID, quote.Symbol, remaining, quote.Price)
		}
		if err != nil {
			return err
		}

		if _, err = s.repo.AddUserCash(ctx, userID, proceeds); err != nil {
			return err
		}

		entry, err = s.repo.InsertHistoryEntry(ctx, userID, model.HistoryEntry{
			Symbol: quote.Symbol,
			Name:   quote.Name,
			Shares: -shares,
			Price:  quote.Price,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, service.ErrInsufficientShares) {
			slog.Error("sell failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.HistoryEntry{}, err
	}

	slog.Info(
		"sold",
		slog.String("rqID", rqID),
		slog.Int64("userID", userID),
		slog.String("symbol", quote.Symbol),
		slog.Int("shares", shares),
		slog.String("price", quote.Price.String()),
	)

	return entry, nil
}

func (s *LedgerService) GetHistory(ctx context.Context, userID int64) ([]model.HistoryEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetHistory"

	entries, err := s.repo.GetHistory(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetHistory", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return entries, nil
}

func (s *LedgerService) GetPositionSymbols(ctx context.Context, userID int64) ([]string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetPositionSymbols"

	symbols, err := s.repo.GetPositionSymbols(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetPositionSymbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return symbols, nil
}

// ExportHistory renders positions (last persisted valuation) and trade history into a file.
func (s *LedgerService) ExportHistory(ctx context.Context, userID int64) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ExportHistory"

	slog.Debug("ExportHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("ExportHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	report := model.LedgerReport{}

	report.Portfolio.Cash, err = s.repo.GetUserCash(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	report.Portfolio.Positions, err = s.repo.GetPositions(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	report.Portfolio.Total = report.Portfolio.Cash
	for _, position := range report.Portfolio.Positions {
		report.Portfolio.Total = report.Portfolio.Total.Add(position.Total)
	}

	report.History, err = s.repo.GetHistory(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	fileBytes, fileExtension, err = s.reportGenerator.Generate(ctx, report)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	return fileBytes, fileExtension, nil
}

// WarmQuotesCache refreshes cached quotes of every held symbol straight from the provider.
func (s *LedgerService) WarmQuotesCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.WarmQuotesCache"

	symbols, err := s.repo.GetHeldSymbols(ctx)
	if err != nil {
		return err
	}

	if len(symbols) == 0 {
		slog.Debug("no held symbols, nothing to warm", slog.String("rqID", rqID), slog.String("op", op))
		return nil
	}

	quotesMap := s.fetchQuotes(ctx, symbols, false)

	quotes := make([]model.Quote, 0, len(quotesMap))
	for _, quote := range quotesMap {
		quotes = append(quotes, quote)
	}

	err = s.cache.SetQuotes(ctx, quotes)
	if err != nil {
		return err
	}

	slog.Info(
		"quotes cache warmed",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int("symbols", len(symbols)),
		slog.Int("cached", len(quotes)),
	)

	return nil
}
