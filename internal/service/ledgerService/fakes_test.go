package ledgerService

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KotFed0t/papertrade/data/repository"
	"github.com/KotFed0t/papertrade/internal/externalApi"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/shopspring/decimal"
)

var errCacheMiss = errors.New("cache miss")

// memRepo keeps the ledger in memory; transactions are serialized and rolled back on error.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	cash      map[int64]decimal.Decimal
	positions map[int64]map[string]model.Position
	history   map[int64][]model.HistoryEntry
	nextID    int64

	failHistoryInsert bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		cash:      map[int64]decimal.Decimal{},
		positions: map[int64]map[string]model.Position{},
		history:   map[int64][]model.HistoryEntry{},
	}
}

func (r *memRepo) addUser(userID int64, cash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cash[userID] = decimal.RequireFromString(cash)
	r.positions[userID] = map[string]model.Position{}
}

type memSnapshot struct {
	cash      map[int64]decimal.Decimal
	positions map[int64]map[string]model.Position
	history   map[int64][]model.HistoryEntry
	nextID    int64
}

func (r *memRepo) snapshot() memSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := memSnapshot{
		cash:      maps.Clone(r.cash),
		positions: make(map[int64]map[string]model.Position, len(r.positions)),
		history:   make(map[int64][]model.HistoryEntry, len(r.history)),
		nextID:    r.nextID,
	}
	for userID, positions := range r.positions {
		s.positions[userID] = maps.Clone(positions)
	}
	for userID, entries := range r.history {
		s.history[userID] = slices.Clone(entries)
	}
	return s
}

func (r *memRepo) restore(s memSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cash = s.cash
	r.positions = s.positions
	r.history = s.history
	r.nextID = s.nextID
}

func (r *memRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	s := r.snapshot()
	if err := tFunc(ctx); err != nil {
		r.restore(s)
		return err
	}
	return nil
}

func (r *memRepo) LockUserCash(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return r.GetUserCash(ctx, userID)
}

func (r *memRepo) GetUserCash(_ context.Context, userID int64) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cash, ok := r.cash[userID]
	if !ok {
		return decimal.Zero, repository.ErrNotFound
	}
	return cash, nil
}

func (r *memRepo) AddUserCash(_ context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cash := r.cash[userID].Add(delta)
	if cash.IsNegative() {
		return decimal.Zero, errors.New("cash check constraint violated")
	}
	r.cash[userID] = cash
	return cash, nil
}

func (r *memRepo) GetPositions(_ context.Context, userID int64) ([]model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	positions := slices.Collect(maps.Values(r.positions[userID]))
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (r *memRepo) GetPosition(_ context.Context, userID int64, symbol string) (model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.positions[userID][symbol]
	if !ok {
		return model.Position{}, repository.ErrNotFound
	}
	return position, nil
}

func (r *memRepo) UpsertPosition(_ context.Context, userID int64, quote model.Quote, shares int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	position := r.positions[userID][quote.Symbol]
	position.Symbol = quote.Symbol
	position.Name = quote.Name
	position.Shares += shares
	position.Price = quote.Price
	position.Total = quote.Price.Mul(decimal.NewFromInt(int64(position.Shares)))
	position.DtUpdate = time.Now()
	r.positions[userID][quote.Symbol] = position
	return position.Shares, nil
}

func (r *memRepo) SetPositionShares(_ context.Context, userID int64, symbol string, shares int, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.positions[userID][symbol]
	if !ok {
		return repository.ErrNotFound
	}
	position.Shares = shares
	position.Price = price
	position.Total = price.Mul(decimal.NewFromInt(int64(shares)))
	r.positions[userID][symbol] = position
	return nil
}

func (r *memRepo) DeletePosition(_ context.Context, userID int64, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions[userID], symbol)
	return nil
}

func (r *memRepo) UpdatePositionValuation(_ context.Context, userID int64, symbol string, price, total decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.positions[userID][symbol]
	if !ok {
		return repository.ErrNotFound
	}
	position.Price = price
	position.Total = total
	r.positions[userID][symbol] = position
	return nil
}

func (r *memRepo) InsertHistoryEntry(_ context.Context, userID int64, entry model.HistoryEntry) (model.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failHistoryInsert {
		return model.HistoryEntry{}, errors.New("history insert failed")
	}
	r.nextID++
	entry.ID = r.nextID
	entry.DtCreate = time.Now()
	r.history[userID] = append(r.history[userID], entry)
	return entry, nil
}

func (r *memRepo) GetHistory(_ context.Context, userID int64) ([]model.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history[userID]), nil
}

func (r *memRepo) GetPositionSymbols(_ context.Context, userID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	symbols := slices.Collect(maps.Keys(r.positions[userID]))
	slices.Sort(symbols)
	return symbols, nil
}

func (r *memRepo) GetHeldSymbols(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[string]struct{}{}
	for _, positions := range r.positions {
		for symbol := range positions {
			set[symbol] = struct{}{}
		}
	}
	symbols := slices.Collect(maps.Keys(set))
	slices.Sort(symbols)
	return symbols, nil
}

// fakeQuoteApi serves prices from a map; symbols listed in unavailable fail with ErrUnavailable.
type fakeQuoteApi struct {
	mu          sync.Mutex
	prices      map[string]decimal.Decimal
	unavailable map[string]bool
	calls       atomic.Int64
}

func newFakeQuoteApi(prices map[string]string) *fakeQuoteApi {
	api := &fakeQuoteApi{prices: map[string]decimal.Decimal{}, unavailable: map[string]bool{}}
	for symbol, price := range prices {
		api.prices[symbol] = decimal.RequireFromString(price)
	}
	return api
}

func (a *fakeQuoteApi) setPrice(symbol, price string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[symbol] = decimal.RequireFromString(price)
}

func (a *fakeQuoteApi) setUnavailable(symbol string, unavailable bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unavailable[symbol] = unavailable
}

func (a *fakeQuoteApi) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	a.calls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unavailable[symbol] {
		return model.Quote{}, externalApi.ErrUnavailable
	}
	price, ok := a.prices[symbol]
	if !ok {
		return model.Quote{}, externalApi.ErrNotFound
	}
	return model.Quote{Symbol: symbol, Name: symbol + " Inc.", Price: price}, nil
}

// nopCache never holds anything, so every lookup reaches the quote api.
type nopCache struct{}

func (nopCache) GetQuote(context.Context, string) (model.Quote, error) {
	return model.Quote{}, errCacheMiss
}
func (nopCache) SetQuote(context.Context, model.Quote) error    { return nil }
func (nopCache) SetQuotes(context.Context, []model.Quote) error { return nil }

type memCache struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
}

func newMemCache() *memCache {
	return &memCache{quotes: map[string]model.Quote{}}
}

func (c *memCache) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quote, ok := c.quotes[symbol]
	if !ok {
		return model.Quote{}, errCacheMiss
	}
	return quote, nil
}

func (c *memCache) SetQuote(_ context.Context, quote model.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[quote.Symbol] = quote
	return nil
}

func (c *memCache) SetQuotes(ctx context.Context, quotes []model.Quote) error {
	for _, quote := range quotes {
		_ = c.SetQuote(ctx, quote)
	}
	return nil
}

func (c *memCache) has(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.quotes[symbol]
	return ok
}

type captureGenerator struct {
	report model.LedgerReport
}

func (g *captureGenerator) Generate(_ context.Context, report model.LedgerReport) ([]byte, string, error) {
	g.report = report
	return []byte("xlsx"), ".xlsx", nil
}
