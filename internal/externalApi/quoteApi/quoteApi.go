package quoteApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/internal/externalApi"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/internal/model/quoteModel"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/go-resty/resty/v2"
)

const quotePath = "/stock/{symbol}/quote"

type QuoteApi struct {
	client *resty.Client
	token  string
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url)
	return &QuoteApi{client: client, token: cfg.API.QuoteApi.Token}
}

func (a *QuoteApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteApi.GetQuote"

	slog.Debug("start QuoteApi.GetQuote request", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParam("symbol", symbol).
		SetQueryParam("token", a.token).
		Get(quotePath)

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, fmt.Errorf("%w: %w", externalApi.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound, resp.StatusCode() == http.StatusBadRequest:
		slog.Warn("symbol not found in QuoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return model.Quote{}, externalApi.ErrNotFound
	case resp.StatusCode() != http.StatusOK:
		slog.Error("unexpected QuoteApi status", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return model.Quote{}, fmt.Errorf("%w: status %d", externalApi.ErrUnavailable, resp.StatusCode())
	}

	rawQuote := quoteModel.RawQuote{}
	err = json.Unmarshal(resp.Body(), &rawQuote)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.RawQuote", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, fmt.Errorf("%w: %w", externalApi.ErrUnavailable, err)
	}

	quote, err := parseRawQuote(rawQuote)
	if err != nil {
		slog.Error("can't parse raw quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	slog.Debug("QuoteApi.GetQuote request complete", slog.String("rqID", rqID), slog.String("op", op))

	return quote, nil
}

func parseRawQuote(rawQuote quoteModel.RawQuote) (model.Quote, error) {
	if rawQuote.Symbol == "" {
		return model.Quote{}, externalApi.ErrNotFound
	}

	if rawQuote.LatestPrice == nil {
		return model.Quote{}, fmt.Errorf("%w: no price for %s", externalApi.ErrUnavailable, rawQuote.Symbol)
	}

	price := rawQuote.LatestPrice.Round(model.PriceScale)
	if !price.IsPositive() {
		return model.Quote{}, fmt.Errorf("%w: no price for %s", externalApi.ErrUnavailable, rawQuote.Symbol)
	}

	name := rawQuote.CompanyName
	if name == "" {
		name = rawQuote.Symbol
	}

	return model.Quote{
		Symbol: strings.ToUpper(rawQuote.Symbol),
		Name:   name,
		Price:  price,
	}, nil
}
