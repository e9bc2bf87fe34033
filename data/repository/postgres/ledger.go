package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/papertrade/data/repository"
	"github.com/KotFed0t/papertrade/internal/converter/dbConverter"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/internal/model/dbModel"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/shopspring/decimal"
)

func (r *Postgres) GetPositions(ctx context.Context, userID int64) (positions []model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPositions"
	query := `
		SELECT user_id, symbol, name, shares, price, total, dt_update
		FROM positions
		WHERE user_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetPositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	positions = make([]model.Position, 0)
	for rows.Next() {
		var position dbModel.Position
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertPosition(position))
	}

	return positions, rows.Err()
}

func (r *Postgres) GetPosition(ctx context.Context, userID int64, symbol string) (position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPosition"
	params := map[string]any{
		"userID": userID,
		"symbol": symbol,
	}
	query := `
		SELECT user_id, symbol, name, shares, price, total, dt_update
		FROM positions
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("GetPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("params", params))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetPosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPosition := dbModel.Position{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).StructScan(&dbPosition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Position{}, repository.ErrNotFound
		}
		return model.Position{}, err
	}

	return dbConverter.ConvertPosition(dbPosition), nil
}

// UpsertPosition adds shares to the (user, symbol) position, creating it when absent,
// and returns the resulting share count.
func (r *Postgres) UpsertPosition(ctx context.Context, userID int64, quote model.Quote, shares int) (total int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertPosition"
	params := map[string]any{
		"userID": userID,
		"symbol": quote.Symbol,
		"shares": shares,
	}
	query := `
		INSERT INTO positions(user_id, symbol, name, shares, price, total)
		VALUES ($1, $2, $3, $4::integer, $5::numeric, $4::integer * $5::numeric)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			shares = positions.shares + EXCLUDED.shares,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			total = (positions.shares + EXCLUDED.shares) * EXCLUDED.price,
			dt_update = now()
		RETURNING shares
		`

	slog.Debug("UpsertPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("UpsertPosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertPosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID, quote.Symbol, quote.Name, shares, quote.Price).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *Postgres) SetPositionShares(ctx context.Context, userID int64, symbol string, shares int, price decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SetPositionShares"
	params := map[string]any{
		"userID": userID,
		"symbol": symbol,
		"shares": shares,
	}
	query := `
		UPDATE positions
		SET
			shares = $1::integer,
			price = $2::numeric,
			total = $1::integer * $2::numeric,
			dt_update = now()
		WHERE
			user_id = $3
			AND symbol = $4
		`

	slog.Debug("SetPositionShares start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("SetPositionShares failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetPositionShares completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, shares, price, userID, symbol)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) DeletePosition(ctx context.Context, userID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeletePosition"
	params := map[string]any{
		"userID": userID,
		"symbol": symbol,
	}
	query := `
		DELETE FROM positions
		WHERE
			user_id = $1
			AND symbol = $2
		`

	slog.Debug("DeletePosition start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("DeletePosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeletePosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	return err
}

func (r *Postgres) UpdatePositionValuation(ctx context.Context, userID int64, symbol string, price, total decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePositionValuation"
	query := `
		UPDATE positions
		SET
			price = $1,
			total = $2,
			dt_update = now()
		WHERE
			user_id = $3
			AND symbol = $4
		`

	slog.Debug("UpdatePositionValuation start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("UpdatePositionValuation failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePositionValuation completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, price, total, userID, symbol)
	return err
}

func (r *Postgres) InsertHistoryEntry(ctx context.Context, userID int64, entry model.HistoryEntry) (saved model.HistoryEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertHistoryEntry"
	query := `
		INSERT INTO history(user_id, symbol, name, shares, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING history_id, dt_create
	`

	slog.Debug(
		"InsertHistoryEntry start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Any("entry", entry),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertHistoryEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertHistoryEntry completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	saved = entry
	err = r.txOrDb(ctx).
		QueryRowContext(ctx, query, userID, entry.Symbol, entry.Name, entry.Shares, entry.Price).
		Scan(&saved.ID, &saved.DtCreate)
	if err != nil {
		return model.HistoryEntry{}, err
	}

	return saved, nil
}

func (r *Postgres) GetHistory(ctx context.Context, userID int64) (entries []model.HistoryEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHistory"
	query := `
		SELECT history_id, user_id, symbol, name, shares, price, dt_create
		FROM history
		WHERE user_id = $1
		ORDER BY history_id
		`

	slog.Debug("GetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetHistory failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHistory completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	entries = make([]model.HistoryEntry, 0)
	for rows.Next() {
		var entry dbModel.HistoryEntry
		err = rows.StructScan(&entry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dbConverter.ConvertHistoryEntry(entry))
	}

	return entries, rows.Err()
}

func (r *Postgres) GetPositionSymbols(ctx context.Context, userID int64) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPositionSymbols"
	query := `SELECT symbol FROM positions WHERE user_id = $1 ORDER BY symbol`

	slog.Debug("GetPositionSymbols start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetPositionSymbols failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositionSymbols completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	symbols = make([]string, 0)
	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query, userID)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}

// GetHeldSymbols returns every symbol held by at least one user.
func (r *Postgres) GetHeldSymbols(ctx context.Context) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHeldSymbols"
	query := `SELECT DISTINCT symbol FROM positions ORDER BY symbol`

	slog.Debug("GetHeldSymbols start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("GetHeldSymbols failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHeldSymbols completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	symbols = make([]string, 0)
	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}
