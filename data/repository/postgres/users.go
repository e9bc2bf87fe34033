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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

func (r *Postgres) InsertUser(ctx context.Context, username, hash string, cash decimal.Decimal) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertUser"
	query := `INSERT INTO users(username, hash, cash) VALUES($1, $2, $3) RETURNING user_id`

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, username, hash, cash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, repository.ErrAlreadyExists
		}
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) getUser(ctx context.Context, op, query string, arg any) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("getUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("getUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("getUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser := dbModel.User{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbUser, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, repository.ErrNotFound
		}
		return model.User{}, err
	}

	return dbConverter.ConvertUser(dbUser), nil
}

func (r *Postgres) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	query := `
		SELECT user_id, username, hash, cash, dt_create
		FROM users
		WHERE username = $1
		`

	return r.getUser(ctx, "Postgres.GetUserByUsername", query, username)
}

func (r *Postgres) GetUserByID(ctx context.Context, userID int64) (model.User, error) {
	query := `
		SELECT user_id, username, hash, cash, dt_create
		FROM users
		WHERE user_id = $1
		`

	return r.getUser(ctx, "Postgres.GetUserByID", query, userID)
}

func (r *Postgres) UpdatePasswordHash(ctx context.Context, userID int64, hash string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePasswordHash"
	query := `UPDATE users SET hash = $1 WHERE user_id = $2`

	slog.Debug("UpdatePasswordHash start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("UpdatePasswordHash failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePasswordHash completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, hash, userID)
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

// LockUserCash takes a row lock on the user for the rest of the transaction in ctx,
// serializing every ledger update of that user.
func (r *Postgres) LockUserCash(ctx context.Context, userID int64) (cash decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.LockUserCash"
	query := `SELECT cash FROM users WHERE user_id = $1 FOR UPDATE`

	slog.Debug("LockUserCash start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("LockUserCash failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("LockUserCash completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	if r.extractTx(ctx) == nil {
		return decimal.Zero, errors.New("LockUserCash called outside of transaction")
	}

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID).Scan(&cash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrNotFound
		}
		return decimal.Zero, err
	}

	return cash, nil
}

func (r *Postgres) GetUserCash(ctx context.Context, userID int64) (cash decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetUserCash"
	query := `SELECT cash FROM users WHERE user_id = $1`

	slog.Debug("GetUserCash start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetUserCash failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserCash completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID).Scan(&cash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrNotFound
		}
		return decimal.Zero, err
	}

	return cash, nil
}

// AddUserCash applies a signed delta to the cash balance and returns the new balance.
func (r *Postgres) AddUserCash(ctx context.Context, userID int64, delta decimal.Decimal) (cash decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.AddUserCash"
	query := `UPDATE users SET cash = cash + $1 WHERE user_id = $2 RETURNING cash`

	slog.Debug(
		"AddUserCash start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("delta", delta.String()),
	)
	defer func() {
		if err != nil {
			slog.Error("AddUserCash failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("AddUserCash completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, delta, userID).Scan(&cash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrNotFound
		}
		return decimal.Zero, err
	}

	return cash, nil
}
