package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
)

// NewPostgresClient connects to postgres and brings the schema up to date with the embedded migrations.
func NewPostgresClient(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := connectPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)

	if err = migratePostgres(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("postgres migrated successfully")

	return db, nil
}

func postgresDSN(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.DbName,
		cfg.Password,
	)
}

func connectPostgres(ctx context.Context, cfg config.Postgres) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pingPostgres(ctx, db, cfg.PingTimeout)
		if err == nil {
			slog.Info("Postgres connected", slog.Int("attempt", attempt))
			return db, nil
		}

		if attempt >= cfg.ConnAttempts {
			break
		}

		slog.Info(
			"Postgres is trying to connect",
			slog.Int("attemptsLeft", cfg.ConnAttempts-attempt),
			slog.String("err", err.Error()),
		)

		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.ConnRetryDelay):
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", cfg.ConnAttempts, err)
}

func pingPostgres(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}

func migratePostgres(db *sqlx.DB, migrationsFS fs.FS) error {
	source, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
