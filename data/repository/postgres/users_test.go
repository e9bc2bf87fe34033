package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KotFed0t/papertrade/data/repository"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestInsertUser(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantID  int64
		wantErr error
	}{
		{name: "created", wantID: 7},
		{name: "duplicate username", err: &pgconn.PgError{Code: uniqueViolationCode}, wantErr: repository.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)

			expect := mock.ExpectQuery(`INSERT INTO users\(username, hash, cash\) VALUES\(\$1, \$2, \$3\) RETURNING user_id`).
				WithArgs("alice", "hash", dec("10000"))
			if tt.err != nil {
				expect.WillReturnError(tt.err)
			} else {
				expect.WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(tt.wantID))
			}

			id, err := repo.InsertUser(context.Background(), "alice", "hash", dec("10000"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("InsertUser() error = %v, want %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("InsertUser() = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestGetUserByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT user_id, username, hash, cash, dt_create FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "hash", "cash", "dt_create"}).
			AddRow(int64(3), "alice", "hash", "9500.2500", created))
	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "hash", "cash", "dt_create"}))

	user, err := repo.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() unexpected error: %v", err)
	}
	if user.UserID != 3 || user.Hash != "hash" || !user.Cash.Equal(dec("9500.25")) || !user.DtCreate.Equal(created) {
		t.Errorf("user = %+v", user)
	}

	if _, err = repo.GetUserByUsername(context.Background(), "bob"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetUserByUsername(bob) error = %v, want %v", err, repository.ErrNotFound)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users SET hash = \$1 WHERE user_id = \$2`).
		WithArgs("new", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET hash = \$1 WHERE user_id = \$2`).
		WithArgs("new", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdatePasswordHash(context.Background(), 1, "new"); err != nil {
		t.Fatalf("UpdatePasswordHash() unexpected error: %v", err)
	}
	if err := repo.UpdatePasswordHash(context.Background(), 2, "new"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdatePasswordHash() error = %v, want %v", err, repository.ErrNotFound)
	}
}

func TestLockUserCash(t *testing.T) {
	t.Run("outside transaction", func(t *testing.T) {
		repo, _ := newMockRepo(t)

		if _, err := repo.LockUserCash(context.Background(), 1); err == nil {
			t.Fatal("LockUserCash() expected error, got nil")
		}
	})

	t.Run("row lock", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT cash FROM users WHERE user_id = \$1 FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"cash"}).AddRow("9200.0000"))
		mock.ExpectCommit()

		err := repo.WithinTransaction(context.Background(), func(ctx context.Context) error {
			cash, err := repo.LockUserCash(ctx, 1)
			if err != nil {
				return err
			}
			if !cash.Equal(dec("9200")) {
				t.Errorf("cash = %s, want 9200", cash)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithinTransaction() unexpected error: %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT cash FROM users WHERE user_id = \$1 FOR UPDATE`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"cash"}))
		mock.ExpectRollback()

		err := repo.WithinTransaction(context.Background(), func(ctx context.Context) error {
			_, err := repo.LockUserCash(ctx, 9)
			return err
		})
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("WithinTransaction() error = %v, want %v", err, repository.ErrNotFound)
		}
	})
}

func TestAddUserCash(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE users SET cash = cash \+ \$1 WHERE user_id = \$2 RETURNING cash`).
		WithArgs(dec("1050"), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"cash"}).AddRow("10250.0000"))
	mock.ExpectQuery(`UPDATE users SET cash = cash \+ \$1 WHERE user_id = \$2 RETURNING cash`).
		WithArgs(dec("-20000"), int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23514", Message: "violates check constraint"})

	cash, err := repo.AddUserCash(context.Background(), 1, dec("1050"))
	if err != nil {
		t.Fatalf("AddUserCash() unexpected error: %v", err)
	}
	if !cash.Equal(dec("10250")) {
		t.Errorf("cash = %s, want 10250", cash)
	}

	if _, err = repo.AddUserCash(context.Background(), 1, dec("-20000")); err == nil {
		t.Error("AddUserCash() expected check constraint error, got nil")
	}
}
