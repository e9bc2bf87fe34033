package authService

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/data/repository"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/internal/service"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	InsertUser(ctx context.Context, username, hash string, cash decimal.Decimal) (userID int64, err error)
	GetUserByUsername(ctx context.Context, username string) (user model.User, err error)
	GetUserByID(ctx context.Context, userID int64) (user model.User, err error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) (err error)
}

type AuthService struct {
	repo        Repository
	initialCash decimal.Decimal
	cost        int
}

type Option func(*AuthService)

// WithHashCost overrides the bcrypt cost, mostly useful to speed up tests.
func WithHashCost(cost int) Option {
	return func(s *AuthService) {
		s.cost = cost
	}
}

func New(cfg *config.Config, repo Repository, opts ...Option) *AuthService {
	s := &AuthService{
		repo:        repo,
		initialCash: cfg.Ledger.InitialCash,
		cost:        bcrypt.DefaultCost,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register creates a user funded with the configured initial cash and returns its id.
func (s *AuthService) Register(ctx context.Context, username, password, confirmation string) (int64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.Register"

	username = strings.TrimSpace(username)
	if username == "" || password == "" || confirmation == "" {
		return 0, service.ErrMissingField
	}

	if password != confirmation {
		return 0, service.ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		slog.Error("can't hash password", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	userID, err := s.repo.InsertUser(ctx, username, string(hash), s.initialCash)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return 0, service.ErrDuplicateUsername
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	slog.Info("user registered", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))

	return userID, nil
}

// Login checks the credentials and returns the user id.
func (s *AuthService) Login(ctx context.Context, username, password string) (int64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.Login"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, service.ErrMissingField
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrInvalidCredentials
		}
		slog.Error("got error from repo.GetUserByUsername", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return 0, service.ErrInvalidCredentials
	}

	return user.UserID, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, password, confirmation string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.ChangePassword"

	if current == "" || password == "" || confirmation == "" {
		return service.ErrMissingField
	}

	if password != confirmation {
		return service.ErrPasswordMismatch
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetUserByID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(current)); err != nil {
		return service.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		slog.Error("can't hash password", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = s.repo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		slog.Error("got error from repo.UpdatePasswordHash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("password changed", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))

	return nil
}
