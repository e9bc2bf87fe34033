package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

var ErrNotFound = errors.New("session not found")

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func (r *RedisSession) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	sess := model.Session{}
	if err = json.Unmarshal([]byte(res), &sess); err != nil {
		slog.Error("can't unmarshall session", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, ErrNotFound
	}

	return sess, nil
}

func (r *RedisSession) SetSession(ctx context.Context, sessionID string, sess model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	sessJson, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	err = r.redis.Set(ctx, sessionKeyPrefix+sessionID, sessJson, r.cfg.SessionExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (r *RedisSession) DeleteSession(ctx context.Context, sessionID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	err := r.redis.Del(ctx, sessionKeyPrefix+sessionID).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	return nil
}
