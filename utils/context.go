package utils

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type rqIDKey struct{}

func GetRequestIDFromCtx(ctx context.Context) string {
	rqID, ok := ctx.Value(rqIDKey{}).(string)
	if !ok {
		return ""
	}
	return rqID
}

func WithRequestID(ctx context.Context, rqID string) context.Context {
	return context.WithValue(ctx, rqIDKey{}, rqID)
}

// CreateCtxWithRqID derives a context from the incoming request so that client
// disconnects and server timeouts reach the repository and quote calls.
func CreateCtxWithRqID(c *gin.Context) context.Context {
	rqID, ok := c.Get("rqID")
	if !ok {
		return WithRequestID(c.Request.Context(), uuid.NewString())
	}
	return WithRequestID(c.Request.Context(), rqID.(string))
}

// CreateBackgroundCtxWithRqID is used by scheduled jobs which have no request.
func CreateBackgroundCtxWithRqID(ctx context.Context) context.Context {
	return WithRequestID(ctx, uuid.NewString())
}
