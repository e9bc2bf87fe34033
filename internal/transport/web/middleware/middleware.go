package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/papertrade/data/session"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookie    = "session_id"
	UserIDKey        = "userID"
	SessionIDKey     = "sessionID"
	ApologyTemplate  = "apology.html"
	LoginPath        = "/login"
	internalErrorMsg = "something went wrong, try again later"
)

type Session interface {
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()

		rqID := uuid.NewString()
		c.Set("rqID", rqID)

		slog.Info(
			"start request",
			slog.String("rqID", rqID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
		)

		defer func() {
			slog.Info(
				"request finished",
				slog.String("rqID", rqID),
				slog.Int("status", c.Writer.Status()),
				slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
			)
		}()

		c.Next()
	}
}

// NoCache keeps browsers from caching pages that show balances.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Expires", "0")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}

func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession resolves the session cookie into a user id, redirecting anonymous visitors to the login page.
func RequireSession(sess Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		sessionID, err := c.Cookie(SessionCookie)
		if err != nil || sessionID == "" {
			c.Redirect(http.StatusSeeOther, LoginPath)
			c.Abort()
			return
		}

		userSession, err := sess.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.Redirect(http.StatusSeeOther, LoginPath)
				c.Abort()
				return
			}
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			Apology(c, http.StatusInternalServerError, internalErrorMsg)
			return
		}

		c.Set(SessionIDKey, sessionID)
		c.Set(UserIDKey, userSession.UserID)
		c.Next()
	}
}

// Apology renders the error page and stops the handler chain.
func Apology(c *gin.Context, status int, message string) {
	_, loggedIn := c.Get(UserIDKey)
	c.HTML(status, ApologyTemplate, gin.H{
		"Title":    "Apology",
		"LoggedIn": loggedIn,
		"Message":  "",
		"Code":     status,
		"Apology":  message,
	})
	c.Abort()
}
