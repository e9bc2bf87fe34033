package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/internal/converter/webConverter"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/internal/service"
	"github.com/KotFed0t/papertrade/internal/transport/web/middleware"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	internalErrMsg = "something went wrong, try again later"
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type LedgerService interface {
	ValuePortfolio(ctx context.Context, userID int64) (model.Portfolio, error)
	Buy(ctx context.Context, userID int64, symbol string, shares int) (model.HistoryEntry, error)
	Sell(ctx context.Context, userID int64, symbol string, shares int) (model.HistoryEntry, error)
	Quote(ctx context.Context, symbol string) (model.Quote, error)
	GetHistory(ctx context.Context, userID int64) ([]model.HistoryEntry, error)
	GetPositionSymbols(ctx context.Context, userID int64) ([]string, error)
	ExportHistory(ctx context.Context, userID int64) (fileBytes []byte, fileExtension string, err error)
}

type AuthService interface {
	Register(ctx context.Context, username, password, confirmation string) (int64, error)
	Login(ctx context.Context, username, password string) (int64, error)
	ChangePassword(ctx context.Context, userID int64, current, password, confirmation string) error
}

type Session interface {
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	SetSession(ctx context.Context, sessionID string, session model.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type Controller struct {
	ledgerService     LedgerService
	authService       AuthService
	session           Session
	secureCookie      bool
	sessionExpiration time.Duration
}

func NewController(cfg *config.Config, ledgerService LedgerService, authService AuthService, session Session) *Controller {
	return &Controller{
		ledgerService:     ledgerService,
		authService:       authService,
		session:           session,
		secureCookie:      cfg.HTTP.SecureCookie,
		sessionExpiration: cfg.SessionExpiration,
	}
}

type tradeForm struct {
	Symbol string `form:"symbol"`
	Shares string `form:"shares"`
}

type credentialsForm struct {
	Username     string `form:"username"`
	Password     string `form:"password"`
	Confirmation string `form:"confirmation"`
}

type changePasswordForm struct {
	Current      string `form:"current"`
	Password     string `form:"password"`
	Confirmation string `form:"confirmation"`
}

type quoteForm struct {
	Symbol string `form:"symbol"`
}

// failure maps a service error to the status and message shown to the user.
func failure(err error) (status int, message string) {
	switch {
	case errors.Is(err, service.ErrMissingField):
		return http.StatusBadRequest, "missing field"
	case errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, "shares must be a positive whole number"
	case errors.Is(err, service.ErrUnknownSymbol):
		return http.StatusBadRequest, "invalid symbol"
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient funds"
	case errors.Is(err, service.ErrInsufficientShares):
		return http.StatusBadRequest, "insufficient shares"
	case errors.Is(err, service.ErrPasswordMismatch):
		return http.StatusBadRequest, "passwords don't match"
	case errors.Is(err, service.ErrDuplicateUsername):
		return http.StatusBadRequest, "username already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusForbidden, "invalid username and/or password"
	case errors.Is(err, service.ErrQuoteUnavailable):
		return http.StatusServiceUnavailable, "quote service is unavailable, try again later"
	default:
		return http.StatusInternalServerError, internalErrMsg
	}
}

func page(c *gin.Context, title string) gin.H {
	_, loggedIn := c.Get(middleware.UserIDKey)
	return gin.H{
		"Title":    title,
		"LoggedIn": loggedIn,
		"Message":  "",
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}

func (ctrl *Controller) apologize(c *gin.Context, ctx context.Context, op string, err error) {
	status, message := failure(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("op", op), slog.String("err", err.Error()))
	}
	middleware.Apology(c, status, message)
}

func (ctrl *Controller) Index(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	portfolio, err := ctrl.ledgerService.ValuePortfolio(ctx, userID(c))
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.Index", err)
		return
	}

	data := page(c, "Portfolio")
	data["Portfolio"] = webConverter.PortfolioResponse(portfolio)
	c.HTML(http.StatusOK, "index.html", data)
}

func (ctrl *Controller) BuyForm(c *gin.Context) {
	data := page(c, "Buy")
	data["Symbol"] = ""
	data["Shares"] = ""
	c.HTML(http.StatusOK, "buy.html", data)
}

func (ctrl *Controller) Buy(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	var form tradeForm
	_ = c.ShouldBind(&form)

	renderForm := func(status int, message string) {
		data := page(c, "Buy")
		data["Symbol"] = form.Symbol
		data["Shares"] = form.Shares
		data["Message"] = message
		c.HTML(status, "buy.html", data)
	}

	shares, status, message := parseTrade(form)
	if status != 0 {
		renderForm(status, message)
		return
	}

	_, err := ctrl.ledgerService.Buy(ctx, userID(c), form.Symbol, shares)
	if err != nil {
		status, message = failure(err)
		if status == http.StatusInternalServerError {
			slog.Error("got error from ledgerService.Buy", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		renderForm(status, message)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) SellForm(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	symbols, err := ctrl.ledgerService.GetPositionSymbols(ctx, userID(c))
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.SellForm", err)
		return
	}

	data := page(c, "Sell")
	data["Symbols"] = symbols
	data["Symbol"] = ""
	data["Shares"] = ""
	c.HTML(http.StatusOK, "sell.html", data)
}

func (ctrl *Controller) Sell(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	var form tradeForm
	_ = c.ShouldBind(&form)

	renderForm := func(status int, message string) {
		symbols, err := ctrl.ledgerService.GetPositionSymbols(ctx, userID(c))
		if err != nil {
			ctrl.apologize(c, ctx, "Controller.Sell", err)
			return
		}
		data := page(c, "Sell")
		data["Symbols"] = symbols
		data["Symbol"] = form.Symbol
		data["Shares"] = form.Shares
		data["Message"] = message
		c.HTML(status, "sell.html", data)
	}

	shares, status, message := parseTrade(form)
	if status != 0 {
		renderForm(status, message)
		return
	}

	_, err := ctrl.ledgerService.Sell(ctx, userID(c), form.Symbol, shares)
	if err != nil {
		status, message = failure(err)
		if status == http.StatusInternalServerError {
			slog.Error("got error from ledgerService.Sell", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		renderForm(status, message)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// parseTrade validates the raw form; a non-zero status means the form is rejected.
func parseTrade(form tradeForm) (shares int, status int, message string) {
	if strings.TrimSpace(form.Symbol) == "" {
		return 0, http.StatusBadRequest, "missing symbol"
	}

	raw := strings.TrimSpace(form.Shares)
	if raw == "" {
		return 0, http.StatusBadRequest, "missing shares"
	}

	shares, err := strconv.Atoi(raw)
	if err != nil || shares <= 0 {
		return 0, http.StatusBadRequest, "shares must be a positive whole number"
	}

	return shares, 0, ""
}

func (ctrl *Controller) History(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	entries, err := ctrl.ledgerService.GetHistory(ctx, userID(c))
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.History", err)
		return
	}

	data := page(c, "History")
	data["History"] = webConverter.HistoryResponse(entries)
	c.HTML(http.StatusOK, "history.html", data)
}

func (ctrl *Controller) ExportHistory(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	fileBytes, fileExtension, err := ctrl.ledgerService.ExportHistory(ctx, userID(c))
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.ExportHistory", err)
		return
	}

	filename := "history_" + time.Now().Format("2006-01-02") + fileExtension
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxMimeType, fileBytes)
}

func (ctrl *Controller) QuoteForm(c *gin.Context) {
	c.HTML(http.StatusOK, "quote.html", page(c, "Quote"))
}

func (ctrl *Controller) Quote(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	var form quoteForm
	_ = c.ShouldBind(&form)

	if strings.TrimSpace(form.Symbol) == "" {
		middleware.Apology(c, http.StatusBadRequest, "missing symbol")
		return
	}

	quote, err := ctrl.ledgerService.Quote(ctx, form.Symbol)
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.Quote", err)
		return
	}

	data := page(c, "Quoted")
	data["Quote"] = webConverter.QuoteResponse(quote)
	c.HTML(http.StatusOK, "quoted.html", data)
}

func (ctrl *Controller) LoginForm(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	ctrl.clearSession(c, ctx)
	c.HTML(http.StatusOK, "login.html", page(c, "Log In"))
}

func (ctrl *Controller) Login(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	ctrl.clearSession(c, ctx)

	var form credentialsForm
	_ = c.ShouldBind(&form)

	if strings.TrimSpace(form.Username) == "" {
		middleware.Apology(c, http.StatusForbidden, "must provide username")
		return
	}

	if form.Password == "" {
		middleware.Apology(c, http.StatusForbidden, "must provide password")
		return
	}

	id, err := ctrl.authService.Login(ctx, form.Username, form.Password)
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.Login", err)
		return
	}

	if err = ctrl.startSession(c, ctx, id); err != nil {
		ctrl.apologize(c, ctx, "Controller.Login", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) Logout(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	ctrl.clearSession(c, ctx)
	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) RegisterForm(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", page(c, "Register"))
}

func (ctrl *Controller) Register(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	var form credentialsForm
	_ = c.ShouldBind(&form)

	switch {
	case strings.TrimSpace(form.Username) == "":
		middleware.Apology(c, http.StatusBadRequest, "missing username")
		return
	case form.Password == "":
		middleware.Apology(c, http.StatusBadRequest, "missing password")
		return
	case form.Password != form.Confirmation:
		middleware.Apology(c, http.StatusBadRequest, "passwords don't match")
		return
	}

	id, err := ctrl.authService.Register(ctx, form.Username, form.Password, form.Confirmation)
	if err != nil {
		ctrl.apologize(c, ctx, "Controller.Register", err)
		return
	}

	if err = ctrl.startSession(c, ctx, id); err != nil {
		ctrl.apologize(c, ctx, "Controller.Register", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) ChangePasswordForm(c *gin.Context) {
	c.HTML(http.StatusOK, "changepw.html", page(c, "Change Password"))
}

func (ctrl *Controller) ChangePassword(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	var form changePasswordForm
	_ = c.ShouldBind(&form)

	switch {
	case form.Current == "":
		middleware.Apology(c, http.StatusForbidden, "missing current password")
		return
	case form.Password == "":
		middleware.Apology(c, http.StatusForbidden, "missing password")
		return
	case form.Password != form.Confirmation:
		middleware.Apology(c, http.StatusForbidden, "passwords don't match")
		return
	}

	err := ctrl.authService.ChangePassword(ctx, userID(c), form.Current, form.Password, form.Confirmation)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.Apology(c, http.StatusForbidden, "wrong current password")
			return
		}
		ctrl.apologize(c, ctx, "Controller.ChangePassword", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) NotFound(c *gin.Context) {
	middleware.Apology(c, http.StatusNotFound, "not found")
}

func (ctrl *Controller) startSession(c *gin.Context, ctx context.Context, id int64) error {
	sessionID := uuid.NewString()

	err := ctrl.session.SetSession(ctx, sessionID, model.Session{UserID: id})
	if err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, sessionID, int(ctrl.sessionExpiration.Seconds()), "/", "", ctrl.secureCookie, true)

	return nil
}

func (ctrl *Controller) clearSession(c *gin.Context, ctx context.Context) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	sessionID, err := c.Cookie(middleware.SessionCookie)
	if err != nil || sessionID == "" {
		return
	}

	if err = ctrl.session.DeleteSession(ctx, sessionID); err != nil {
		slog.Error("got error from session.DeleteSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ctrl.secureCookie, true)
}
