package web

import (
	"embed"
	"html/template"
	"strings"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/internal/transport/web/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

func allowedOrigins(origins []string) []string {
	res := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			res = append(res, origin)
		}
	}
	return res
}

func NewRouter(cfg *config.Config, ctrl *Controller, session Session) (*gin.Engine, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(), middleware.NoCache(), middleware.Timeout(cfg.HTTP.RequestTimeout))

	if origins := allowedOrigins(cfg.HTTP.AllowOrigins); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	router.SetHTMLTemplate(templates)

	router.GET("/login", ctrl.LoginForm)
	router.POST("/login", ctrl.Login)
	router.GET("/logout", ctrl.Logout)
	router.GET("/register", ctrl.RegisterForm)
	router.POST("/register", ctrl.Register)

	protected := router.Group("/")
	protected.Use(middleware.RequireSession(session))
	{
		protected.GET("/", ctrl.Index)
		protected.GET("/buy", ctrl.BuyForm)
		protected.POST("/buy", ctrl.Buy)
		protected.GET("/sell", ctrl.SellForm)
		protected.POST("/sell", ctrl.Sell)
		protected.GET("/quote", ctrl.QuoteForm)
		protected.POST("/quote", ctrl.Quote)
		protected.GET("/history", ctrl.History)
		protected.GET("/history/export", ctrl.ExportHistory)
		protected.GET("/changepw", ctrl.ChangePasswordForm)
		protected.POST("/changepw", ctrl.ChangePassword)
	}

	router.NoRoute(ctrl.NotFound)

	return router, nil
}
