package http

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	gatekeeper "github.com/layer-3/gatekeeper"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	Logger zerolog.Logger

	// Metrics receives per-request observations when set.
	Metrics RequestObserver

	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer

	ExposeResetToken bool
}

// SetupRouter sets up the Gin router
func SetupRouter(client gatekeeper.Client, cfg RouterConfig) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(RequestMetrics(cfg.Metrics))
	}

	handlers := NewAuthHandlers(client, cfg.ExposeResetToken)

	router.GET("/healthz", Health)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/reset-password-request", handlers.RequestPasswordReset)
		auth.POST("/reset-password", handlers.ResetPassword)
	}

	web3 := router.Group("/api/auth-web3")
	{
		web3.POST("/get-nonce-web3", handlers.Nonce)
		web3.POST("/login-web3", handlers.LoginWithSignature)
	}

	api := router.Group("/api")
	api.Use(AuthMiddleware(client))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
