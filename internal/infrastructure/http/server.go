package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/wekeepgrowing/order-payments/internal/adapter/handler/http"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/middleware/auth"
	"github.com/wekeepgrowing/order-payments/pkg/logger"
	"go.uber.org/zap"
)

// Handlers groups what the HTTP server routes to.
type Handlers struct {
	Payment *handlers.PaymentHandler
	Webhook *handlers.WebhookHandler
	Card    *handlers.CardHandler
	Admin   *handlers.AdminHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
}

func NewServer(cfg *config.Config, h Handlers, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	logger.WithEchoLogger(e, log)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(logger.NewEchoRequestLogger(log))

	s := &Server{
		config: cfg,
		logger: log,
		echo:   e,
	}
	s.setupRoutes(h)
	return s
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Addr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes(h Handlers) {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
			"version": s.config.Service.Version,
		})
	})
	if h.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	// Provider callbacks authenticate by signature, not JWT.
	webhooks := s.echo.Group("/webhooks")
	webhooks.POST("/stripe", h.Webhook.Handle(provider.ProviderTypeStripe))
	webhooks.POST("/mercadopago", h.Webhook.Handle(provider.ProviderTypeMercadoPago))
	webhooks.POST("/pix", h.Webhook.Handle(provider.ProviderTypePix))

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Issuer: s.config.JWT.Issuer,
		Logger: s.logger,
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public: which payment options to show at checkout
	v1.GET("/payments/methods", h.Payment.ListMethods)

	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	payments := protected.Group("/payments")
	payments.POST("", h.Payment.CreatePayment)
	payments.POST("/stripe/intent", h.Payment.CreateStripeIntent)
	payments.POST("/mercadopago/preference", h.Payment.CreateMercadoPagoPreference)
	payments.POST("/pix", h.Payment.CreatePixCharge)
	payments.POST("/simulate/:orderId", h.Payment.SimulatePayment)
	payments.GET("/:id", h.Payment.GetPayment)

	protected.GET("/orders/:orderId/payments", h.Payment.ListOrderPayments)

	cards := protected.Group("/cards")
	cards.GET("", h.Card.ListCards)
	cards.POST("", h.Card.SaveCard)
	cards.DELETE("/:id", h.Card.DeleteCard)
	cards.PUT("/:id/default", h.Card.SetDefaultCard)

	admin := protected.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/payments/:id/confirm", h.Admin.ConfirmPayment)
	admin.POST("/payments/:id/refund", h.Admin.RefundPayment)
	admin.POST("/payments/expire", h.Admin.ExpirePayments)
	admin.GET("/payments/providers", h.Admin.ListProviders)
	admin.GET("/settings", h.Admin.GetSettings)
}
