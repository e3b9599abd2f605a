package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/order-payments/internal/middleware/auth"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"go.uber.org/zap"
)

// SettingsSnapshot exposes the effective runtime settings.
type SettingsSnapshot interface {
	All() map[string]interface{}
}

// AdminHandler serves operator routes. Mounted behind auth.RequireRole.
type AdminHandler struct {
	payments *usecase.PaymentService
	settings SettingsSnapshot
	logger   *zap.Logger
}

func NewAdminHandler(payments *usecase.PaymentService, settings SettingsSnapshot, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		payments: payments,
		settings: settings,
		logger:   logger,
	}
}

// ConfirmPayment handles POST /api/v1/admin/payments/:id/confirm.
func (h *AdminHandler) ConfirmPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}
	payment, err := h.payments.ConfirmManualPayment(c.Request().Context(), c.Param("id"), user.UserID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to confirm payment")
	}
	return c.JSON(http.StatusOK, payment)
}

// RefundPayment handles POST /api/v1/admin/payments/:id/refund.
func (h *AdminHandler) RefundPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}
	payment, err := h.payments.RefundPayment(c.Request().Context(), c.Param("id"), user.UserID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to refund payment")
	}
	return c.JSON(http.StatusOK, payment)
}

// ExpirePayments handles POST /api/v1/admin/payments/expire.
func (h *AdminHandler) ExpirePayments(c echo.Context) error {
	expired, err := h.payments.ExpireStalePayments(c.Request().Context())
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to expire payments")
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": expired})
}

// ListProviders handles GET /api/v1/admin/payments/providers, including
// gateways that are configured but switched off.
func (h *AdminHandler) ListProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"providers": h.payments.Availability(c.Request().Context()),
	})
}

// GetSettings handles GET /api/v1/admin/settings.
func (h *AdminHandler) GetSettings(c echo.Context) error {
	if h.settings == nil {
		return c.JSON(http.StatusOK, echo.Map{"settings": map[string]interface{}{}})
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": h.settings.All()})
}
