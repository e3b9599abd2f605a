package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"go.uber.org/zap"
)

// maxWebhookBody caps what a provider may post.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhooks *usecase.WebhookService
	logger   *zap.Logger
}

func NewWebhookHandler(webhooks *usecase.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// Handle returns the POST /webhooks/<provider> handler. The raw body is
// passed through untouched so signatures can be checked byte for byte.
func (h *WebhookHandler) Handle(name provider.ProviderType) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
		if err != nil {
			h.logger.Error("Error reading webhook body", zap.String("provider", string(name)), zap.Error(err))
			return errorResponse(c, h.logger, domainerrors.Validation("unreadable body"), "Webhook rejected")
		}
		if len(body) > maxWebhookBody {
			return errorResponse(c, h.logger, domainerrors.Validation("body too large"), "Webhook rejected")
		}

		report, err := h.webhooks.HandleWebhook(c.Request().Context(), string(name), body, c.Request().Header)
		if err != nil {
			return errorResponse(c, h.logger, err, "Webhook rejected")
		}

		h.logger.Debug("Webhook handled",
			zap.String("provider", string(name)),
			zap.Int("events", report.Events),
			zap.Int("applied", report.Applied),
			zap.Int("duplicate", report.Duplicate))
		return c.JSON(http.StatusOK, report)
	}
}
