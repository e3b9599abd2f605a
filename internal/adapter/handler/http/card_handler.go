package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/middleware/auth"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"go.uber.org/zap"
)

type SaveCardRequest struct {
	Token       string `json:"token" validate:"required,max=255"`
	MakeDefault bool   `json:"make_default"`
}

type CardHandler struct {
	cards  *usecase.CardService
	logger *zap.Logger
}

func NewCardHandler(cards *usecase.CardService, logger *zap.Logger) *CardHandler {
	return &CardHandler{
		cards:  cards,
		logger: logger,
	}
}

// ListCards handles GET /api/v1/cards.
func (h *CardHandler) ListCards(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}
	ctx := c.Request().Context()

	cards, err := h.cards.ListCards(ctx, user.UserID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to list cards")
	}
	requiresCVV, err := h.cards.RequiresCVV(ctx)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to list cards")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cards":        cards,
		"requires_cvv": requiresCVV,
	})
}

// SaveCard handles POST /api/v1/cards.
func (h *CardHandler) SaveCard(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}
	var req SaveCardRequest
	if err := bindRequest(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid card request")
	}

	card, err := h.cards.SaveCard(c.Request().Context(), provider.CustomerInfo{
		UserID: user.UserID,
		Email:  user.Email,
		Name:   user.Name,
	}, req.Token, req.MakeDefault)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to save card")
	}
	return c.JSON(http.StatusCreated, card)
}

// DeleteCard handles DELETE /api/v1/cards/:id.
func (h *CardHandler) DeleteCard(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}
	if err := h.cards.DeleteCard(c.Request().Context(), user.UserID, c.Param("id")); err != nil {
		return errorResponse(c, h.logger, err, "Failed to delete card")
	}
	return c.NoContent(http.StatusNoContent)
}

// SetDefaultCard handles PUT /api/v1/cards/:id/default.
func (h *CardHandler) SetDefaultCard(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}
	if err := h.cards.SetDefaultCard(c.Request().Context(), user.UserID, c.Param("id")); err != nil {
		return errorResponse(c, h.logger, err, "Failed to set default card")
	}
	return c.NoContent(http.StatusNoContent)
}
