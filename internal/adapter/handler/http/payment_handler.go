package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/middleware/auth"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"go.uber.org/zap"
)

// OrderPaymentRequest is the body shared by every payment creation route.
type OrderPaymentRequest struct {
	OrderID     string          `json:"order_id" validate:"required,max=64"`
	Amount      decimal.Decimal `json:"amount"`
	CardToken   string          `json:"card_token,omitempty" validate:"omitempty,max=255"`
	SavedCardID string          `json:"saved_card_id,omitempty" validate:"omitempty,max=255"`
	PayerEmail  string          `json:"payer_email,omitempty" validate:"omitempty,email"`
	PayerName   string          `json:"payer_name,omitempty" validate:"omitempty,max=120"`
	PayerTaxID  string          `json:"payer_tax_id,omitempty" validate:"omitempty,max=18"`
	ReturnURL   string          `json:"return_url,omitempty" validate:"omitempty,url"`
}

// CreatePaymentRequest lets the caller pick the method and optionally pin
// a provider.
type CreatePaymentRequest struct {
	OrderPaymentRequest
	Method   string `json:"method" validate:"required,oneof=card wallet pix cash"`
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=stripe mercadopago pix cash"`
}

// PaymentResponse is what payers see. Provider payloads stay internal.
type PaymentResponse struct {
	ID           string               `json:"id"`
	OrderID      string               `json:"order_id"`
	Method       entity.PaymentMethod `json:"method"`
	Status       entity.PaymentStatus `json:"status"`
	Provider     string               `json:"provider"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     string               `json:"currency"`
	QRPayload    string               `json:"qr_payload,omitempty"`
	RedirectURL  string               `json:"redirect_url,omitempty"`
	ClientSecret string               `json:"client_secret,omitempty"`
	ErrorCode    string               `json:"error_code,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	ApprovedAt   *time.Time           `json:"approved_at,omitempty"`
	RefundedAt   *time.Time           `json:"refunded_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func toPaymentResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID,
		OrderID:      p.OrderID,
		Method:       p.Method,
		Status:       p.Status,
		Provider:     p.Provider,
		Amount:       p.Amount,
		Currency:     p.Currency,
		QRPayload:    p.QRPayload,
		RedirectURL:  p.RedirectURL,
		ClientSecret: p.ClientSecret,
		ErrorCode:    p.ErrorCode,
		ErrorMessage: p.ErrorMessage,
		ExpiresAt:    p.ExpiresAt,
		ApprovedAt:   p.ApprovedAt,
		RefundedAt:   p.RefundedAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type PaymentHandler struct {
	payments *usecase.PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// CreatePayment handles POST /api/v1/payments.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req CreatePaymentRequest
	if err := bindRequest(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid payment request")
	}
	return h.process(c, req.OrderPaymentRequest, entity.PaymentMethod(req.Method), provider.ProviderType(req.Provider))
}

// CreateStripeIntent handles POST /api/v1/payments/stripe/intent.
func (h *PaymentHandler) CreateStripeIntent(c echo.Context) error {
	return h.processFor(c, entity.PaymentMethodCard, provider.ProviderTypeStripe)
}

// CreateMercadoPagoPreference handles POST /api/v1/payments/mercadopago/preference.
func (h *PaymentHandler) CreateMercadoPagoPreference(c echo.Context) error {
	return h.processFor(c, entity.PaymentMethodWallet, provider.ProviderTypeMercadoPago)
}

// CreatePixCharge handles POST /api/v1/payments/pix.
func (h *PaymentHandler) CreatePixCharge(c echo.Context) error {
	return h.processFor(c, entity.PaymentMethodPix, provider.ProviderTypePix)
}

func (h *PaymentHandler) processFor(c echo.Context, method entity.PaymentMethod, name provider.ProviderType) error {
	var req OrderPaymentRequest
	if err := bindRequest(c, &req); err != nil {
		return errorResponse(c, h.logger, err, "Invalid payment request")
	}
	return h.process(c, req, method, name)
}

func (h *PaymentHandler) process(c echo.Context, req OrderPaymentRequest, method entity.PaymentMethod, name provider.ProviderType) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}

	payment, err := h.payments.ProcessPayment(c.Request().Context(), usecase.ProcessPaymentRequest{
		OrderID:     req.OrderID,
		Method:      method,
		Amount:      req.Amount,
		Provider:    name,
		CardToken:   req.CardToken,
		SavedCardID: req.SavedCardID,
		PayerEmail:  req.PayerEmail,
		PayerName:   req.PayerName,
		PayerTaxID:  req.PayerTaxID,
		ReturnURL:   req.ReturnURL,
	}, user.UserID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to process payment")
	}

	h.logger.Debug("Payment processed",
		zap.String("user_id", user.UserID),
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)))

	return c.JSON(http.StatusCreated, toPaymentResponse(payment))
}

// GetPayment handles GET /api/v1/payments/:id.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), c.Param("id"), user.UserID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to get payment")
	}
	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}

// ListOrderPayments handles GET /api/v1/orders/:orderId/payments, newest
// attempt last.
func (h *PaymentHandler) ListOrderPayments(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}

	payments, err := h.payments.ListOrderPayments(c.Request().Context(), c.Param("orderId"), user.UserID)
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to list order payments")
	}

	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_id": c.Param("orderId"),
		"payments": out,
	})
}

// ListMethods handles GET /api/v1/payments/methods.
func (h *PaymentHandler) ListMethods(c echo.Context) error {
	available := make([]provider.Availability, 0)
	for _, a := range h.payments.Availability(c.Request().Context()) {
		if a.Available {
			available = append(available, a)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"providers": available})
}

// SimulatePayment handles POST /api/v1/payments/simulate/:orderId. The
// service refuses outside sandbox mode.
func (h *PaymentHandler) SimulatePayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return errorResponse(c, h.logger, err, "Authentication required")
	}

	payment, err := h.payments.SimulatePaymentConfirmation(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return errorResponse(c, h.logger, err, "Failed to simulate payment")
	}

	h.logger.Info("Payment confirmation simulated",
		zap.String("user_id", user.UserID),
		zap.String("payment_id", payment.ID))
	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}
