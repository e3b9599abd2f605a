package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/wekeepgrowing/order-payments/internal/usecase"

	errorCodeTimeout        = "provider_timeout"
	errorCodeInvalidRequest = "invalid_request"

	expiryBatchSize = 500
	// a refund claim outlives any provider call; older claims were abandoned
	refundClaimTTL = 5 * time.Minute
)

// errOutcomeUnknown means the provider call did not finish in time; the
// charge may or may not exist.
var errOutcomeUnknown = errors.New("provider outcome unknown")

// ProcessPaymentRequest is the caller's intent to pay one order.
type ProcessPaymentRequest struct {
	OrderID string
	Method  entity.PaymentMethod
	Amount  decimal.Decimal
	// Provider pins a gateway instead of letting the registry choose.
	Provider    provider.ProviderType
	CardToken   string
	SavedCardID string
	PayerEmail  string
	PayerName   string
	PayerTaxID  string
	ReturnURL   string
}

// PaymentService orchestrates payment attempts for orders.
type PaymentService struct {
	payments    repository.PaymentRepository
	orders      repository.OrderRepository
	mappings    repository.CustomerMappingRepository
	registry    *provider.Registry
	settings    repository.SettingsReader
	transitions *Transitioner
	cfg         config.PaymentsConfig
	metrics     PaymentMetrics
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

func NewPaymentService(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	mappings repository.CustomerMappingRepository,
	registry *provider.Registry,
	settings repository.SettingsReader,
	transitions *Transitioner,
	cfg config.PaymentsConfig,
	metrics PaymentMetrics,
	logger *zap.Logger,
) *PaymentService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &PaymentService{
		payments:    payments,
		orders:      orders,
		mappings:    mappings,
		registry:    registry,
		settings:    settings,
		transitions: transitions,
		cfg:         cfg,
		metrics:     metrics,
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPayment starts a payment for an order the user owns. The returned
// payment carries whatever the payer needs next: a QR payload, a redirect
// URL or a client secret.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest, userID string) (*entity.Payment, error) {
	order, err := s.orders.GetOrderWithRelations(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", req.OrderID, err)
	}
	// foreign orders look missing
	if order == nil || !order.BelongsTo(userID) {
		return nil, domainerrors.OrderNotFound(req.OrderID)
	}
	if order.Status != entity.OrderStatusPendingPayment {
		return nil, domainerrors.Validation("order %s is not awaiting payment", order.ID)
	}
	if !req.Method.IsValid() {
		return nil, domainerrors.Validation("unknown payment method %q", req.Method)
	}
	if !req.Amount.Equal(order.Total) {
		return nil, domainerrors.Validation("amount %s does not match order total %s", req.Amount.StringFixed(2), order.Total.StringFixed(2))
	}

	gateway, err := s.selectGateway(ctx, req)
	if err != nil {
		return nil, err
	}

	data := s.paymentData(order, req)
	if req.SavedCardID != "" {
		if data.CustomerID, err = s.vaultCustomer(ctx, gateway, userID, req.SavedCardID); err != nil {
			return nil, err
		}
	}

	payment := &entity.Payment{
		ID:       uuid.NewString(),
		OrderID:  order.ID,
		UserID:   userID,
		Method:   req.Method,
		Status:   entity.PaymentStatusPending,
		Provider: string(gateway.Name()),
		Amount:   order.Total,
		Currency: data.Currency,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, domainerrors.ErrPaymentInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	data.PaymentID = payment.ID
	s.metrics.PaymentCreated(payment.Provider, string(payment.Method), string(payment.Status))

	s.logger.Info("Payment started",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", order.ID),
		zap.String("provider", payment.Provider),
		zap.String("method", string(payment.Method)))

	result, callErr := s.callProvider(ctx, payment, func(callCtx context.Context) (*provider.PaymentResult, error) {
		return gateway.CreatePayment(callCtx, order, req.Amount, data)
	})

	// the outcome must be recorded even if the caller went away
	ctx = context.WithoutCancel(ctx)

	switch {
	case errors.Is(callErr, errOutcomeUnknown):
		// the provider may still have charged; wait for a webhook or an operator
		s.logger.Warn("Provider call timed out, payment left processing",
			zap.String("payment_id", payment.ID),
			zap.String("provider", payment.Provider))
		current, _, err := s.transitions.Apply(ctx, payment, entity.StatusUpdate{
			Status:       entity.PaymentStatusProcessing,
			ErrorCode:    errorCodeTimeout,
			ErrorMessage: "payment confirmation pending",
		}, SourceOrchestrator)
		return current, err
	case callErr != nil:
		s.logger.Error("Payment request refused by gateway",
			zap.String("payment_id", payment.ID),
			zap.Error(callErr))
		if _, _, err := s.transitions.Apply(ctx, payment, entity.StatusUpdate{
			Status:       entity.PaymentStatusRejected,
			ErrorCode:    errorCodeInvalidRequest,
			ErrorMessage: gateway.TranslateError(callErr),
		}, SourceOrchestrator); err != nil {
			s.logger.Error("Failed to release payment", zap.String("payment_id", payment.ID), zap.Error(err))
		}
		return nil, callErr
	}

	return s.recordResult(ctx, payment, result)
}

// recordResult persists what the adapter answered.
func (s *PaymentService) recordResult(ctx context.Context, payment *entity.Payment, result *provider.PaymentResult) (*entity.Payment, error) {
	status := result.Status
	if status == "" {
		status = entity.PaymentStatusPending
	}
	update := entity.StatusUpdate{
		Status:            status,
		ExternalID:        result.ExternalID,
		ProviderReference: result.ProviderReference,
		QRPayload:         result.QRPayload,
		RedirectURL:       result.RedirectURL,
		ClientSecret:      result.ClientSecret,
		ErrorCode:         result.ErrorCode,
		ErrorMessage:      result.Error,
		ExpiresAt:         result.ExpiresAt,
		ProviderData:      result.Raw,
	}

	if status == payment.Status {
		return s.transitions.SaveDetails(ctx, payment, update)
	}
	current, _, err := s.transitions.Apply(ctx, payment, update, SourceOrchestrator)
	if err != nil {
		return current, err
	}
	if !result.Success {
		s.logger.Info("Payment declined",
			zap.String("payment_id", payment.ID),
			zap.String("error_code", result.ErrorCode))
	}
	return current, nil
}

// callProvider runs one adapter call under the provider timeout and a span.
// A call whose context ended is reported as errOutcomeUnknown whatever the
// adapter returned.
func (s *PaymentService) callProvider(
	ctx context.Context,
	payment *entity.Payment,
	call func(ctx context.Context) (*provider.PaymentResult, error),
) (*provider.PaymentResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	callCtx, span := s.tracer.Start(callCtx, "PaymentGateway.CreatePayment", trace.WithAttributes(
		attribute.String("payment.id", payment.ID),
		attribute.String("payment.provider", payment.Provider),
		attribute.String("payment.method", string(payment.Method)),
	))
	defer span.End()

	start := time.Now()
	result, err := call(callCtx)
	s.metrics.ProviderCall(payment.Provider, "create", time.Since(start))

	if callCtx.Err() != nil {
		span.SetStatus(codes.Error, callCtx.Err().Error())
		return nil, errOutcomeUnknown
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if result == nil {
		return nil, domainerrors.ProviderFailure(payment.Provider, errors.New("empty result"))
	}
	span.SetAttributes(attribute.String("payment.status", string(result.Status)))
	return result, nil
}

func (s *PaymentService) selectGateway(ctx context.Context, req ProcessPaymentRequest) (provider.Gateway, error) {
	if req.Provider == "" {
		return s.registry.ForMethod(ctx, req.Method)
	}
	gateway, ok := s.registry.ByName(req.Provider)
	if !ok || !gateway.IsConfigured() || !gateway.IsEnabled(ctx) {
		return nil, domainerrors.UnsupportedMethod(string(req.Method))
	}
	for _, m := range gateway.SupportedMethods() {
		if m == req.Method {
			return gateway, nil
		}
	}
	return nil, domainerrors.UnsupportedMethod(string(req.Method))
}

// vaultCustomer resolves the vault customer that owns savedCardID's wallet.
func (s *PaymentService) vaultCustomer(ctx context.Context, gateway provider.Gateway, userID, savedCardID string) (string, error) {
	if _, ok := provider.Vault(gateway); !ok {
		return "", domainerrors.FeatureUnsupported(string(gateway.Name()), string(provider.FeatureSavedCards))
	}
	mapping, err := s.mappings.GetByUserID(ctx, string(gateway.Name()), userID)
	if err != nil {
		return "", fmt.Errorf("failed to load customer mapping: %w", err)
	}
	if mapping == nil {
		return "", domainerrors.CardNotFound(savedCardID)
	}
	return mapping.ProviderCustomerID, nil
}

func (s *PaymentService) paymentData(order *entity.Order, req ProcessPaymentRequest) *provider.PaymentData {
	data := &provider.PaymentData{
		Method:      req.Method,
		CardToken:   req.CardToken,
		SavedCardID: req.SavedCardID,
		PayerEmail:  req.PayerEmail,
		PayerName:   req.PayerName,
		PayerTaxID:  req.PayerTaxID,
		ReturnURL:   req.ReturnURL,
		Currency:    order.Currency,
		Description: "Order " + order.ID,
	}
	if data.Currency == "" {
		data.Currency = s.cfg.Currency
	}
	if c := order.Customer; c != nil {
		if data.PayerEmail == "" {
			data.PayerEmail = c.Email
		}
		if data.PayerName == "" {
			data.PayerName = c.Name
		}
		if data.PayerTaxID == "" {
			data.PayerTaxID = c.TaxID
		}
	}
	if order.Restaurant != nil && order.Restaurant.Name != "" {
		data.Description = order.Restaurant.Name + " order " + order.ID
	}
	return data
}

// SimulatePaymentConfirmation approves the order's active payment. Only
// available in sandbox mode or when payments.simulation.enabled is set.
func (s *PaymentService) SimulatePaymentConfirmation(ctx context.Context, orderID string) (*entity.Payment, error) {
	if !s.simulationAllowed(ctx) {
		return nil, domainerrors.SandboxOnly("payment simulation")
	}
	payment, err := s.payments.GetActiveByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active payment: %w", err)
	}
	if payment == nil {
		return nil, domainerrors.PaymentNotFound("for order " + orderID)
	}

	s.logger.Warn("Simulating payment confirmation",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", orderID))

	current, _, err := s.transitions.Apply(ctx, payment, entity.StatusUpdate{
		Status: entity.PaymentStatusApproved,
	}, SourceSimulation)
	return current, err
}

func (s *PaymentService) simulationAllowed(ctx context.Context) bool {
	if s.cfg.Sandbox {
		return true
	}
	if s.settings == nil {
		return false
	}
	raw, ok := s.settings.GetSetting(ctx, repository.SettingSimulationEnabled)
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(raw)
	return err == nil && enabled
}

// ConfirmManualPayment approves a pix or cash payment an operator has
// verified out of band.
func (s *PaymentService) ConfirmManualPayment(ctx context.Context, paymentID, actor string) (*entity.Payment, error) {
	payment, gateway, err := s.loadWithGateway(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !gateway.SupportsFeature(provider.FeatureManualConfirmation) {
		return nil, domainerrors.FeatureUnsupported(payment.Provider, string(provider.FeatureManualConfirmation))
	}

	current, applied, err := s.transitions.Apply(ctx, payment, entity.StatusUpdate{
		Status:       entity.PaymentStatusApproved,
		ProviderData: mergeData(payment.ProviderData, map[string]interface{}{"confirmed_by": actor}),
	}, SourceManual)
	if err != nil {
		return current, err
	}
	if !applied && current.Status != entity.PaymentStatusApproved {
		return current, domainerrors.InvariantViolation(payment.ID, string(current.Status), string(entity.PaymentStatusApproved))
	}
	return current, nil
}

// RefundPayment returns the funds of an approved payment. Gateways with a
// refund API are called; the rest are refunded out of band and only
// recorded here.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID, actor string) (*entity.Payment, error) {
	payment, gateway, err := s.loadWithGateway(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case entity.PaymentStatusRefunded:
		return payment, nil
	case entity.PaymentStatusApproved:
	default:
		return payment, domainerrors.InvariantViolation(payment.ID, string(payment.Status), string(entity.PaymentStatusRefunded))
	}

	refunder, automatic := provider.AsRefunder(gateway)
	if !automatic && !gateway.SupportsFeature(provider.FeatureManualConfirmation) {
		return payment, domainerrors.FeatureUnsupported(payment.Provider, string(provider.FeatureRefunds))
	}
	current, claimed, err := s.claimRefund(ctx, payment)
	if !claimed {
		return current, err
	}

	extra := map[string]interface{}{"refunded_by": actor}
	if automatic {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		callCtx, span := s.tracer.Start(callCtx, "PaymentGateway.Refund", trace.WithAttributes(
			attribute.String("payment.id", payment.ID),
			attribute.String("payment.provider", payment.Provider),
		))
		start := time.Now()
		refund, err := refunder.Refund(callCtx, payment, payment.Amount)
		s.metrics.ProviderCall(payment.Provider, "refund", time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()

		if err != nil {
			if rerr := s.payments.ReleaseRefund(ctx, payment.ID); rerr != nil {
				s.logger.Warn("Failed to release refund claim", zap.String("payment_id", payment.ID), zap.Error(rerr))
			}
			s.logger.Error("Refund failed",
				zap.String("payment_id", payment.ID),
				zap.String("provider", payment.Provider),
				zap.Error(err))
			if errors.Is(err, domainerrors.ErrProviderError) {
				return payment, err
			}
			return payment, domainerrors.ProviderFailure(payment.Provider, err)
		}
		extra["refund_id"] = refund.RefundID
	}

	current, _, err = s.transitions.Apply(ctx, payment, entity.StatusUpdate{
		Status:       entity.PaymentStatusRefunded,
		ProviderData: mergeData(payment.ProviderData, extra),
	}, SourceRefund)
	return current, err
}

// claimRefund lets one refund request at a time reach the provider. When
// the claim is lost to a refund that already finished, the refunded payment
// is returned without error.
func (s *PaymentService) claimRefund(ctx context.Context, payment *entity.Payment) (*entity.Payment, bool, error) {
	claimed, err := s.payments.ClaimRefund(ctx, payment.ID, s.now(), refundClaimTTL)
	if err != nil {
		return payment, false, fmt.Errorf("failed to claim refund of payment %s: %w", payment.ID, err)
	}
	if claimed {
		return payment, true, nil
	}

	current, err := s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		return payment, false, fmt.Errorf("failed to reload payment %s: %w", payment.ID, err)
	}
	if current == nil {
		return payment, false, domainerrors.PaymentNotFound(payment.ID)
	}
	switch current.Status {
	case entity.PaymentStatusRefunded:
		return current, false, nil
	case entity.PaymentStatusApproved:
		return current, false, domainerrors.RefundInProgress(payment.ID)
	}
	return current, false, domainerrors.InvariantViolation(current.ID, string(current.Status), string(entity.PaymentStatusRefunded))
}

// ExpireStalePayments moves active payments past expires_at to EXPIRED and
// returns how many it moved.
func (s *PaymentService) ExpireStalePayments(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.payments.List(ctx, entity.PaymentFilter{
		Statuses:      entity.ActiveStatuses(),
		ExpiresBefore: &now,
		Limit:         expiryBatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payments: %w", err)
	}

	expired := 0
	for _, payment := range stale {
		_, applied, err := s.transitions.Apply(ctx, payment, entity.StatusUpdate{
			Status:       entity.PaymentStatusExpired,
			ErrorCode:    "expired",
			ErrorMessage: "payment window elapsed",
		}, SourceExpiry)
		if err != nil {
			s.logger.Error("Failed to expire payment", zap.String("payment_id", payment.ID), zap.Error(err))
			continue
		}
		if applied {
			expired++
		}
	}
	return expired, nil
}

// GetPayment returns a payment its owner asked for.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID, userID string) (*entity.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment %s: %w", paymentID, err)
	}
	if payment == nil || payment.UserID != userID {
		return nil, domainerrors.PaymentNotFound(paymentID)
	}
	return payment, nil
}

// ListOrderPayments returns every attempt for an order, oldest first.
func (s *PaymentService) ListOrderPayments(ctx context.Context, orderID, userID string) ([]*entity.Payment, error) {
	order, err := s.orders.GetOrderWithRelations(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order == nil || !order.BelongsTo(userID) {
		return nil, domainerrors.OrderNotFound(orderID)
	}
	return s.payments.List(ctx, entity.PaymentFilter{OrderID: orderID})
}

// Availability lists gateways and whether they can take payments now.
func (s *PaymentService) Availability(ctx context.Context) []provider.Availability {
	return s.registry.Availability(ctx)
}

func (s *PaymentService) loadWithGateway(ctx context.Context, paymentID string) (*entity.Payment, provider.Gateway, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payment %s: %w", paymentID, err)
	}
	if payment == nil {
		return nil, nil, domainerrors.PaymentNotFound(paymentID)
	}
	gateway, ok := s.registry.ByName(provider.ProviderType(payment.Provider))
	if !ok {
		return nil, nil, fmt.Errorf("payment %s references unknown provider %s", payment.ID, payment.Provider)
	}
	return payment, gateway, nil
}

func mergeData(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
