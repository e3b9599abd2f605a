package errors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/wekeepgrowing/order-payments/pkg/errors"
)

// Sentinel kinds. Match with errors.Is; PaymentError wraps them with context.
var (
	ErrValidation         = errors.New("validation error")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrPaymentInProgress  = errors.New("payment already in progress")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrCardNotFound       = errors.New("saved card not found")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrProviderError      = errors.New("payment provider error")
	ErrInvariantViolation = errors.New("illegal payment state transition")
	ErrSandboxOnly        = errors.New("operation only available in sandbox mode")
	ErrFeatureUnsupported = errors.New("feature not supported by provider")
)

// PaymentError carries a kind, a message safe to show to clients, and the
// underlying cause.
type PaymentError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *PaymentError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Code maps the kind to a pkg/errors code so the transport layers can
// derive HTTP and gRPC statuses.
func (e *PaymentError) Code() string {
	return codeFor(e.Kind)
}

// PublicMessage is what clients see. Signature and invariant failures
// never expose detail.
func (e *PaymentError) PublicMessage() string {
	switch e.Kind {
	case ErrInvalidSignature:
		return "invalid signature"
	case ErrInvariantViolation:
		return "payment state conflict"
	case ErrProviderError:
		return "payment provider unavailable"
	}
	return e.Message
}

func codeFor(kind error) string {
	switch kind {
	case ErrValidation, ErrUnsupportedMethod, ErrFeatureUnsupported:
		return pkgerrors.ErrInvalidArgument
	case ErrPaymentInProgress:
		return pkgerrors.ErrConflict
	case ErrOrderNotFound, ErrPaymentNotFound, ErrCardNotFound:
		return pkgerrors.ErrNotFound
	case ErrInvalidSignature:
		return pkgerrors.ErrUnauthenticated
	case ErrInvariantViolation:
		return pkgerrors.ErrFailedPrecondition
	case ErrSandboxOnly:
		return pkgerrors.ErrForbidden
	case ErrProviderError:
		return pkgerrors.ErrBadGateway
	}
	return pkgerrors.ErrInternal
}

func newError(kind error, cause error, format string, args ...interface{}) *PaymentError {
	return &PaymentError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...interface{}) *PaymentError {
	return newError(ErrValidation, nil, format, args...)
}

func UnsupportedMethod(method string) *PaymentError {
	return newError(ErrUnsupportedMethod, nil, "no enabled gateway for method %q", method)
}

func PaymentInProgress(orderID string) *PaymentError {
	return newError(ErrPaymentInProgress, nil, "order %s already has a payment in progress", orderID)
}

func RefundInProgress(paymentID string) *PaymentError {
	return newError(ErrPaymentInProgress, nil, "payment %s already has a refund in progress", paymentID)
}

func OrderNotFound(orderID string) *PaymentError {
	return newError(ErrOrderNotFound, nil, "order %s not found", orderID)
}

func PaymentNotFound(ref string) *PaymentError {
	return newError(ErrPaymentNotFound, nil, "payment %s not found", ref)
}

func CardNotFound(cardID string) *PaymentError {
	return newError(ErrCardNotFound, nil, "card %s not found", cardID)
}

func InvalidSignature(provider string, cause error) *PaymentError {
	return newError(ErrInvalidSignature, cause, "%s webhook signature rejected", provider)
}

func ProviderFailure(provider string, cause error) *PaymentError {
	return newError(ErrProviderError, cause, "%s request failed", provider)
}

func InvariantViolation(paymentID string, from, to string) *PaymentError {
	return newError(ErrInvariantViolation, nil, "payment %s cannot move from %s to %s", paymentID, from, to)
}

// AttemptMismatch reports a provider attempt that cannot be reconciled
// because the payment already settled through another attempt.
func AttemptMismatch(paymentID, boundID, externalID string) *PaymentError {
	return newError(ErrInvariantViolation, nil, "payment %s is settled by provider id %s, not %s", paymentID, boundID, externalID)
}

func SandboxOnly(operation string) *PaymentError {
	return newError(ErrSandboxOnly, nil, "%s is disabled outside sandbox mode", operation)
}

func FeatureUnsupported(provider, feature string) *PaymentError {
	return newError(ErrFeatureUnsupported, nil, "%s does not support %s", provider, feature)
}

// ToAppError converts any error into a pkg/errors AppError, keeping the
// public message and hiding internals.
func ToAppError(err error) *pkgerrors.AppError {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pkgerrors.NewAppError(pe.Code(), pe.PublicMessage(), err)
	}
	var app *pkgerrors.AppError
	if errors.As(err, &app) {
		return app
	}
	return pkgerrors.NewAppError(pkgerrors.ErrInternal, "internal error", err)
}
