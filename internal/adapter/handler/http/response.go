package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	pkgerrors "github.com/wekeepgrowing/order-payments/pkg/errors"
	"go.uber.org/zap"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domainerrors.Validation("invalid request")
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return domainerrors.Validation("%s", strings.Join(problems, "; "))
}

// bindRequest decodes and validates the body into req.
func bindRequest(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.Validation("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		var pe *domainerrors.PaymentError
		if errors.As(err, &pe) {
			return err
		}
		return domainerrors.Validation("invalid request")
	}
	return nil
}

// errorResponse writes err as {"error", "code"}. Only the public message
// leaves the process; the cause is logged.
func errorResponse(c echo.Context, logger *zap.Logger, err error, msg string) error {
	appErr := domainerrors.ToAppError(err)
	httpErr := pkgerrors.ToHTTPError(appErr)
	pkgerrors.LogError(logger, appErr, msg,
		zap.String("path", c.Path()),
		zap.String("method", c.Request().Method))
	return c.JSON(httpErr.Code, echo.Map{
		"error": httpErr.Message,
		"code":  appErr.Code(),
	})
}
