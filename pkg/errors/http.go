package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/status"
)

// ToHTTPStatus는 에러 코드를 HTTP 상태 코드로 변환합니다
func ToHTTPStatus(code string) int {
	httpStatus, _ := GetCodeMapping(code)
	return httpStatus
}

// ToHTTPError는 에러를 Echo HTTP 에러로 변환합니다.
// 내부 원인은 응답에 포함하지 않고 공개 메시지만 내보냅니다.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	if echoErr, ok := err.(*echo.HTTPError); ok {
		return echoErr
	}

	var coded Error
	if As(err, &coded) {
		msg := http.StatusText(ToHTTPStatus(coded.Code()))
		var appErr *AppError
		if As(err, &appErr) {
			msg = appErr.Message()
		}
		return echo.NewHTTPError(ToHTTPStatus(coded.Code()), msg).SetInternal(err)
	}

	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
}

// ToGRPCError는 에러를 gRPC status 에러로 변환합니다
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	_, grpcCode := GetCodeMapping(code)
	msg := "internal error"
	var appErr *AppError
	if As(err, &appErr) {
		msg = appErr.Message()
	}
	return status.Error(grpcCode, msg)
}

// FromHTTPStatus는 HTTP 상태 코드를 내부 에러 코드로 변환합니다
func FromHTTPStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrInvalidArgument
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrFailedPrecondition
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ErrTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrBadGateway
	case http.StatusNotImplemented:
		return ErrNotImplemented
	default:
		return ErrInternal
	}
}
