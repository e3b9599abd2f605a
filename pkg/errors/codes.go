package errors

// 공통 에러 코드 정의
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"

	// 결제 도메인에서 추가로 사용하는 코드
	ErrFailedPrecondition = "FAILED_PRECONDITION" // 상태 전이 불가
	ErrBadGateway         = "BAD_GATEWAY"         // 외부 결제사 장애
	ErrForbidden          = "FORBIDDEN"           // 샌드박스 전용 기능 등
)
