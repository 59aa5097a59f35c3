package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使 errors.Is(err, errors.New(code, "", nil)) 成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrConfigLoad          = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect     = "DATABASE_CONNECT_ERROR"
	ErrInvalidAddress      = "INVALID_ADDRESS"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrInvalidParams       = "INVALID_PARAMS"
	ErrExplorerUnavailable = "EXPLORER_UNAVAILABLE"
	ErrExplorerProtocol    = "EXPLORER_PROTOCOL_ERROR"
	ErrPersistenceConflict = "PERSISTENCE_CONFLICT"
	ErrPersistence         = "PERSISTENCE_ERROR"
	ErrNotFound            = "NOT_FOUND"
	ErrDispatch            = "DISPATCH_ERROR"
)

// CodeOf 返回错误链中第一个AppError的错误码，没有则返回空串
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode 判断错误链中是否包含指定错误码
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// HTTPStatus 将错误码映射为对外的HTTP状态码
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrInvalidAddress, ErrUnsupportedNetwork:
		return http.StatusBadRequest
	case ErrInvalidParams:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrExplorerUnavailable, ErrExplorerProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 返回可以暴露给调用方的信息，内部错误不透出细节
func PublicMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return "internal server error"
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return appErr.Message
}
