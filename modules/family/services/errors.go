package services

import "fmt"

const (
	CodeStoreUnavailable = "FAMILY_STORE_UNAVAILABLE"
	CodeInvalidInput     = "FAMILY_INVALID_INPUT"
	CodeRunFailed        = "FAMILY_RUN_FAILED"
	CodeNotFound         = "FAMILY_NOT_FOUND"
)

var (
	ErrStoreUnavailable = &ServiceError{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrInvalidInput     = &ServiceError{Code: CodeInvalidInput, Message: "invalid input"}
	ErrRunFailed        = &ServiceError{Code: CodeRunFailed, Message: "import run failed"}
	ErrNotFound         = &ServiceError{Code: CodeNotFound, Message: "not found"}
)

type ServiceError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// Is matches any ServiceError carrying the same code.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

func newServiceError(code, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, Cause: cause}
}
