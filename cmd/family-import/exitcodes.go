package main

import (
	"errors"

	"github.com/heshamhussin961-design/family-tree/modules/family/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitNotFound   = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// serviceError picks the exit code for an error returned by the family services.
func serviceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrInvalidInput):
		return withCode(exitValidation, err)
	case errors.Is(err, services.ErrNotFound):
		return withCode(exitNotFound, err)
	case errors.Is(err, services.ErrStoreUnavailable):
		return withCode(exitDB, err)
	case errors.Is(err, services.ErrRunFailed):
		return withCode(exitDBWrite, err)
	default:
		return withCode(exitDB, err)
	}
}
