package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"syscall"
)

// Handle classifies err into the taxonomy. Errors that already are *Error are
// returned unchanged; context entries are added to the details of new errors.
func Handle(err error, defaultMessage string, context map[string]any) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if defaultMessage == "" {
		defaultMessage = "An unexpected error occurred"
	}
	opts := []Option{WithDetails(context), WithCause(err)}

	switch {
	case isTimeout(err):
		return Timeout(orDefault(err.Error(), defaultMessage), opts...)
	case isNetwork(err):
		return Network(orDefault(err.Error(), "Network operation failed"), opts...)
	case isValidation(err):
		return Validation(orDefault(err.Error(), "Invalid data provided"), opts...)
	}

	return New(orDefault(err.Error(), defaultMessage), CodeInternal,
		WithDetail("error_type", fmt.Sprintf("%T", err)),
		WithDetails(context),
		WithCause(err),
	)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetwork(err error) bool {
	var (
		ne    net.Error
		pe    *fs.PathError
		se    *os.SyscallError
		errno syscall.Errno
	)
	return errors.As(err, &ne) || errors.As(err, &pe) || errors.As(err, &se) || errors.As(err, &errno)
}

func isValidation(err error) bool {
	var (
		numErr    *strconv.NumError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	return errors.As(err, &numErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
