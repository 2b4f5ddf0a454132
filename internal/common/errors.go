package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/docbatch/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrValidation     = errors.New("validation failed")
	ErrBatchNotFound  = fmt.Errorf("batch %w", ErrNotFound)
	ErrBatchRunning   = errors.New("batch still running")
	ErrSchedulerClose = errors.New("scheduler is shutting down")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// BackendFailure is the typed failure an operation backend reports for one Job.
type BackendFailure struct {
	Kind    constants.FailureKind
	Message string
	Cause   error
}

func (f *BackendFailure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *BackendFailure) Unwrap() error {
	return f.Cause
}

// NewFailure builds a BackendFailure.
func NewFailure(kind constants.FailureKind, message string, cause error) *BackendFailure {
	return &BackendFailure{Kind: kind, Message: message, Cause: cause}
}

// Failuref builds a BackendFailure without a cause.
func Failuref(kind constants.FailureKind, format string, args ...interface{}) *BackendFailure {
	return &BackendFailure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFailure extracts a BackendFailure from err's chain.
func AsFailure(err error) (*BackendFailure, bool) {
	var f *BackendFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func FailedPreconditionError(message string) error {
	return status.Error(codes.FailedPrecondition, message)
}

// ToStatus maps engine errors onto gRPC status errors.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrBatchRunning), errors.Is(err, ErrSchedulerClose):
		return FailedPreconditionError(err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return InternalError(err.Error())
}
