package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
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
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Extraction and queue errors. Match with errors.Is.
var (
	// ErrExtractionFatal aborts an extraction: no usable name could be produced.
	ErrExtractionFatal = errors.New("extraction failed")
	// ErrProviderUnavailable means retryable provider errors outlasted the retry budget.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	// ErrCapability means the model chain ran out of models able to serve the request.
	ErrCapability = errors.New("no capable model available")
	// ErrParse means no repair strategy produced valid JSON.
	ErrParse = errors.New("unparseable model response")
	// ErrQueueState means a job was not in the state an operation requires.
	ErrQueueState = errors.New("illegal job state transition")
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
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

func UnavailableError(message string) error {
	return status.Error(codes.Unavailable, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

// ToStatus maps a domain error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrQueueState):
		return FailedPreconditionError(err.Error())
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrCapability):
		return UnavailableError(err.Error())
	case errors.Is(err, ErrExtractionFatal), errors.Is(err, ErrParse):
		return status.Error(codes.Aborted, err.Error())
	}
	return InternalError(err.Error())
}
