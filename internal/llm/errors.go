// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"net"
)

// ErrorType categorizes generator errors.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnavailable
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
	ErrTypeEmpty
)

// String returns the metric label of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeUnavailable:
		return "unavailable"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ClientError is returned by providers.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type && t.Cause == nil
}

// Sentinel errors for errors.Is checks.
var (
	ErrUnavailable   = &ClientError{Type: ErrTypeUnavailable, Message: "generator unavailable"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "generation timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrEmptyAnswer   = &ClientError{Type: ErrTypeEmpty, Message: "generator returned no text"}
)

// Reason returns the metric label for err.
func Reason(err error) string {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout.String()
	}
	return ErrTypeUnknown.String()
}

// transportError maps an HTTP transport failure onto a ClientError.
func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &ClientError{Type: ErrTypeTimeout, Message: "generation timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeUnavailable, Message: "generator unavailable", Cause: err}
}
