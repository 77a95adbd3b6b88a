// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UnsupportedMethodError reports a Request whose method is outside the
// set the Matrix client-server API uses (GET, PUT, DELETE, POST). This
// is a configuration error, not a network error: no HTTP attempt is
// made.
type UnsupportedMethodError struct {
	// Method is the rejected method string as the caller supplied it.
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("messaging: unsupported HTTP method %q (allowed: GET, PUT, DELETE, POST)", e.Method)
}

// RequestError reports a non-2xx, non-429 response from the
// homeserver. It carries the HTTP status code and the raw response
// body text, unparsed even when the body is valid JSON. Callers
// needing the structured Matrix error detail parse it themselves or
// use [MatrixCode] / [IsMatrixCode].
type RequestError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Body is the raw response body text.
	Body string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("messaging: request failed with status %d: %s", e.StatusCode, e.Body)
}

// ErrRetryBudgetExceeded is returned by Send when the cumulative
// rate-limit suspension for one logical call exceeds the client's
// MaxRetryWait budget. Only possible when a budget is configured; the
// default behavior honors server-dictated waits indefinitely.
var ErrRetryBudgetExceeded = errors.New("messaging: rate-limit retry budget exceeded")

// Standard Matrix error codes, as carried in the errcode field of
// error response bodies.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
	ErrCodeRoomInUse     = "M_ROOM_IN_USE"
)

// MatrixCode extracts the Matrix error code (e.g., "M_NOT_FOUND") from
// a RequestError's raw body. Returns the empty string when err is not
// a RequestError or its body is not a standard Matrix error object.
func MatrixCode(err error) string {
	var requestErr *RequestError
	if !errors.As(err, &requestErr) {
		return ""
	}
	var matrixErr struct {
		Code string `json:"errcode"`
	}
	if json.Unmarshal([]byte(requestErr.Body), &matrixErr) != nil {
		return ""
	}
	return matrixErr.Code
}

// IsMatrixCode reports whether err is a RequestError whose body
// carries the given Matrix error code.
func IsMatrixCode(err error, code string) bool {
	return MatrixCode(err) == code
}
