package authapi

import (
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
)

// ResponseError is a non-2xx answer from the auth service.
type ResponseError struct {
	StatusCode int
	Detail     string
}

func (e *ResponseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("auth service responded %d", e.StatusCode)
	}
	return fmt.Sprintf("auth service responded %d: %s", e.StatusCode, e.Detail)
}

// Unwrap lets callers match rejections with errors.Is(err, ErrInvalidCredentials).
func (e *ResponseError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ErrInvalidCredentials
	default:
		return apperrors.ErrUpstream
	}
}

// StatusCode returns the upstream status carried by err, or fallback when err did not come from a response.
func StatusCode(err error, fallback int) int {
	var respErr *ResponseError
	if apperrors.As(err, &respErr) && respErr.StatusCode != 0 {
		return respErr.StatusCode
	}
	return fallback
}

// Detail returns the upstream problem detail carried by err, or fallback.
func Detail(err error, fallback string) string {
	var respErr *ResponseError
	if apperrors.As(err, &respErr) && respErr.Detail != "" {
		return respErr.Detail
	}
	return fallback
}
