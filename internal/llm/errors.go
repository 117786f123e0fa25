package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrorKind classifies a provider failure. Transient kinds drive router
// fallback; non-retryable kinds abort routing.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindRateLimit      ErrorKind = "rate_limit"
	KindTimeout        ErrorKind = "timeout"
	KindServerFault    ErrorKind = "server_fault"
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Retryable reports whether a failure of this kind should advance the
// router to the next candidate rather than abort.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindServerFault:
		return true
	}
	return false
}

// ProviderError is a classified failure from a provider call.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError extracts a *ProviderError from err, if present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerFault
	default:
		return KindInvalidRequest
	}
}

// wrapTransport classifies an error from the HTTP transport itself.
// Context expiry is a timeout; everything else is treated as a server
// fault so the router moves on to the next candidate.
func wrapTransport(provider, model string, err error) *ProviderError {
	kind := KindServerFault
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Model: model, Kind: kind, Err: err}
}

// readBody drains a response body for inclusion in an error message.
func readBody(resp *http.Response) (string, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(b), err
}

// statusError builds a ProviderError from an HTTP status and response body.
func statusError(provider, model string, status int, body string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Kind:     classifyStatus(status),
		Err:      fmt.Errorf("status %d: %s", status, body),
	}
}
