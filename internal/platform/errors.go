package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/postpilot/postpilot/internal/models"
)

// TokenExchangeError carries the platform's rejection payload verbatim.
type TokenExchangeError struct {
	Platform models.Platform
	Message  string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("%s token exchange failed: %s", e.Platform, e.Message)
}

// PublishError classifies a failed publish call. Retryable failures are
// rate limits and transient upstream errors; auth failures additionally
// disable the account.
type PublishError struct {
	Platform  models.Platform
	Message   string
	Retryable bool
	Auth      bool
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s publish failed: %s", e.Platform, e.Message)
}

// IsRetryable reports whether err may succeed on a later attempt.
// Unclassified errors (network, timeouts) are treated as transient.
func IsRetryable(err error) bool {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// IsAuthError reports whether err indicates invalid or revoked credentials.
func IsAuthError(err error) bool {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Auth
	}
	return false
}

func classifyResponse(p models.Platform, status int, body []byte) *PublishError {
	pe := &PublishError{
		Platform: p,
		Message:  fmt.Sprintf("status %d: %s", status, body),
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Auth = true
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		pe.Retryable = true
	}
	return pe
}

func notImplemented(p models.Platform, what string) *PublishError {
	return &PublishError{Platform: p, Message: what + " is not supported"}
}
