package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNoBackend means no usable backend is configured.
	ErrNoBackend = errors.New("no LLM backend configured")
	// ErrBudgetExhausted means the primary budget is spent and no
	// secondary exists.
	ErrBudgetExhausted = errors.New("primary LLM rate budget exhausted")
)

// RetryableError indicates a transient server-side failure.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// QuotaError wraps a rate-limit or quota rejection from a backend.
type QuotaError struct {
	Backend string
	Err     error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Backend, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// IsQuotaError reports whether err is a rate-limit/quota rejection. Typed
// SDK errors are checked first, then the message (Gemini reports quota as
// RESOURCE_EXHAUSTED text).
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}
	if status := statusCode(err); status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// IsRetryable reports whether a retry of the same call may succeed.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// classify maps an SDK error onto QuotaError or RetryableError where the
// status allows it; other errors are wrapped with the backend name.
func classify(backend string, err error) error {
	if err == nil {
		return nil
	}
	if IsQuotaError(err) {
		return &QuotaError{Backend: backend, Err: err}
	}
	if status := statusCode(err); status >= 500 {
		return fmt.Errorf("%s: %w", backend, &RetryableError{StatusCode: status, Message: err.Error()})
	}
	return fmt.Errorf("%s: %w", backend, err)
}

func statusCode(err error) int {
	var oaAPI *openai.APIError
	if errors.As(err, &oaAPI) {
		return oaAPI.HTTPStatusCode
	}
	var oaReq *openai.RequestError
	if errors.As(err, &oaReq) {
		return oaReq.HTTPStatusCode
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return anErr.StatusCode
	}
	return 0
}
