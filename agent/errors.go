package agent

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced to the consumer. Use errors.Is against these
// to branch on failure category; use the wrapping constructors below to
// attach vendor/context detail.
var (
	// ErrAPIError wraps a vendor-originated or protocol-level failure, e.g.
	// a non-2xx HTTP response or a malformed SSE frame.
	ErrAPIError = errors.New("api error")

	// ErrNetworkError wraps a transport failure (dial/read/write/timeout).
	ErrNetworkError = errors.New("network error")

	// ErrConfigError covers unsupported models, empty keys, invalid arguments.
	ErrConfigError = errors.New("config error")

	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrCachingNotSupported  = errors.New("caching not supported")
	ErrToolCallingNotSupported = errors.New("tool calling not supported")

	// ErrChatLoopClosed is returned by SubmitToolResults once the handle is
	// inactive: after Cancel, or after Next has reported that the producer
	// task closed the event stream.
	ErrChatLoopClosed = errors.New("chat loop closed")

	// ErrJSONError wraps local (de)serialization failures.
	ErrJSONError = errors.New("json error")

	// ErrInvalidInput and ErrOperationFailed are used by built-in tools to
	// report malformed arguments versus runtime execution failure.
	ErrInvalidInput    = errors.New("invalid input")
	ErrOperationFailed = errors.New("operation failed")
)

// APIError builds an ErrAPIError-wrapping error carrying vendor detail.
func APIError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAPIError, fmt.Sprintf(format, args...))
}

// NetworkError builds an ErrNetworkError-wrapping error.
func NetworkError(cause error) error {
	return fmt.Errorf("%w: %v", ErrNetworkError, cause)
}

// ConfigError builds an ErrConfigError-wrapping error.
func ConfigError(reason string) error {
	return fmt.Errorf("%w: %s", ErrConfigError, reason)
}

// LoopDetectedError reports an orchestrator-side termination by the loop
// detector.
func LoopDetectedError(suggestion string) error {
	return fmt.Errorf("%w: Loop detected: %s", ErrAPIError, suggestion)
}

// MaxRoundsExceededError reports round-budget exhaustion.
func MaxRoundsExceededError(n int) error {
	return fmt.Errorf("%w: Maximum rounds (%d) exceeded", ErrAPIError, n)
}
