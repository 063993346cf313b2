package breach

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrInvalidInput matches every *InvalidInputError via errors.Is
	ErrInvalidInput = errors.New("invalid input")

	// ErrAllProvidersUnavailable matches *AllProvidersUnavailableError via errors.Is
	ErrAllProvidersUnavailable = errors.New("all breach providers unavailable")
)

// InvalidInputError reports a lookup rejected before any provider was called
type InvalidInputError struct {
	Input  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ProviderError describes one provider's failure during a lookup. StatusCode
// is zero when no HTTP response was received
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed: rate
// limiting, server errors, timeouts and network failures
func (e *ProviderError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	case e.StatusCode != 0:
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr)
}

// AllProvidersUnavailableError is returned when every configured provider
// failed for a lookup
type AllProvidersUnavailableError struct {
	Errors []*ProviderError
}

func (e *AllProvidersUnavailableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAllProvidersUnavailable, strings.Join(e.Messages(), "; "))
}

func (e *AllProvidersUnavailableError) Is(target error) bool {
	return target == ErrAllProvidersUnavailable
}

// Messages returns one description per failed provider
func (e *AllProvidersUnavailableError) Messages() []string {
	msgs := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		msgs = append(msgs, pe.Error())
	}
	return msgs
}
