package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// InferenceTimeoutError means the call exceeded its deadline and was abandoned.
type InferenceTimeoutError struct {
	Model string
	Err   error
}

func (e *InferenceTimeoutError) Error() string {
	return fmt.Sprintf("inference timed out (model %s): %v", e.Model, e.Err)
}

func (e *InferenceTimeoutError) Unwrap() error { return e.Err }

// InferenceUnavailableError means the server could not be reached or the
// model is not available.
type InferenceUnavailableError struct {
	Model      string
	StatusCode int
	Err        error
}

func (e *InferenceUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference unavailable (model %s, status %d): %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference unavailable (model %s): %v", e.Model, e.Err)
}

func (e *InferenceUnavailableError) Unwrap() error { return e.Err }

// MalformedResponseError means the server answered with something that is
// not a chat reply.
type MalformedResponseError struct {
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed inference response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx answer that is neither a timeout nor unavailability.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// Classify maps raw transport errors onto the inference error types. Errors
// that are already typed are returned unchanged.
func Classify(model string, err error) error {
	if err == nil {
		return nil
	}

	var (
		timeoutErr     *InferenceTimeoutError
		unavailableErr *InferenceUnavailableError
		malformedErr   *MalformedResponseError
	)
	if errors.As(err, &timeoutErr) || errors.As(err, &unavailableErr) || errors.As(err, &malformedErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &InferenceTimeoutError{Model: model, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &InferenceTimeoutError{Model: model, Err: err}
	}

	return err
}
