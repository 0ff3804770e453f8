package clients

import (
	"errors"
	"fmt"
)

// FetchError is returned when the results endpoint cannot be read. StatusCode
// is 0 when the request never got a response.
type FetchError struct {
	Brand      string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[BackendClient] fetch results for %q: %v", e.Brand, e.Err)
	}
	return fmt.Sprintf("[BackendClient] fetch results for %q: status %d: %s", e.Brand, e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubmitError is returned when the backend did not accept an analysis request.
type SubmitError struct {
	Brand      string
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[BackendClient] submit %q: %v", e.Brand, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("[BackendClient] submit %q: status %d", e.Brand, e.StatusCode)
	}
	return fmt.Sprintf("[BackendClient] submit %q: status %d: %s", e.Brand, e.StatusCode, e.Body)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// StatusCode extracts the upstream status from a FetchError or SubmitError.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
