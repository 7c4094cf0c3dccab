package upstream

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a call succeeds with an empty body where
// data is required.
var ErrEmptyResponse = errors.New("empty response body")

// maxSnippet bounds the response body kept in a FetchError.
const maxSnippet = 512

// FetchError describes a failed upstream call. StatusCode is zero when no
// response was received.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
	case e.Body != "":
		return fmt.Sprintf("fetch %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func snippet(body []byte) string {
	if len(body) > maxSnippet {
		return string(body[:maxSnippet]) + "..."
	}
	return string(body)
}
