package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotDiscovered = errors.New("api root not discovered")
	ErrNoLink        = errors.New("record has no link")
	ErrSocketClosed  = errors.New("socket closed")
	ErrReconnect     = errors.New("reconnect attempts exhausted")
)

// APIError is a non-2xx response from the board API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// NotFound reports whether the API answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err carries a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// FetchError reports a failed single-record fetch. Err is usually an
// *APIError carrying the response.
type FetchError struct {
	Model string
	Key   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Model, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
