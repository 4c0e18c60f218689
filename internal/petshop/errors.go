package petshop

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport means no HTTP response was received.
	ErrTransport = errors.New("backend unreachable")
	// ErrNotFound is matched by APIError values with status 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is matched by APIError values with status 401.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response. Message is the backend's own explanation
// taken from the "error" or "detail" body field, empty when absent.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend http %d", e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// Message returns the backend message carried by err, if any.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{Status: status, Message: extractMessage(body)}
}

// extractMessage reads "error" first, then "detail". Either may be a string
// or something else JSON; non-strings are rendered compactly.
func extractMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"error", "detail"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		if text := strings.TrimSpace(string(raw)); text != "" && text != "null" {
			return text
		}
	}
	return ""
}
