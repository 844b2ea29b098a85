package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a token
// refresh. Stored credentials have been cleared and the user must log in again.
var ErrSessionExpired = errors.New("session expired, login required")

// ErrNilClient is returned by services built without a client.
var ErrNilClient = errors.New("client is nil")

// APIError is a non-2xx backend response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Errors  []string // field-level validation messages, "field: message"
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Errors) > 0 {
		msg = msg + ": " + strings.Join(e.Errors, "; ")
	}
	return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.Status, msg)
}

// ValidationError is raised before a request is sent when input fails the
// client-side presence and range checks.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsClientError reports whether err is a 4xx response or a client-side
// validation failure.
func IsClientError(err error) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	status := StatusCode(err)
	return status >= 400 && status < 500
}

// UserMessage returns the text a view should show for err: the backend
// message or validation list when present, otherwise err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return strings.Join(vErr.Errors, "\n")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Errors) > 0 {
			return strings.Join(apiErr.Errors, "\n")
		}
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
	}
	return err.Error()
}

type errorBody struct {
	Message string          `json:"message"`
	Title   string          `json:"title"`
	Detail  string          `json:"detail"`
	Errors  json.RawMessage `json:"errors"`
}

func parseAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return apiErr
	}

	var payload errorBody
	if err := json.Unmarshal(body, &payload); err != nil {
		// Plain-text bodies are used verbatim.
		apiErr.Message = trimmed
		return apiErr
	}
	switch {
	case payload.Message != "":
		apiErr.Message = payload.Message
	case payload.Detail != "":
		apiErr.Message = payload.Detail
	default:
		apiErr.Message = payload.Title
	}
	apiErr.Errors = flattenErrors(payload.Errors)
	return apiErr
}

// flattenErrors accepts either ["msg", ...] or {"field": ["msg", ...]}.
func flattenErrors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var byField map[string][]string
	if err := json.Unmarshal(raw, &byField); err != nil {
		return nil
	}
	fields := make([]string, 0, len(byField))
	for field := range byField {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var out []string
	for _, field := range fields {
		for _, msg := range byField[field] {
			out = append(out, field+": "+msg)
		}
	}
	return out
}
