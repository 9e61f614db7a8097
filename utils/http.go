package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the body of every error reply. Error is the class implied
// by the status; Code is the domain reason clients branch on, such as
// token_revoked or session_not_found.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

var errorClasses = map[int]string{
	http.StatusBadRequest:         "bad_request",
	http.StatusUnauthorized:       "unauthorized",
	http.StatusForbidden:          "forbidden",
	http.StatusNotFound:           "not_found",
	http.StatusMethodNotAllowed:   "method_not_allowed",
	http.StatusConflict:           "conflict",
	http.StatusTooManyRequests:    "rate_limit_exceeded",
	http.StatusServiceUnavailable: "service_unavailable",
}

var defaultMessages = map[int]string{
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "Access forbidden",
	http.StatusNotFound:            "Resource not found",
	http.StatusMethodNotAllowed:    "Method not allowed",
	http.StatusTooManyRequests:     "Rate limit exceeded",
	http.StatusInternalServerError: "Internal server error",
	http.StatusServiceUnavailable:  "Service temporarily unavailable",
}

// ErrorClass names the error class of an HTTP status. Unknown statuses are
// reported as internal errors.
func ErrorClass(status int) string {
	if class, ok := errorClasses[status]; ok {
		return class
	}
	return "internal_error"
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteCreated writes a 201 Created response with optional data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes the error envelope. An empty message falls back to the
// status default. A 401 always carries a Bearer challenge.
func WriteError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) error {
	if message == "" {
		message = defaultMessages[status]
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	return WriteJSON(w, status, ErrorResponse{
		Error:   ErrorClass(status),
		Code:    code,
		Message: message,
		Details: details,
	})
}

// WriteBadRequest writes a 400 with per-field details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusBadRequest, "invalid_input", message, details)
}

// WriteUnauthorized writes a 401. code says why the credential was refused.
func WriteUnauthorized(w http.ResponseWriter, code, message string) error {
	return WriteError(w, http.StatusUnauthorized, code, message, nil)
}

// WriteForbidden writes a 403 for an authenticated caller lacking a role
func WriteForbidden(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteNotFound writes a 404
func WriteNotFound(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// RateLimitStatus is the state of the caller's window as reported to it
type RateLimitStatus struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up so a client honouring it never
// retries inside the window
func (s RateLimitStatus) RetryAfterSeconds() int {
	secs := int((s.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// SetRateLimitHeaders reports the window in X-RateLimit-* headers
func SetRateLimitHeaders(w http.ResponseWriter, s RateLimitStatus) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(s.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(s.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(s.ResetAt.Unix(), 10))
}

// WriteTooManyRequests rejects a caller that exhausted its window. It sets
// the X-RateLimit-* and Retry-After headers and echoes them in the body.
func WriteTooManyRequests(w http.ResponseWriter, s RateLimitStatus) error {
	retry := s.RetryAfterSeconds()
	SetRateLimitHeaders(w, s)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	return WriteError(w, http.StatusTooManyRequests, "rate_limited", "", map[string]interface{}{
		"limit":       s.Limit,
		"retry_after": retry,
	})
}
