// Package response renders the gateway's JSON bodies. Success bodies are flat
// objects; errors share one envelope. Both carry the request id under "meta".
package response

import (
	"net/http"

	deliverycontext "gateway/internal/delivery/context"

	"github.com/labstack/echo/v4"
)

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID string `json:"request_id"` // Request tracking ID
}

// Meta is embedded by success bodies.
type Meta struct {
	Meta *MetaInfo `json:"meta"`
}

func (m *Meta) setMeta(info *MetaInfo) {
	m.Meta = info
}

// Body is any success body embedding Meta.
type Body interface {
	setMeta(info *MetaInfo)
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Meta
}

// Message is returned by operations without a payload, such as register and logout.
type Message struct {
	Success string `json:"success"`
	Meta
}

// Session describes the caller of a bearer-protected route.
type Session struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Meta
}

// Health is returned by the liveness probe.
type Health struct {
	Status string `json:"status"`
	Meta
}

// ErrorResponse defines the structure for error responses
type ErrorResponse struct {
	Error *ErrorInfo `json:"error"`
	Meta  *MetaInfo  `json:"meta"`
}

// ErrorInfo contains detailed error information
type ErrorInfo struct {
	Code    string `json:"code"`              // Machine-readable error code, e.g., "VALIDATION_FAILED"
	Message string `json:"message"`           // User-friendly error message
	Details any    `json:"details,omitempty"` // Additional error context (only for 4xx errors)
}

// Success writes body with the request id filled in.
func Success(c echo.Context, statusCode int, body Body) error {
	body.setMeta(meta(c))

	return c.JSON(statusCode, body)
}

// Error returns an error response
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	// Details should not be included for 5xx errors or authentication errors
	if statusCode >= http.StatusInternalServerError || statusCode == http.StatusUnauthorized {
		details = nil
	}
	if s, ok := details.(string); ok && s == "" {
		details = nil
	}

	return c.JSON(statusCode, ErrorResponse{
		Error: &ErrorInfo{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
		Meta: meta(c),
	})
}

func meta(c echo.Context) *MetaInfo {
	return &MetaInfo{RequestID: deliverycontext.GetRequestID(c)}
}
