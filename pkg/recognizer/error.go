package recognizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is an error response from a provider HTTP or WebSocket API.
type APIError struct {
	// HTTPStatus is the HTTP status code, when known.
	HTTPStatus int `json:"-"`

	// Code is the provider's machine-readable error code.
	Code string `json:"code,omitempty"`

	// Message is the provider's error description.
	Message string `json:"message"`

	// RequestID is the provider's request correlation id, when present.
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recognizer: %s (code=%s, http_status=%d, request_id=%s)",
		e.Message, e.Code, e.HTTPStatus, e.RequestID)
}

// IsAuthError reports whether the error is an authentication failure.
func (e *APIError) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsRateLimit reports whether the provider rejected the call for quota.
func (e *APIError) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var e *APIError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// parseAPIError builds an APIError from a non-2xx response body. Providers
// wrap the detail differently; both the flat and the nested form are tried
// before falling back to the raw body.
func parseAPIError(statusCode int, body []byte) error {
	e := &APIError{HTTPStatus: statusCode}

	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		ErrCode   string `json:"err_code"`
		ErrMsg    string `json:"err_msg"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(body, &nested); err == nil {
		switch {
		case nested.Error.Message != "":
			e.Code = nested.Error.Code
			e.Message = nested.Error.Message
		case nested.ErrMsg != "":
			e.Code = nested.ErrCode
			e.Message = nested.ErrMsg
		}
		e.RequestID = nested.RequestID
	}
	if e.Message == "" {
		e.Message = string(body)
	}
	return e
}
