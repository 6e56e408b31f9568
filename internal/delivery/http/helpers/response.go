package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"eventsettlement/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeUnauthorized         = "unauthorized"
	ErrCodeForbidden            = "forbidden"
	ErrCodeNotFound             = "not_found"
	ErrCodeInternalError        = "internal_error"
	ErrCodeAlreadyRegistered    = "already_registered"
	ErrCodeNotRegistered        = "not_registered"
	ErrCodeRegistrationClosed   = "registration_closed"
	ErrCodeEventFull            = "event_full"
	ErrCodeFeeMismatch          = "fee_mismatch"
	ErrCodeInvalidPaymentMethod = "invalid_payment_method"
	ErrCodeSignatureInvalid     = "signature_invalid"
	ErrCodePaymentNotConfirmed  = "payment_not_confirmed"
	ErrCodeGatewayUnavailable   = "gateway_unavailable"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Error: nil})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data:  nil,
		Error: &APIError{Code: code, Message: message},
	})
}

// errorMappings is checked in order; the first sentinel err wraps decides the response.
var errorMappings = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{domain.ErrAlreadyRegistered, http.StatusConflict, ErrCodeAlreadyRegistered},
	{domain.ErrNotRegistered, http.StatusNotFound, ErrCodeNotRegistered},
	{domain.ErrRegistrationClosed, http.StatusConflict, ErrCodeRegistrationClosed},
	{domain.ErrEventFull, http.StatusConflict, ErrCodeEventFull},
	{domain.ErrFeeMismatch, http.StatusConflict, ErrCodeFeeMismatch},
	{domain.ErrInvalidPaymentMethod, http.StatusBadRequest, ErrCodeInvalidPaymentMethod},
	{domain.ErrSignatureInvalid, http.StatusBadRequest, ErrCodeSignatureInvalid},
	{domain.ErrPaymentNotConfirmed, http.StatusPaymentRequired, ErrCodePaymentNotConfirmed},
	{domain.ErrGatewayUnavailable, http.StatusBadGateway, ErrCodeGatewayUnavailable},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
}

// WriteServiceError maps a service error onto the envelope. Unknown errors are
// logged and reported as 500 without their details.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.WarnContext(r.Context(), "upstream failure", "path", r.URL.Path, "method", r.Method, "err", err)
			}
			WriteJSONError(w, m.status, m.code, err.Error())
			return
		}
	}
	logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
