// Package transport contains the HTTP router, middleware chain, and all
// request handlers the console UI talks to. Every body, success or failure,
// uses the normalized response shape.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrUnauthorized:       http.StatusUnauthorized,
	model.ErrForbidden:          http.StatusForbidden,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrValidationError:    http.StatusUnprocessableEntity,
	model.ErrApplicationError:   http.StatusBadRequest,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrBackendUnavailable: http.StatusBadGateway,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteData wraps data in a successful response envelope.
func WriteData[T any](w http.ResponseWriter, status int, data T) {
	WriteJSON(w, status, model.Response[T]{
		Data:       data,
		Message:    "",
		Success:    true,
		StatusCode: status,
	})
}

// StatusFor returns the HTTP status an error is reported with. Application
// errors keep the status the backend gave them.
func StatusFor(ee *model.ErrorEnvelope) int {
	if ee.Code == model.ErrApplicationError && ee.Status >= 400 && ee.Status < 600 {
		return ee.Status
	}
	if status := statusForCode[ee.Code]; status != 0 {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBody builds the failure envelope for err. Anything that is not an
// *ErrorEnvelope is reported as an internal error.
func ErrorBody(r *http.Request, err error) model.ErrorResponse {
	ee, ok := model.AsErrorEnvelope(err)
	if !ok {
		ee = model.NewInternalError()
	}
	status := StatusFor(ee)
	traceID := ee.TraceID
	if traceID == "" && r != nil {
		traceID = observability.TraceIDFromContext(r.Context())
	}
	return model.ErrorResponse{
		Message:    ee.Message,
		Success:    false,
		StatusCode: status,
		Code:       ee.Code,
		Errors:     ee.Details,
		TraceID:    traceID,
	}
}

// WriteError writes err as a failure envelope with the matching status.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody(r, err)
	WriteJSON(w, body.StatusCode, body)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, model.NewNotFoundError(msg))
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, model.NewForbiddenError(msg))
}

// WriteValidationError writes a 422 error response with field-level details
// and a summary message.
func WriteValidationError(w http.ResponseWriter, r *http.Request, msg string, details []model.FieldError) {
	WriteError(w, r, model.NewValidationError(msg, details))
}
