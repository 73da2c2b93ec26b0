// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/observability"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// ListResponse is the envelope for paginated collections
type ListResponse struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}

// WriteList writes a paginated collection (200 OK)
func WriteList(w http.ResponseWriter, count int, results interface{}) error {
	return WriteSuccess(w, ListResponse{Count: count, Results: results})
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders err. Validation errors become {"<field>": ["message"]}, other
// domain errors {"error": "message"}. Errors outside the taxonomy are logged and answered
// with a generic 500.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Kind == apperrors.KindInternal {
		observability.FromContext(r.Context()).
			WithError(err).
			WithFields(map[string]interface{}{"method": r.Method, "path": r.URL.Path}).
			Error("request failed")
		WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := StatusFor(appErr.Kind)
	if appErr.Kind == apperrors.KindValidation {
		field := appErr.Field
		if field == "" {
			field = apperrors.NonFieldErrors
		}
		WriteJSON(w, status, map[string][]string{field: {appErr.Message}})
		return
	}

	if appErr.Kind == apperrors.KindUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	WriteErrorMessage(w, status, appErr.Message)
}
