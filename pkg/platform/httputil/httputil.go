// Package httputil centralizes domain error translation to HTTP responses.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	dErrors "careergate/pkg/domain-errors"
)

// ErrorResponse is the JSON error body shape shared by all endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Field            string `json:"field,omitempty"`
	TimeLeftSeconds  int    `json:"time_left_seconds,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and JSON body. Internal
// errors omit the description so storage details never leak to clients.
// Rate-limit errors additionally set a Retry-After header.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if code == "" {
		code = dErrors.CodeInternal
	}

	body := ErrorResponse{Error: string(code)}
	if domainErr := dErrors.AsError(err); domainErr != nil {
		if code != dErrors.CodeInternal {
			body.ErrorDescription = domainErr.Message
		}
		body.Field = domainErr.Field
		body.TimeLeftSeconds = domainErr.TimeLeftSeconds
		if code == dErrors.CodeRateLimited && domainErr.TimeLeftSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(domainErr.TimeLeftSeconds))
		}
	}

	WriteJSON(w, dErrors.HTTPStatus(code), body)
}
