// internal/httpapi/httputil.go

// Package httpapi is the HTTP boundary. Handlers translate requests
// into service calls and StandardErrors into status codes; no domain
// logic lives here.
package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "grant-backend/internal/common/errors"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error *apperrors.StandardError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	writeJSON(w, apperrors.HTTPStatus(stdErr.Code), errorResponse{Error: stdErr})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.NewValidationFailedError("malformed request body: " + err.Error())
	}
	return nil
}
