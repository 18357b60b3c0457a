package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		switch code {
		case "internal":
			message = "internal server error"
		case "storage_unavailable":
			message = "storage temporarily unavailable"
		}
	}
	writeErrorCode(w, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return http.StatusBadRequest, "missing_field"
	case errors.Is(err, domain.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotFoundOrInactive):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "code_space_exhausted"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
