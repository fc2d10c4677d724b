package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// RespondError renders err as the standard error envelope. Unclassified
// errors are logged and reported as INTERNAL_ERROR without detail.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Unhandled error")
		e = apperr.ErrInternal
	} else if e.Status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	WriteJSON(w, e.Status, errorResponse{
		Success: false,
		Error:   e.Code,
		Message: e.Message,
		Errors:  e.Fields,
	})
}

// decodeJSON decodes the request body into v. Unknown fields are ignored.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.ErrPayloadTooLarge
		case errors.Is(err, io.EOF):
			return apperr.ErrInvalidBody.WithMessage("Request body is required")
		default:
			return apperr.ErrInvalidBody.Wrap(err)
		}
	}
	return nil
}
