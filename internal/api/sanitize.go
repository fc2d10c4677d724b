package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/isdelr/traderlibrary-be/internal/api/handlers"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/rs/zerolog/log"
)

// suspiciousPatterns flag script injection, path traversal and common SQL
// injection probes in string values.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`(?i)\bunion\b.+\bselect\b`),
	regexp.MustCompile(`(?i);\s*drop\s+table`),
}

// exemptFields are never pattern-checked; passwords may contain anything.
var exemptFields = map[string]bool{
	"password":        true,
	"currentPassword": true,
	"newPassword":     true,
}

// sanitizeInput rejects JSON bodies carrying operator-style keys ("$gt",
// "a.b") or suspicious string content. Bodies that are not valid JSON are
// passed through for the handler to reject.
func sanitizeInput(events services.EventServiceProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					handlers.RespondError(w, r, apperr.ErrPayloadTooLarge)
					return
				}
				handlers.RespondError(w, r, apperr.ErrInvalidBody.Wrap(err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var doc interface{}
			if len(body) > 0 && json.Unmarshal(body, &doc) == nil {
				if field, reason := inspect("", doc); reason != "" {
					log.Warn().Str("remote_ip", clientIP(r)).Str("path", r.URL.Path).Str("field", field).Msg("Rejected suspicious input")
					if events != nil {
						if err := events.CreateEvent(r.Context(), services.EventSuspiciousInput, "warn",
							"Suspicious input in "+field+" on "+r.URL.Path+": "+reason, nil); err != nil {
							log.Warn().Err(err).Msg("Failed to record suspicious input event")
						}
					}
					handlers.RespondError(w, r, apperr.ErrSuspiciousInput)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// inspect walks a decoded JSON document and returns the first offending
// field path and the reason it was rejected.
func inspect(path string, v interface{}) (string, string) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			p := k
			if path != "" {
				p = path + "." + k
			}
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				return p, "operator key"
			}
			if exemptFields[k] {
				continue
			}
			if field, reason := inspect(p, child); reason != "" {
				return field, reason
			}
		}
	case []interface{}:
		for _, child := range t {
			if field, reason := inspect(path, child); reason != "" {
				return field, reason
			}
		}
	case string:
		for _, re := range suspiciousPatterns {
			if re.MatchString(t) {
				return path, "matched " + re.String()
			}
		}
	}
	return "", ""
}
