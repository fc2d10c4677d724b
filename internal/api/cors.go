package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/rs/zerolog/log"
)

// OriginMatcher decides whether a browser origin may call the API. Patterns
// are exact origins or contain a single "*" wildcard, e.g.
// "https://*.traderlibrary.com".
type OriginMatcher struct {
	patterns []string
}

// NewOriginMatcher creates a matcher for the given patterns.
func NewOriginMatcher(patterns []string) *OriginMatcher {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			cleaned = append(cleaned, strings.ToLower(p))
		}
	}
	return &OriginMatcher{patterns: cleaned}
}

// Allowed reports whether origin matches one of the patterns.
func (m *OriginMatcher) Allowed(origin string) bool {
	origin = strings.ToLower(origin)
	for _, p := range m.patterns {
		if p == "*" || p == origin {
			return true
		}
		prefix, suffix, ok := strings.Cut(p, "*")
		if ok && len(origin) > len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// corsHandler configures go-chi/cors with the matcher and records blocked
// origins as security events.
func corsHandler(m *OriginMatcher, events services.EventServiceProvider) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if m.Allowed(origin) {
				return true
			}
			log.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("Blocked CORS request")
			if events != nil {
				if err := events.CreateEvent(r.Context(), services.EventBlockedOrigin, "warn", "Blocked origin: "+origin, nil); err != nil {
					log.Warn().Err(err).Msg("Failed to record blocked origin")
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
