package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/isdelr/traderlibrary-be/internal/api/handlers"
	"github.com/isdelr/traderlibrary-be/internal/apperr"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket that
// allows max requests per window, refilled evenly.
type RateLimiter struct {
	name   string
	limit  rate.Limit
	burst  int
	window time.Duration
	events services.EventServiceProvider
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter creates a limiter. name identifies it in logs and events.
func NewRateLimiter(name string, max int, window time.Duration, events services.EventServiceProvider) *RateLimiter {
	if max < 1 {
		max = 1
	}
	return &RateLimiter{
		name:     name,
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		window:   window,
		events:   events,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether a request from ip may proceed and, if not, how long
// until the next token is available.
func (l *RateLimiter) Allow(ip string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, l.window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep removes visitors idle for longer than idle.
func (l *RateLimiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the limit with RATE_LIMIT_EXCEEDED.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, retry := l.Allow(ip)
		if !ok {
			log.Warn().Str("limiter", l.name).Str("remote_ip", ip).Str("path", r.URL.Path).Msg("Rate limit exceeded")
			if l.events != nil {
				if err := l.events.CreateEvent(r.Context(), services.EventRateLimited, "warn", "Rate limit exceeded ("+l.name+") on "+r.URL.Path, nil); err != nil {
					log.Warn().Err(err).Msg("Failed to record rate limit event")
				}
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			handlers.RespondError(w, r, apperr.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
