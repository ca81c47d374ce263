package web

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
)

// requireAuth rejects requests with 401 until a credential has been obtained.
func requireAuth(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Check(); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit answers 429 once the shared token bucket is empty.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Error:   "rate_limited",
					Details: "too many requests, slow down",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
