package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

func exemptFromTrafficControl(path string) bool {
	return path == "/healthz" || path == "/metrics"
}

func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(max(1, int(1/rps)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromTrafficControl(r.URL.Path) || limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", retryAfter)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	})
}

// backpressureMiddleware admits at most maxInFlight concurrent requests.
// A request that cannot get a slot within wait is rejected with 503.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromTrafficControl(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case slots <- struct{}{}:
		case <-timer.C:
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is overloaded, retry later"})
			return
		case <-r.Context().Done():
			return
		}
		defer func() { <-slots }()

		next.ServeHTTP(w, r)
	})
}
