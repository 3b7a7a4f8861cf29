package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Fallbacks for the per-client limit when the config leaves it unset.
const (
	DefaultClientRequests = 10
	DefaultClientWindow   = time.Minute
	maxTrackedClients     = 4096
)

// clientLimiter allows each client IP at most requests calls in any sliding
// window. A client's timestamps fall out of the LRU once it stays idle for a
// whole window.
type clientLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	now      func() time.Time
	clients  *expirable.LRU[string, []time.Time]
}

func newClientLimiter(requests int, window time.Duration) *clientLimiter {
	return &clientLimiter{
		requests: requests,
		window:   window,
		now:      time.Now,
		clients:  expirable.NewLRU[string, []time.Time](maxTrackedClients, nil, window),
	}
}

func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	hits, _ := l.clients.Get(client)
	recent := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= l.requests {
		l.clients.Add(client, recent)
		return false
	}
	l.clients.Add(client, append(recent, now))
	return true
}

// exemptFromLimit lists system endpoints that are never throttled.
var exemptFromLimit = map[string]bool{
	"/":              true,
	"/api/v1/health": true,
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromLimit[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		client := clientIP(r)
		if !s.limiter.allow(client) {
			s.log.Warn("rate limit exceeded", "client", client, "path", r.URL.Path)
			respondWithJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:  "Too many requests",
				Detail: "Rate limit exceeded. Try again later.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
