package server

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/visibuild/scimitar/internal/observability"
)

// requestContextMiddleware propagates the chi request ID into the
// request context under the service's own key so downstream layers can
// log it without importing chi.
func requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), requestID))
		}
		next.ServeHTTP(w, r)
	})
}

// requestLoggerMiddleware logs every request and records HTTP metrics.
func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}

		logger := observability.WithRequestContext(s.logger,
			observability.RequestIDFromContext(r.Context()), r.Method, r.URL.Path)
		logger.Info().
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, route,
				fmt.Sprintf("%d", ww.Status()), time.Since(start).Seconds())
		}
	})
}

// bearerAuthMiddleware rejects requests lacking the configured bearer
// token. Comparison is constant-time.
func (s *Server) bearerAuthMiddleware() func(http.Handler) http.Handler {
	token := s.cfg.SCIM.BearerToken
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeScimError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientLimiters hands out one token bucket per client address. Entries
// are never evicted; provisioning traffic comes from a handful of
// identity providers, not the open internet.
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiters{
		clients: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (cl *clientLimiters) limiter(client string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	l, ok := cl.clients[client]
	if !ok {
		l = rate.NewLimiter(cl.rps, cl.burst)
		cl.clients[client] = l
	}
	return l
}

// rateLimitMiddleware rejects clients exceeding the configured request
// rate with 429 responses.
func (s *Server) rateLimitMiddleware() func(http.Handler) http.Handler {
	limiters := newClientLimiters(s.cfg.SCIM.RateLimitRPS, s.cfg.SCIM.RateLimitBurst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := r.RemoteAddr
			if host, _, err := net.SplitHostPort(client); err == nil {
				client = host
			}

			if !limiters.limiter(client).Allow() {
				if s.metrics != nil {
					s.metrics.RecordRateLimitRejection()
				}
				writeScimError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
