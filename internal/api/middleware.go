package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"classbook/internal/metrics"
	"classbook/internal/models"

	"golang.org/x/time/rate"
)

const sessionCookie = "classbook_session"

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := normalizePath(r.URL.Path)
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// normalizePath collapses numeric path segments so the metric label stays
// low-cardinality.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	rps      float64
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 5
	}
	return &clientLimiter{rps: rps, burst: burst}
}

func (l *clientLimiter) allow(key string) bool {
	if l.rps <= 0 {
		return true
	}
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter).Allow()
	}
	return lim.Allow()
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

// currentSession resolves the session cookie; returns nil when the request
// carries no valid session.
func (s *Server) currentSession(r *http.Request) *models.Session {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := s.sessions.GetSession(r.Context(), cookie.Value)
	if err != nil {
		s.logger.Error().Err(err).Msg("session lookup failed")
		return nil
	}
	return session
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.currentSession(r)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, withSession(r, session))
	}
}

type sessionKey struct{}

func withSession(r *http.Request, session *models.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionKey{}, session))
}

func sessionFrom(r *http.Request) *models.Session {
	session, _ := r.Context().Value(sessionKey{}).(*models.Session)
	return session
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r).Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}
