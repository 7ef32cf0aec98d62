package web

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coastalkoffix/webapp/internal/domain"
	"github.com/coastalkoffix/webapp/pkg/logger"
)

// RequireAuth gates protected pages: an unauthenticated caller is redirected
// to /login. On success the resolved user rides along in the context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := h.resolveSessionUser(r)
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RedirectAuthenticated keeps logged-in users off anonymous-only pages.
func (h *Handlers) RedirectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.resolveSessionUser(r) != nil {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveSessionUser returns the user owning a valid session cookie, or nil.
// A cookie pointing at a vanished user counts as anonymous.
func (h *Handlers) resolveSessionUser(r *http.Request) *domain.User {
	c, err := r.Cookie(h.cfg.Session.CookieName)
	if err != nil {
		return nil
	}

	userID, err := h.sessions.Get(r.Context(), c.Value)
	if err != nil {
		return nil
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load session user", "error", err, "user_id", userID)
		return nil
	}

	return user
}

// RateLimit throttles an endpoint per client IP. Fail open: a limiter error
// never blocks the request.
func (h *Handlers) RateLimit(scope string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + getClientIP(r)

			allowed, err := h.limiter.CheckRateLimit(r.Context(), key, requests, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintln(w, "Too many attempts. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
