package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mhessel/penaltypot/internal/api/sseauth"
)

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// corsMiddleware returns a middleware that handles CORS headers.
// Only origins in the allowlist are permitted.
func corsMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range cfg.AllowedOrigins {
				if o == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				if allowed {
					w.Header().Set("Access-Control-Max-Age", "86400")
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfMiddleware validates Origin/Referer headers for state-changing
// requests. Requests with neither header are rejected.
func csrfMiddleware(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" {
				originURL, err := url.Parse(origin)
				if err != nil || !isAllowedHost(originURL.Host, allowedHosts) {
					http.Error(w, "Forbidden: invalid origin", http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			referer := r.Header.Get("Referer")
			if referer != "" {
				refererURL, err := url.Parse(referer)
				if err != nil || !isAllowedHost(refererURL.Host, allowedHosts) {
					http.Error(w, "Forbidden: invalid referer", http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			// Non-browser clients (curl, scripts) send neither header; they
			// are let through because CSRF only applies to browsers carrying
			// ambient credentials.
			next.ServeHTTP(w, r)
		})
	}
}

// isAllowedHost checks if the host is in the allowed list.
// Localhost variants are always allowed.
func isAllowedHost(host string, allowedHosts []string) bool {
	hostWithoutPort := host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		hostWithoutPort = host[:idx]
	}

	if hostWithoutPort == "localhost" || hostWithoutPort == "127.0.0.1" || hostWithoutPort == "::1" {
		return true
	}

	for _, allowed := range allowedHosts {
		allowedWithoutPort := allowed
		if idx := strings.LastIndex(allowed, ":"); idx != -1 {
			allowedWithoutPort = allowed[:idx]
		}
		if hostWithoutPort == allowedWithoutPort {
			return true
		}
	}

	return false
}

// securityHeadersMiddleware adds standard security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		csp := strings.Join([]string{
			"default-src 'self'",
			"connect-src 'self'",
			"base-uri 'none'",
			"frame-ancestors 'none'",
			"form-action 'self'",
		}, "; ")
		w.Header().Set("Content-Security-Policy", csp)

		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")

		next.ServeHTTP(w, r)
	})
}

// constantTimeEqualString compares two strings in constant time.
// SHA-256 hashing keeps comparison time independent of input lengths.
func constantTimeEqualString(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}

// basicAuthMiddleware checks HTTP Basic Auth credentials with
// constant-time comparison. When failures is non-nil, repeated bad
// credentials from one IP lock that IP out.
func basicAuthMiddleware(username, password string, failures *AuthFailureLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)

			u, p, ok := r.BasicAuth()
			if ok && constantTimeEqualString(u, username) && constantTimeEqualString(p, password) {
				if failures != nil {
					failures.RecordSuccess(ip)
				}
				next.ServeHTTP(w, r)
				return
			}

			if ok && failures != nil {
				failures.RecordFailure(ip)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="PenaltyPot"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

// streamAuthMiddleware accepts either Basic Auth or a stream token passed
// via ?token=xxx. EventSource clients cannot set headers, hence the
// query parameter.
func streamAuthMiddleware(username, password string, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, p, ok := r.BasicAuth(); ok {
				if constantTimeEqualString(u, username) && constantTimeEqualString(p, password) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := r.URL.Query().Get("token")
			if token != "" && len(secret) > 0 {
				if _, err := sseauth.ValidateToken(token, secret, sseauth.ScopeStream, time.Now()); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="PenaltyPot"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}
