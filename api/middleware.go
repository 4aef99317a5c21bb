package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/harborline/authcore/audit"
)

const sessionCookieName = "authcore_session"

// requestMeta builds the audit metadata for a request.
func (a *API) requestMeta(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IP:        a.clientIP(r),
		UserAgent: r.UserAgent(),
		Method:    r.Method,
		URI:       r.URL.RequestURI(),
	}
}

// sessionToken extracts the presented session token: an Authorization bearer
// token wins, the session cookie is the fallback. Empty when neither is set.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// RateLimitMiddleware caps requests per client IP across the auth endpoints.
// A counter-store failure fails open: losing rate limiting is better than
// losing logins, and the fault is logged either way.
func (a *API) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := a.requestMeta(r)
		allowed, err := a.limiter.Allow(meta.IP+"_auth", a.rateMax, a.rateWindow)
		if err != nil {
			a.audit.Error(r.Context(), "rate limit check failed", err, meta)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			a.audit.Security(r.Context(), audit.EventRateLimited, meta)
			writeError(w, http.StatusTooManyRequests, "too many requests; try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware is the error boundary: a panicking handler is logged
// with its stack under a correlation id, and the client gets only the fixed
// generic message and that id.
func (a *API) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			errorID := uuid.NewString()
			meta := a.requestMeta(r)
			a.audit.Security(r.Context(), audit.EventPanic, meta,
				slog.String("error_id", errorID),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   msgInternalError,
				ErrorID: errorID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the client address. Proxy headers are honored only when
// the direct peer is inside a configured trusted CIDR; otherwise spoofed
// X-Forwarded-For values would defeat the IP lockout.
func (a *API) clientIP(r *http.Request) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)
	if !a.peerTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip, ok := parseIPCandidate(part); ok {
				return ip
			}
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		if ip, ok := parseIPCandidate(xrip); ok {
			return ip
		}
	}
	return remoteIP
}

func (a *API) peerTrusted(remoteIP string) bool {
	if len(a.trustedProxies) == 0 || remoteIP == "" {
		return false
	}
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	for _, prefix := range a.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseIPCandidate normalizes a host:port, bracketed, or zoned address into
// a bare IP string.
func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
