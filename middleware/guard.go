package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/agentcanvas/agentcanvas"
	"github.com/agentcanvas/agentcanvas/cookie"
	"github.com/agentcanvas/agentcanvas/idtoken"
	"github.com/agentcanvas/agentcanvas/session"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

type sessionContextKey struct{}
type claimsContextKey struct{}

// SessionFromContext returns the envelope stored by RequireSession.
func SessionFromContext(ctx context.Context) (*session.Envelope, bool) {
	env, ok := ctx.Value(sessionContextKey{}).(*session.Envelope)
	return env, ok && env != nil && env.Data != nil
}

// ClaimsFromContext returns the identity token claims stored by RequireIDToken.
func ClaimsFromContext(ctx context.Context) (*idtoken.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*idtoken.Claims)
	return c, ok && c != nil
}

// WithSession stores env in ctx. Exposed for handler tests.
func WithSession(ctx context.Context, env *session.Envelope) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, env)
}

// RequestContext attaches client IP, user agent and a request id. An
// incoming X-Request-ID is kept when it looks sane; otherwise a UUID is
// generated. The id is echoed in the response header.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := agentcanvas.WithRequestID(r.Context(), id)
		ctx = agentcanvas.WithClientIP(ctx, clientIP(r))
		ctx = agentcanvas.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests without a valid session cookie with 401,
// or 503 when the revocation list cannot be consulted.
func RequireSession(engine *agentcanvas.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, agentcanvas.ErrEngineNotReady)
				return
			}
			env, err := engine.Authenticate(r.Context(), cookie.Read(r, cookie.SessionName))
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), env)))
		})
	}
}

// RequireSuperAdmin passes only sessions flagged as super admin.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env, ok := SessionFromContext(r.Context())
		if !ok {
			WriteError(w, agentcanvas.ErrUnauthenticated)
			return
		}
		if !env.Data.IsSuperAdmin {
			WriteError(w, agentcanvas.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOrgAdmin passes super admins and admins of the organization named
// by orgID(r). Roles are checked against the membership cache, not the
// session snapshot.
func RequireOrgAdmin(engine *agentcanvas.Engine, orgID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			env, ok := SessionFromContext(r.Context())
			if !ok {
				WriteError(w, agentcanvas.ErrUnauthenticated)
				return
			}
			if engine == nil {
				WriteError(w, agentcanvas.ErrEngineNotReady)
				return
			}
			if err := engine.AuthorizeOrgAdmin(r.Context(), env.Data, orgID(r)); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIDToken accepts "Authorization: Bearer <identity token>" signed by
// engine and stores the verified claims.
func RequireIDToken(engine *agentcanvas.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, agentcanvas.ErrEngineNotReady)
				return
			}
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, agentcanvas.ErrUnauthenticated)
				return
			}
			claims, err := engine.VerifyIDToken(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps Engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, agentcanvas.ErrUnauthenticated), errors.Is(err, agentcanvas.ErrStateMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, agentcanvas.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, agentcanvas.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, agentcanvas.ErrInvalidRequest), errors.Is(err, agentcanvas.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, agentcanvas.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, agentcanvas.ErrRevocationUnavailable), errors.Is(err, agentcanvas.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a generic JSON error for err. The body never includes
// err's text.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errorCode(status)})
}

func errorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusBadGateway:
		return "upstream_unavailable"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
