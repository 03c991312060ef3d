package auth

import (
	"net/http"
	"strings"
)

// Middleware validates bearer JWTs on API routes. Health and metrics
// endpoints stay open for probes and scrapers.
type Middleware struct {
	secret []byte
	exempt map[string]struct{}
}

// NewMiddleware constructs an auth middleware. An empty secret disables
// authentication entirely, for local development.
func NewMiddleware(secret []byte, exemptPaths ...string) *Middleware {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		exempt[path] = struct{}{}
	}
	return &Middleware{secret: secret, exempt: exempt}
}

// Wrap applies auth to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || len(m.secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		operator := claims.Operator
		if operator == "" {
			operator = claims.Subject
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), operator)))
	})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
