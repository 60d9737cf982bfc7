package auth

import (
	"context"
	"net/http"

	applog "expense-svc/internal/log"
)

// Credential header names. Cookies with the same names are accepted as a fallback.
const (
	HeaderIdentity = "auth_id"
	HeaderSecret   = "auth_token"
)

type ctxKey struct{}

// WithUserID returns a copy of ctx carrying the authenticated owner.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated owner stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Credentials extracts the identity and secret tokens from r.
func Credentials(r *http.Request) (identity, secret string) {
	return credential(r, HeaderIdentity), credential(r, HeaderSecret)
}

func credential(r *http.Request, name string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}

// Middleware gates next behind the authenticator. Requests without both
// tokens are rejected without contacting the identity service. onDeny, if
// set, is called for every rejected request.
func Middleware(a Authenticator, onDeny func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, secret := Credentials(r)
			if identity == "" || secret == "" {
				deny(w, r, onDeny, "missing credentials")
				return
			}
			if !a.Verify(r.Context(), identity, secret) {
				deny(w, r, onDeny, "credentials rejected")
				return
			}

			ctx := WithUserID(r.Context(), identity)
			logger := applog.FromContext(ctx).With(applog.FieldUserID, identity)
			ctx = applog.NewContext(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, onDeny func(), reason string) {
	if onDeny != nil {
		onDeny()
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
		WarnContext(r.Context(), "Request not authenticated", "reason", reason, applog.FieldPath, r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
