package http

import (
	"errors"
	"net/http"
	"strings"

	"expense-svc/internal/auth"
	applog "expense-svc/internal/log"
	"expense-svc/internal/services"
)

// allowMethods wraps next so that any other method gets a 405 with an Allow header.
func allowMethods(next http.HandlerFunc, methods ...string) http.HandlerFunc {
	allowed := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next(w, r)
				return
			}
		}
		MethodNotAllowedError(allowed).Write(w)
	}
}

// owner returns the authenticated user. Handlers only run behind the auth
// middleware, so a missing owner is a wiring bug and answered with 500.
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler reached without an authenticated user",
			applog.FieldPath, r.URL.Path)
		InternalServerError("internal error").Write(w)
		return "", false
	}
	return id, true
}

// writeServiceError maps service error classes onto status codes. Storage
// failures never leak their cause to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, services.ErrNotFound):
		BadRequestError(services.ErrNotFound.Error()).Write(w)
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Expense request failed", err, applog.ComponentHTTP, op, nil)
		InternalServerError("internal error").Write(w)
	}
}
