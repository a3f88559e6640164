package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/product-registry/internal/apperror"
)

// contextKey is an unexported type used for context keys in this package.
type contextKey string

const subjectKey contextKey = "subject"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// The access token is read from "Authorization: Bearer <token>", falling back
// to the "token" cookie. A missing token is 401; an expired or invalid one is
// 403. On success the token subject (the user id) is stored in the context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			claims, err := tokens.DecodeAccessToken(raw)
			if err != nil {
				kind := "token_invalid"
				if errors.Is(err, apperror.ErrTokenExpired) {
					kind = "token_expired"
				}
				writeAuthError(w, http.StatusForbidden, kind, err.Error())
				return
			}

			ctx := WithSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSubject returns a copy of ctx carrying the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectKey).(string)
	return id, ok && id != ""
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// kind and message come from fixed strings in this package and apperror, never from the request
	_, _ = w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}`))
}
