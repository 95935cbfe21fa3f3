package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// AdminOnly returns middleware that verifies the request's JWT and requires
// an "admin" claim. Authorization itself lives with the token issuer; this
// subsystem only checks the capability.
func AdminOnly(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	verifier := jwtauth.Verifier(ja)
	return func(next http.Handler) http.Handler {
		return verifier(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if admin, _ := claims["admin"].(bool); !admin {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// CurrentUserKey returns the authenticated actor's key from the request's
// JWT "sub" claim, or uuid.Nil when the request is anonymous. Upload
// completion tolerates anonymous callers, so a missing or unverifiable token
// is not an error here.
func CurrentUserKey(ctx context.Context) uuid.UUID {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return uuid.Nil
	}
	sub, _ := claims["sub"].(string)
	key, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil
	}
	return key
}
