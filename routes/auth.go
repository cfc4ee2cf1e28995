package routes

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"postrelay/logger"
	"postrelay/models"
	"postrelay/utils"
)

type claimsKey struct{}

// verifyJWT verifies the bearer token of the request and returns the claims
func (a *App) verifyJWT(r *http.Request) (*models.WebhookClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header required")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	return utils.VerifyWebhookJWT(token, utils.VerifyConfig{
		SecretKey:      []byte(a.Settings.WebhookSecret),
		ExpectedIssuer: a.Settings.WebhookIssuer,
		ClockSkew:      time.Minute,
	})
}

// requireToken enforces the bearer token when WEBHOOK_JWT_SECRET is set.
func (a *App) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Settings.WebhookSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.verifyJWT(r)
		if err != nil {
			logger.Warnf("Rejected %s %s from %s: %v", r.Method, r.URL.Path, r.RemoteAddr, err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func claimsFrom(ctx context.Context) *models.WebhookClaims {
	c, _ := ctx.Value(claimsKey{}).(*models.WebhookClaims)
	return c
}

// tokenAllows reports whether the request's token may act for profile. An
// unscoped token, or no token when auth is off, allows every profile.
func tokenAllows(r *http.Request, profile string) bool {
	claims := claimsFrom(r.Context())
	return claims == nil || claims.Profile == "" || claims.Profile == profile
}

// requireUnscoped rejects tokens restricted to a single profile. Profile and
// credential management needs a site-wide token.
func requireUnscoped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := claimsFrom(r.Context()); claims != nil && claims.Profile != "" {
			logger.Warnf("Token for profile %s used for %s %s", claims.Profile, r.Method, r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
