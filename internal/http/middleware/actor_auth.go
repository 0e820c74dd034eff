package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// ActorClaims is the token issued to customers and spa staff by the account service.
type ActorClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Username string `json:"username"`
}

// Actor maps the claims onto a core identity. Gateway and anonymous roles cannot be claimed.
func (c *ActorClaims) Actor() (identity.Actor, bool) {
	subject := strings.TrimSpace(c.Username)
	if subject == "" {
		subject = strings.TrimSpace(c.Subject)
	}
	if subject == "" {
		return identity.Actor{}, false
	}
	role := identity.Role(strings.ToLower(strings.TrimSpace(c.Role)))
	switch role {
	case "", identity.RoleCustomer:
		role = identity.RoleCustomer
	case identity.RoleStaff, identity.RoleTherapist, identity.RoleAdmin:
	default:
		return identity.Actor{}, false
	}
	return identity.Actor{Subject: subject, Role: role}, true
}

// Authenticate derives the request actor from an optional bearer token.
// Requests without a token continue as anonymous; a token that fails verification is rejected.
func Authenticate(secret string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), identity.Anonymous)))
				return
			}
			if secret == "" {
				http.Error(w, `{"error":"auth not configured"}`, http.StatusUnauthorized)
				return
			}
			claims := &ActorClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, hmacKey(secret))
			if err != nil || !token.Valid {
				logger.FromContext(r.Context()).Debug("bearer token rejected", "error", err)
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			actor, ok := claims.Actor()
			if !ok {
				http.Error(w, `{"error":"token carries no usable identity"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}
