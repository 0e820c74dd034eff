package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/spa-booking/internal/identity"
)

func signedActorToken(t *testing.T, secret string, claims ActorClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(5 * time.Minute))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serveWithActor(t *testing.T, mw func(http.Handler) http.Handler, token string) (identity.Actor, int) {
	t.Helper()
	var got identity.Actor
	req := httptest.NewRequest(http.MethodGet, "/bookings/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = identity.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return got, rec.Code
}

func TestAuthenticateAnonymousWithoutToken(t *testing.T) {
	actor, code := serveWithActor(t, Authenticate("secret", nil), "")
	if code != http.StatusOK || actor != identity.Anonymous {
		t.Fatalf("expected anonymous pass-through, got %v %d", actor, code)
	}
}

func TestAuthenticateMapsRoles(t *testing.T) {
	cases := []struct {
		name   string
		claims ActorClaims
		want   identity.Actor
	}{
		{"customer default", ActorClaims{Username: "linh"}, identity.Actor{Subject: "linh", Role: identity.RoleCustomer}},
		{"therapist", ActorClaims{Username: "alice", Role: "Therapist"}, identity.Actor{Subject: "alice", Role: identity.RoleTherapist}},
		{"subject fallback", ActorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}, Role: "staff"}, identity.Actor{Subject: "u-1", Role: identity.RoleStaff}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actor, code := serveWithActor(t, Authenticate("secret", nil), signedActorToken(t, "secret", tc.claims))
			if code != http.StatusOK || actor != tc.want {
				t.Fatalf("expected %v, got %v (%d)", tc.want, actor, code)
			}
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong key", "secret", signedActorToken(t, "other", ActorClaims{Username: "linh"})},
		{"gateway role", "secret", signedActorToken(t, "secret", ActorClaims{Username: "x", Role: "gateway"})},
		{"no subject", "secret", signedActorToken(t, "secret", ActorClaims{Role: "customer"})},
		{"expired", "secret", signedActorToken(t, "secret", ActorClaims{
			Username:         "linh",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		})},
		{"auth disabled", "", signedActorToken(t, "secret", ActorClaims{Username: "linh"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, code := serveWithActor(t, Authenticate(tc.secret, nil), tc.token); code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", code)
			}
		})
	}
}
