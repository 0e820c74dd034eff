package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/spa-booking/internal/identity"
)

func adminToken(t *testing.T, method jwt.SigningMethod, key any, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// serveAdmin runs one request through AdminJWT and returns the actor seen downstream, if any.
func serveAdmin(t *testing.T, secret, authorization string, upstream identity.Actor) (*httptest.ResponseRecorder, *identity.Actor) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/reports/revenue", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	req = req.WithContext(identity.WithActor(req.Context(), upstream))
	rec := httptest.NewRecorder()

	var seen *identity.Actor
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := identity.ActorFromContext(r.Context())
		seen = &actor
		if _, ok := AdminClaimsFromContext(r.Context()); !ok {
			t.Errorf("expected admin claims in context")
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)
	return rec, seen
}

func TestAdminJWTActor(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{name: "named operator", subject: "ops-lan", want: "ops-lan"},
		{name: "empty subject falls back to admin", subject: "", want: "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := adminToken(t, jwt.SigningMethodHS256, []byte("secret"), tt.subject, 5*time.Minute)
			// a customer resolved by the user auth layer must be replaced, not kept
			rec, seen := serveAdmin(t, "secret", "Bearer "+token, identity.Actor{Subject: "linh", Role: identity.RoleCustomer})
			if rec.Code != http.StatusNoContent {
				t.Fatalf("expected 204, got %d", rec.Code)
			}
			if seen == nil || seen.Subject != tt.want || seen.Role != identity.RoleAdmin {
				t.Fatalf("expected admin actor %q, got %+v", tt.want, seen)
			}
			if !seen.IsAdmin() || !seen.IsStaff() {
				t.Fatalf("admin actor should count as staff and admin: %+v", seen)
			}
			if got := seen.String(); got != "admin:"+tt.want {
				t.Fatalf("expected audit name admin:%s, got %q", tt.want, got)
			}
		})
	}
}

func TestAdminJWTRejects(t *testing.T) {
	valid := adminToken(t, jwt.SigningMethodHS256, []byte("secret"), "ops-lan", 5*time.Minute)
	tests := []struct {
		name          string
		secret        string
		authorization string
	}{
		{name: "admin auth disabled", secret: "", authorization: "Bearer " + valid},
		{name: "no header", secret: "secret"},
		{name: "basic scheme", secret: "secret", authorization: "Basic " + valid},
		{name: "empty bearer", secret: "secret", authorization: "Bearer   "},
		{name: "wrong secret", secret: "secret", authorization: "Bearer " + adminToken(t, jwt.SigningMethodHS256, []byte("wrong"), "ops-lan", 5*time.Minute)},
		{name: "expired", secret: "secret", authorization: "Bearer " + adminToken(t, jwt.SigningMethodHS256, []byte("secret"), "ops-lan", -time.Minute)},
		{name: "unsigned", secret: "secret", authorization: "Bearer " + adminToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, "ops-lan", 5*time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := serveAdmin(t, tt.secret, tt.authorization, identity.Anonymous)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if seen != nil {
				t.Fatalf("handler must not run, saw actor %+v", seen)
			}
		})
	}
}
