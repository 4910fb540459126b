package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testConfig = Config{Secret: "test-secret", Issuer: "credisync.identity"}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	if _, ok := claims["iss"]; !ok {
		claims["iss"] = testConfig.Issuer
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestParsePrincipal(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":           "user-1",
		"tenant_id":     "tenant-1",
		"role":          RoleSupervisor,
		"supervisor_id": "boss-1",
	}, testConfig.Secret)

	p, err := ParsePrincipal(token, testConfig)
	if err != nil {
		t.Fatalf("ParsePrincipal() failed: %v", err)
	}
	if p.UserID != "user-1" || p.TenantID != "tenant-1" {
		t.Errorf("principal = %+v, want user-1/tenant-1", p)
	}
	if p.Role != RoleSupervisor {
		t.Errorf("Role = %s, want supervisor", p.Role)
	}
	if p.SupervisorID != "boss-1" {
		t.Errorf("SupervisorID = %s, want boss-1", p.SupervisorID)
	}
}

func TestParsePrincipal_NoSupervisor(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"role":      RoleUser,
	}, testConfig.Secret)

	p, err := ParsePrincipal(token, testConfig)
	if err != nil {
		t.Fatalf("ParsePrincipal() failed: %v", err)
	}
	if p.SupervisorID != "" {
		t.Errorf("SupervisorID = %q, want empty", p.SupervisorID)
	}
}

func TestParsePrincipal_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, jwt.MapClaims{"sub": "u", "tenant_id": "t", "role": RoleUser}, "other-secret")},
		{"wrong issuer", signToken(t, jwt.MapClaims{"sub": "u", "tenant_id": "t", "role": RoleUser, "iss": "someone-else"}, testConfig.Secret)},
		{"expired", signToken(t, jwt.MapClaims{"sub": "u", "tenant_id": "t", "role": RoleUser, "exp": time.Now().Add(-time.Hour).Unix()}, testConfig.Secret)},
		{"missing sub", signToken(t, jwt.MapClaims{"tenant_id": "t", "role": RoleUser}, testConfig.Secret)},
		{"missing tenant", signToken(t, jwt.MapClaims{"sub": "u", "role": RoleUser}, testConfig.Secret)},
		{"missing role", signToken(t, jwt.MapClaims{"sub": "u", "tenant_id": "t"}, testConfig.Secret)},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePrincipal(tt.token, testConfig); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ParsePrincipal() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestParsePrincipal_EmptyToken(t *testing.T) {
	for _, token := range []string{"", "   "} {
		if _, err := ParsePrincipal(token, testConfig); !errors.Is(err, ErrMissingToken) {
			t.Errorf("ParsePrincipal(%q) error = %v, want ErrMissingToken", token, err)
		}
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() = ok on empty context")
	}

	p := &Principal{UserID: "user-1", TenantID: "tenant-1", Role: RoleAdmin}
	ctx := WithPrincipal(context.Background(), p)

	got, ok := FromContext(ctx)
	if !ok || got != p {
		t.Errorf("FromContext() = %v, %v; want original principal", got, ok)
	}
}
