// Package identity models the authenticated principal supplied by the
// external identity provider. The core never issues or refreshes
// credentials; it only verifies the bearer token handed to it and
// carries the resulting Principal through every store and resolver call.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role strings recognized by the access scope resolver. "cobrador" is
// the legacy alias the deployed tenants still use for field collectors.
const (
	RoleUser       = "user"
	RoleCobrador   = "cobrador"
	RoleSupervisor = "supervisor"
	RoleManager    = "manager"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Principal is the authenticated actor an operation runs on behalf of.
// It is supplied per call and never persisted by the core.
type Principal struct {
	UserID       string
	TenantID     string
	Role         string
	SupervisorID string // empty when the user has no supervisor
}

// Config holds token verification parameters.
type Config struct {
	Secret string
	Issuer string
}

// ErrMissingToken is returned when no bearer token was supplied.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing/validation failures.
var ErrInvalidToken = errors.New("invalid bearer token")

// ParsePrincipal validates an HMAC-signed JWT issued by the identity
// provider and extracts the principal. Issuer and expiry are enforced;
// a token without sub, tenant_id, and role is rejected.
func ParsePrincipal(token string, cfg Config) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	tenantID, _ := claims["tenant_id"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || tenantID == "" || role == "" {
		return nil, ErrInvalidToken
	}
	supervisorID, _ := claims["supervisor_id"].(string)

	return &Principal{
		UserID:       sub,
		TenantID:     tenantID,
		Role:         role,
		SupervisorID: supervisorID,
	}, nil
}
