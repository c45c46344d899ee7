package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskdeck/taskdeck/pkg/cerr"
)

// Claims is the token payload contract with the external credential issuer:
// sub carries the username, uid the stable user id, role one of admin,
// manager or member.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses an HS256 token into the caller's identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, cerr.NewError(cerr.Unauthenticated, "invalid token", err)
	}
	if claims.Subject == "" {
		return Identity{}, cerr.NewError(cerr.Unauthenticated, "invalid token payload", nil)
	}
	role := Role(claims.Role)
	switch role {
	case RoleAdmin, RoleManager, RoleMember:
	default:
		role = RoleMember
	}
	return Identity{
		UserID:   claims.UserID,
		Username: claims.Subject,
		Role:     role,
	}, nil
}

// Issue creates a signed token for id. Used by tests and local tooling;
// production tokens come from the external issuer.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: id.UserID,
		Role:   string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
