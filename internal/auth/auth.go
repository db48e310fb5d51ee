package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every token payengine signs and required on every
// token it accepts.
const Issuer = "payengine"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify an API caller. An empty EmployerID grants access to every
// employer; otherwise the caller is scoped to that employer's paychecks.
type Claims struct {
	UserID     string `json:"uid"`
	EmployerID string `json:"eid,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// User is the request-scoped view of the claims.
func (c Claims) User() UserContext {
	return UserContext{UserID: c.UserID, EmployerID: c.EmployerID, Role: c.Role}
}

type UserContext struct {
	UserID     string
	EmployerID string
	Role       string
}

// CanAccessEmployer reports whether the caller may act on employerID.
func (u UserContext) CanAccessEmployer(employerID string) bool {
	return u.EmployerID == "" || u.EmployerID == employerID
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token signed with secret. Tokens without an
// expiry, from another issuer or without a user are rejected.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing uid or role", ErrInvalidToken)
	}
	return claims, nil
}
