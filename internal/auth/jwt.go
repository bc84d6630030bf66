package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/erazemk/garderoba/internal/model"
)

// Claims represents the JWT claims carried by an API session.
type Claims struct {
	Identifier string `json:"sub_id"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Session rebuilds the authenticated identity from the claims.
func (c *Claims) Session() model.Session {
	s := model.Session{
		Identifier: c.Identifier,
		Role:       c.Role,
		Name:       c.Name,
		Phone:      c.Phone,
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	return s
}

// DefaultTokenTTL is the default token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// GenerateToken signs a token for session that expires ttl after its
// issue time.
func GenerateToken(secret string, session model.Session, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issued := session.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	claims := Claims{
		Identifier: session.Identifier,
		Role:       session.Role,
		Name:       session.Name,
		Phone:      session.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
