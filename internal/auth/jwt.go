package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AppMetadata is the server-controlled part of a Supabase user.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims follows the Supabase access token layout: the user id is in sub.
type Claims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// GenerateJWT issues a token in the same shape Supabase does. Used by tests and
// internal tooling; end users get their tokens from Supabase auth.
// If expiration <= 0, 1h is used.
func GenerateJWT(secret string, userID uuid.UUID, email, appRole string, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = time.Hour
	}

	now := time.Now()
	claims := Claims{
		Email:       email,
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: appRole},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{"authenticated"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	return claims, nil
}
