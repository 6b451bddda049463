package jwtutil

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"tenant-config-service/pkg/config"
)

var (
	secret     = []byte("tenantconfigsecretkey")
	expiration = 24 * time.Hour
)

// Initialize applies the configured signing key and expiration.
func Initialize(cfg *config.JWTConfig) {
	if cfg.SigningKey != "" {
		secret = []byte(cfg.SigningKey)
	}
	if cfg.ExpirationHours > 0 {
		expiration = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// UserClaims represents the JWT claims for a tenant-scoped user session
type UserClaims struct {
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Tier     string `json:"tier"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token carrying the user's tenant context
func GenerateToken(email, tenantID, tier string) (string, error) {
	claims := UserClaims{
		Email:    email,
		TenantID: tenantID,
		Tier:     tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
