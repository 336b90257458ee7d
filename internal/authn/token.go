package authn

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/tripvista/travel-platform/internal/config"
)

// Token types distinguish the two authentication surfaces; a token issued for
// one surface is never honored by the other's gate.
const (
	TokenTypeAdmin       = "admin"
	TokenTypeMiniprogram = "miniprogram"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for issued access tokens.
type Claims struct {
	jwt.RegisteredClaims

	UserID    uint64 `json:"uid"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"typ"`
}

// TokenCodec issues and validates HS256 access tokens.
type TokenCodec struct {
	key    []byte
	issuer string
	expiry time.Duration
}

func NewTokenCodec(cfg config.AuthConfig) *TokenCodec {
	return &TokenCodec{
		key:    signingKey(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		expiry: time.Duration(cfg.JWTExpiryHours) * time.Hour,
	}
}

// signingKey stretches short secrets to the 32 bytes HS256 requires.
func signingKey(secret string) []byte {
	if len(secret) >= 32 {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Issue creates a signed token of the given type for a user.
func (c *TokenCodec) Issue(tokenType string, userID uint64, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiry)),
		},
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, returning its claims. The signature,
// algorithm, expiry and issuer are all enforced.
func (c *TokenCodec) Validate(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return c.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}

	return &claims, nil
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
