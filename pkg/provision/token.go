package provision

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSigningKeyMissing is returned when a token is requested before its
// signing key has a value.
var ErrSigningKeyMissing = errors.New("signing key missing")

// MintToken returns an HS256 token carrying role, issuer, issued-at and expiry
// claims. An empty key is an error, never an unsigned or empty token.
func MintToken(key, role, issuer string, now time.Time, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: cannot mint %s token", ErrSigningKeyMissing, role)
	}
	claims := jwt.MapClaims{
		"role": role,
		"iss":  issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", role, err)
	}
	return signed, nil
}

// TokenRole verifies token against key and returns its role claim.
func TokenRole(token, key string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	role, _ := claims["role"].(string)
	return role, nil
}
