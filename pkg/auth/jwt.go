package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opschat/opschat/pkg/apperr"
)

// TokenIssuer signs and validates HS256 access tokens. The token subject
// is the account email.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer creates a token issuer with the given signing secret and
// access token lifetime.
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), expiry: expiry}
}

// Issue signs a token for the given email, expiring after the configured
// lifetime. A positive override replaces the default lifetime.
func (ti *TokenIssuer) Issue(email string, override time.Duration) (string, error) {
	expiry := ti.expiry
	if override > 0 {
		expiry = override
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its subject email. Expired tokens
// report a distinct code so clients can prompt for re-login.
func (ti *TokenIssuer) Parse(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Unauthorized(apperr.CodeTokenExpired, "token has expired")
		}
		return "", apperr.Unauthorized(apperr.CodeInvalidCredentials, "could not validate credentials")
	}

	if claims.Subject == "" {
		return "", apperr.Unauthorized(apperr.CodeInvalidCredentials, "could not validate credentials")
	}
	return claims.Subject, nil
}
