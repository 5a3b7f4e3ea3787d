package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrMalformed        = errors.New("token is malformed")
	ErrMissingToken     = errors.New("bearer token is missing")
)

// Claims is the payload of an access token. The subject ("sub") carries
// the account email.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC-signed access tokens.
// It is safe for concurrent use; the signing key never changes after
// construction.
type TokenService struct {
	signingKey []byte
	method     jwt.SigningMethod
}

// NewTokenService creates a TokenService for one of the HMAC algorithms
// (HS256, HS384, HS512).
func NewTokenService(signingKey []byte, algorithm string) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("signing key must not be empty")
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", algorithm)
	}

	return &TokenService{
		signingKey: signingKey,
		method:     method,
	}, nil
}

// Issue returns a signed token for subject that expires after ttl.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tokenString, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// Validate checks the signature and expiry of tokenString and returns its
// subject. The error is one of ErrInvalidSignature, ErrExpired or
// ErrMalformed.
func (s *TokenService) Validate(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != s.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
	)
	if err != nil {
		return "", classify(err)
	}
	if !token.Valid {
		return "", ErrInvalidSignature
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", ErrMalformed
	}

	return claims.Subject, nil
}

func classify(err error) error {
	var validationErr *jwt.ValidationError
	if !errors.As(err, &validationErr) {
		return ErrMalformed
	}

	switch {
	case validationErr.Errors&jwt.ValidationErrorMalformed != 0:
		return ErrMalformed
	case validationErr.Errors&(jwt.ValidationErrorSignatureInvalid|jwt.ValidationErrorUnverifiable) != 0:
		return ErrInvalidSignature
	case validationErr.Errors&jwt.ValidationErrorExpired != 0:
		return ErrExpired
	}

	return ErrMalformed
}
