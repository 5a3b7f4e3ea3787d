package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, secret, alg string) *TokenService {
	t.Helper()
	tokens, err := NewTokenService([]byte(secret), alg)
	require.NoError(t, err)
	return tokens
}

func TestIssueAndValidate(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			tokens := newTestTokenService(t, "super-secret", alg)

			tok, err := tokens.Issue("user@example.com", time.Hour)
			require.NoError(t, err)

			subject, err := tokens.Validate(tok)
			require.NoError(t, err)
			assert.Equal(t, "user@example.com", subject)
		})
	}
}

func TestNewTokenServiceRejectsUnsupportedAlgorithm(t *testing.T) {
	_, err := NewTokenService([]byte("k"), "RS256")
	assert.Error(t, err)

	_, err = NewTokenService([]byte("k"), "nope")
	assert.Error(t, err)

	_, err = NewTokenService(nil, "HS256")
	assert.Error(t, err)
}

func TestValidateExpired(t *testing.T) {
	tokens := newTestTokenService(t, "secret", "HS256")

	tok, err := tokens.Issue("u1@example.com", -1*time.Second)
	require.NoError(t, err)

	_, err = tokens.Validate(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateWrongSecret(t *testing.T) {
	tok, err := newTestTokenService(t, "right-secret", "HS256").Issue("u2@example.com", time.Hour)
	require.NoError(t, err)

	_, err = newTestTokenService(t, "wrong-secret", "HS256").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateExpiredWithWrongSecretReportsSignature(t *testing.T) {
	tok, err := newTestTokenService(t, "right-secret", "HS256").Issue("u2@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = newTestTokenService(t, "wrong-secret", "HS256").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateOtherAlgorithm(t *testing.T) {
	tok, err := newTestTokenService(t, "secret", "HS512").Issue("u3@example.com", time.Hour)
	require.NoError(t, err)

	_, err = newTestTokenService(t, "secret", "HS256").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateNoneAlgorithm(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u4@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestTokenService(t, "secret", "HS256").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateMalformed(t *testing.T) {
	tokens := newTestTokenService(t, "secret", "HS256")

	for _, tok := range []string{"", "not.a.jwt", "abc", strings.Repeat("x", 64)} {
		_, err := tokens.Validate(tok)
		assert.ErrorIs(t, err, ErrMalformed, tok)
	}
}

func TestValidateMissingSubject(t *testing.T) {
	tokens := newTestTokenService(t, "secret", "HS256")

	tok, err := tokens.Issue("", time.Hour)
	require.NoError(t, err)

	_, err = tokens.Validate(tok)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidateMissingExpiry(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u5@example.com"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestTokenService(t, "secret", "HS256").Validate(tok)
	assert.ErrorIs(t, err, ErrMalformed)
}
