package credentials

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestHashAndVerify(t *testing.T) {
	store := New(1000)

	hash, err := store.Hash("strongpassword")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$pbkdf2-sha256$1000$"))
	assert.True(t, store.Verify("strongpassword", hash))
	assert.False(t, store.Verify("wrongpassword", hash))
}

func TestHashIsSalted(t *testing.T) {
	store := New(1000)

	first, err := store.Hash("same")
	require.NoError(t, err)
	second, err := store.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashEmptyPassword(t *testing.T) {
	_, err := New(0).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerifyUsesRoundsFromHash(t *testing.T) {
	hash, err := New(1500).Hash("secret")
	require.NoError(t, err)

	assert.True(t, New(DefaultRounds).Verify("secret", hash))
}

func TestVerifyPasslibLayout(t *testing.T) {
	store := New(0)
	salt := []byte("saltsaltsaltsalt")
	checksum := pbkdf2.Key([]byte("password"), salt, 1000, keySize, sha256.New)
	hash := "$pbkdf2-sha256$1000$" + ab64Encode(salt) + "$" + ab64Encode(checksum)

	assert.Equal(t, "c2FsdHNhbHRzYWx0c2FsdA", ab64Encode(salt))

	assert.True(t, store.Verify("password", hash))
	assert.True(t, store.Verify("password", "$pbkdf2-sha256$1000$c2FsdHNhbHRzYWx0c2FsdA$8nX7hwFEzIB8aPajJTYK8weHQc5Ngz0pFVAKvSu4jQA"))
}

func TestVerifyMalformedHash(t *testing.T) {
	store := New(0)

	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "plain text", hash: "password"},
		{name: "other scheme", hash: "$2a$10$abcdefghijklmnopqrstuv"},
		{name: "bad rounds", hash: "$pbkdf2-sha256$abc$c2FsdA$c3VtAA"},
		{name: "zero rounds", hash: "$pbkdf2-sha256$0$c2FsdA$c3VtAA"},
		{name: "bad salt alphabet", hash: "$pbkdf2-sha256$1000$!!!$c3VtAA"},
		{name: "missing checksum", hash: "$pbkdf2-sha256$1000$c2FsdA$"},
		{name: "too many parts", hash: "$pbkdf2-sha256$1000$c2FsdA$c3VtAA$x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, store.Verify("password", tt.hash))
		})
	}
}
