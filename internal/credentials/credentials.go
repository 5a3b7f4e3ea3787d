// Package credentials hashes and verifies account passwords.
//
// Hashes use the modular-crypt layout of passlib's pbkdf2_sha256 scheme:
//
//	$pbkdf2-sha256$<rounds>$<salt>$<checksum>
//
// where salt and checksum are encoded with the "adapted base64" alphabet
// (standard base64, no padding, '+' replaced by '.').
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	schemeIdent = "pbkdf2-sha256"

	DefaultRounds = 29000
	saltSize      = 16
	keySize       = 32
)

var ErrEmptyPassword = errors.New("password must not be empty")

// Store hashes passwords with a fixed number of PBKDF2 rounds.
type Store struct {
	rounds int
}

func New(rounds int) *Store {
	if rounds <= 0 {
		rounds = DefaultRounds
	}

	return &Store{rounds: rounds}
}

// Hash returns a salted hash of password. Two calls with the same
// password produce different strings.
func (s *Store) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("in internal/credentials/credentials.go/Hash(): error while `rand.Read()` calling: %w", err)
	}

	checksum := pbkdf2.Key([]byte(password), salt, s.rounds, keySize, sha256.New)

	return fmt.Sprintf(
		"$%s$%d$%s$%s",
		schemeIdent,
		s.rounds,
		ab64Encode(salt),
		ab64Encode(checksum),
	), nil
}

// Verify reports whether password matches hash. A malformed hash never
// matches.
func (s *Store) Verify(password, hash string) bool {
	rounds, salt, checksum, ok := parse(hash)
	if !ok {
		return false
	}

	candidate := pbkdf2.Key([]byte(password), salt, rounds, len(checksum), sha256.New)

	return subtle.ConstantTimeCompare(candidate, checksum) == 1
}

func parse(hash string) (rounds int, salt, checksum []byte, ok bool) {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != schemeIdent {
		return 0, nil, nil, false
	}

	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return 0, nil, nil, false
	}

	salt, err = ab64Decode(parts[3])
	if err != nil {
		return 0, nil, nil, false
	}

	checksum, err = ab64Decode(parts[4])
	if err != nil || len(checksum) == 0 {
		return 0, nil, nil, false
	}

	return rounds, salt, checksum, true
}

func ab64Encode(data []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(data), "+", ".")
}

func ab64Decode(data string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(data, ".", "+"))
}
