package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"io"
)

// KeySize is the length of freshly generated keying material in bytes.
const KeySize = 64

// DigestSize is the length of every digest produced by Digest.
const DigestSize = sha512.Size

// ErrEmptyKey is returned when digesting with zero-length keying material.
var ErrEmptyKey = errors.New("empty password keying material")

// NewKey returns fresh random keying material for one identity.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Digest computes the HMAC-SHA512 digest of password under key.
func Digest(key []byte, password string) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(password))
	return mac.Sum(nil), nil
}

// Verify recomputes the digest of password under key and compares it
// against stored in constant time. It returns false, never an error, for a
// mismatch; the only error condition is empty keying material.
func Verify(key []byte, stored []byte, password string) (bool, error) {
	computed, err := Digest(key, password)
	if err != nil {
		return false, err
	}
	return Equal(computed, stored), nil
}

// Equal reports whether two digests are identical. The comparison covers
// the full length of both inputs; a length mismatch is reported as false
// after a dummy self-comparison so the reject path does not short-circuit.
func Equal(computed, stored []byte) bool {
	if len(computed) != len(stored) {
		subtle.ConstantTimeCompare(computed, computed)
		return false
	}
	return subtle.ConstantTimeCompare(computed, stored) == 1
}
