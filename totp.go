package authcore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// RFC 6238 with SHA-1, 30-second steps, six digits. Used only to derive
// the temporary password mailed out by ForgotPassword.
const (
	totpKeyBytes      = 20
	totpPeriodSeconds = 30
	totpDigits        = 6
)

func newTOTPKey() ([]byte, error) {
	key := make([]byte, totpKeyBytes)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

func totpCode(key []byte, now time.Time) string {
	counter := uint64(now.Unix() / totpPeriodSeconds)
	return hotp(key, counter, totpDigits)
}

func hotp(key []byte, counter uint64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, code%mod)
}
