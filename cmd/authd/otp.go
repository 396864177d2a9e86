package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/lifeflow/authcore"
)

const otpValidity = 10 * time.Minute

type otpEntry struct {
	code      string
	expiresAt time.Time
}

// memoryOTPService issues random six-digit codes, delivers them by mail,
// and verifies them once. Codes expire after otpValidity.
type memoryOTPService struct {
	mu     sync.Mutex
	codes  map[string]otpEntry
	sender authcore.EmailSender
}

func newMemoryOTPService(sender authcore.EmailSender) *memoryOTPService {
	return &memoryOTPService{codes: make(map[string]otpEntry), sender: sender}
}

func (s *memoryOTPService) GenerateAndSend(ctx context.Context, email string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	s.codes[email] = otpEntry{code: code, expiresAt: time.Now().Add(otpValidity)}
	s.mu.Unlock()

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(otpValidity.Minutes()))
	return s.sender.Send(ctx, email, "Verification Code", body)
}

func (s *memoryOTPService) Verify(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[email]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.codes, email)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(code)) != 1 {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}
