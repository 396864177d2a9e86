package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/lifeflow/authcore/password"
	"github.com/lifeflow/authcore/token"
)

func newPasswordKey() ([]byte, error) {
	return password.NewKey()
}

func digestPassword(key []byte, plaintext string) ([]byte, error) {
	return password.Digest(key, plaintext)
}

func verifyPassword(identity *Identity, plaintext string) (bool, error) {
	return password.Verify(identity.PasswordKey, identity.PasswordDigest, plaintext)
}

// ForgotPassword replaces the identity's password with a one-time numeric
// code and mails the plaintext code out-of-band. The code is computed with
// the time-based one-time-password algorithm over fresh keying material;
// the digest is stored under fresh keying material as well. No session is
// created or touched.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	totpKey, err := newTOTPKey()
	if err != nil {
		return err
	}
	temporary := totpCode(totpKey, time.Now())

	key, err := newPasswordKey()
	if err != nil {
		return err
	}
	digest, err := digestPassword(key, temporary)
	if err != nil {
		return err
	}

	identity.PasswordDigest = digest
	identity.PasswordKey = key
	if err := s.identities.Update(ctx, identity); err != nil {
		return err
	}

	body := fmt.Sprintf("Your new password is %s. Please change it after logging in.", temporary)
	if err := s.email.Send(ctx, identity.Email, "Password Reset", body); err != nil {
		// Delivery is fire-and-forget: the stored digest already changed.
		s.logger.Error("forgot password: email delivery failed", "identity_id", identity.ID, "err", err)
	}

	s.metrics.Inc(MetricPasswordForgot)
	s.emitAudit(ctx, auditEventForgotPassword, identity.ID, identity.Email, true, nil)

	return nil
}

// ResetPassword verifies the old password, stores a digest of the new one,
// invalidates every existing session for the identity, and opens one fresh
// session exactly as login does.
//
// A wrong old password fails with ErrAuthenticationFailed. Any downstream
// failure after that point is logged and surfaces as the generic
// ErrResetFailed; if the fresh session cannot be persisted, no tokens are
// returned.
func (s *Service) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) (*token.Pair, error) {
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("password reset: identity lookup failed", "email", email, "err", err)
		return nil, err
	}

	ok, err := verifyPassword(identity, oldPassword)
	if err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}
	if !ok {
		s.metrics.Inc(MetricPasswordResetFailure)
		s.emitAudit(ctx, auditEventResetPassword, identity.ID, identity.Email, false, ErrAuthenticationFailed)
		return nil, fmt.Errorf("%w: invalid password", ErrAuthenticationFailed)
	}

	// Keying material is kept; only the digest changes.
	digest, err := digestPassword(identity.PasswordKey, newPassword)
	if err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}
	identity.PasswordDigest = digest
	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}

	// Forced logout everywhere before the replacement session exists.
	if err := s.sessions.InvalidateAll(ctx, identity.ID); err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}
	s.emitAudit(ctx, auditEventSessionsRevoked, identity.ID, identity.Email, true, nil)

	pair, err := s.issuer.MintPair(identity.ID, identity.Email, identity.Role, false)
	if err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}

	record, err := s.newSessionRecord(ctx, identity.ID, pair.RefreshToken)
	if err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}
	if _, err := s.sessions.Create(ctx, record); err != nil {
		return nil, s.resetFailure(ctx, identity, err)
	}

	s.logger.Info("password reset succeeded", "identity_id", identity.ID)
	s.metrics.Inc(MetricPasswordResetSuccess)
	s.metrics.Inc(MetricSessionCreated)
	s.emitAudit(ctx, auditEventResetPassword, identity.ID, identity.Email, true, nil)

	return pair, nil
}

func (s *Service) resetFailure(ctx context.Context, identity *Identity, cause error) error {
	s.logger.Error("password reset failed", "identity_id", identity.ID, "err", cause)
	s.metrics.Inc(MetricPasswordResetFailure)
	s.emitAudit(ctx, auditEventResetPassword, identity.ID, identity.Email, false, ErrResetFailed)
	return ErrResetFailed
}
