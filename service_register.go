package authcore

import (
	"context"
	"errors"
)

// Register creates a new unverified identity and triggers OTP delivery to
// its email address. The returned projection never contains credential
// material.
//
// A duplicate email surfaces as ErrDuplicateIdentity; any other downstream
// failure is logged and reported as ErrRegistrationFailed without the
// underlying cause.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*IdentityInfo, error) {
	key, err := newPasswordKey()
	if err != nil {
		s.logger.Error("register: key generation failed", "err", err)
		return nil, ErrRegistrationFailed
	}
	digest, err := digestPassword(key, in.Password)
	if err != nil {
		s.logger.Error("register: password digest failed", "err", err)
		return nil, ErrRegistrationFailed
	}

	identity := &Identity{
		Email:          in.Email,
		Name:           in.Name,
		Phone:          in.Phone,
		AddressID:      in.AddressID,
		Verified:       false,
		Role:           s.defaultRole,
		PasswordDigest: digest,
		PasswordKey:    key,
		FailedLogins:   0,
	}

	created, err := s.identities.Insert(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, err
		}
		s.logger.Error("register: identity insert failed", "email", in.Email, "err", err)
		s.metrics.Inc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegister, 0, in.Email, false, ErrRegistrationFailed)
		return nil, ErrRegistrationFailed
	}

	if err := s.otp.GenerateAndSend(ctx, created.Email); err != nil {
		s.logger.Error("register: otp delivery failed", "email", created.Email, "err", err)
		s.metrics.Inc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegister, created.ID, created.Email, false, ErrRegistrationFailed)
		return nil, ErrRegistrationFailed
	}

	s.logger.Info("identity registered", "identity_id", created.ID)
	s.metrics.Inc(MetricRegisterSuccess)
	s.emitAudit(ctx, auditEventRegister, created.ID, created.Email, true, nil)

	info := created.Info()
	return &info, nil
}

// VerifyOTP checks the code against the OTP collaborator and, on success,
// flips the identity's verified flag. A wrong code is a valid false
// outcome, not an error.
func (s *Service) VerifyOTP(ctx context.Context, identityID int64, code string) (bool, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return false, err
	}

	ok, err := s.otp.Verify(ctx, identity.Email, code)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.identities.SetVerified(ctx, identityID, true); err != nil {
		return false, err
	}

	s.metrics.Inc(MetricOTPVerified)
	s.emitAudit(ctx, auditEventVerifyOTP, identityID, identity.Email, true, nil)

	return true, nil
}
