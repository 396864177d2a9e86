package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeflow/authcore/session"
	"github.com/lifeflow/authcore/token"
)

// Login authenticates an identity by email and password and opens a new
// session bound to the caller's device context.
//
// staySigned selects the long-lived refresh token; otherwise the refresh
// token is short-lived. Exactly one session record is created per
// successful login. If persisting the session fails, no tokens are
// returned.
func (s *Service) Login(ctx context.Context, email, password string, staySigned bool) (*token.Pair, error) {
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("login: identity lookup failed", "email", email, "err", err)
		return nil, err
	}

	if !identity.Verified {
		s.logger.Error("login: identity not verified", "email", identity.Email)
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLogin, identity.ID, identity.Email, false, ErrNotVerified)
		return nil, fmt.Errorf("%w: %s", ErrNotVerified, identity.Email)
	}

	ok, err := verifyPassword(identity, password)
	if err != nil || !ok {
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLogin, identity.ID, identity.Email, false, ErrAuthenticationFailed)
		return nil, fmt.Errorf("%w: invalid username or password", ErrAuthenticationFailed)
	}

	pair, err := s.issuer.MintPair(identity.ID, identity.Email, identity.Role, !staySigned)
	if err != nil {
		return nil, err
	}

	record, err := s.newSessionRecord(ctx, identity.ID, pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Create(ctx, record); err != nil {
		s.logger.Error("login: session persistence failed", "identity_id", identity.ID, "err", err)
		s.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	s.logger.Info("login succeeded", "identity_id", identity.ID, "device", record.DeviceClass)
	s.metrics.Inc(MetricLoginSuccess)
	s.metrics.Inc(MetricSessionCreated)
	s.emitAudit(ctx, auditEventLogin, identity.ID, identity.Email, true, nil)

	return pair, nil
}

// Refresh exchanges a refresh token for a fresh access token. The refresh
// token itself is not rotated: the returned pair carries the same refresh
// token that was presented.
//
// A refresh attempt from a user agent other than the one recorded at login
// is treated as credential theft: the session is invalidated before the
// call fails, so the token cannot be retried.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	valid, err := s.sessions.IsValid(ctx, refreshToken)
	if err != nil || !valid {
		s.metrics.Inc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefresh, 0, "", false, ErrAuthenticationFailed)
		return nil, fmt.Errorf("%w: invalid token, login again", ErrAuthenticationFailed)
	}

	record, err := s.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		s.metrics.Inc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: invalid token, login again", ErrAuthenticationFailed)
	}

	userAgent, err := userAgentFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if record.UserAgent != userAgent {
		if _, err := s.sessions.Invalidate(ctx, refreshToken); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.logger.Error("refresh: anomaly invalidation failed", "identity_id", record.IdentityID, "err", err)
		}
		s.logger.Warn("refresh: user agent mismatch, session invalidated", "identity_id", record.IdentityID)
		s.metrics.Inc(MetricDeviceAnomaly)
		s.metrics.Inc(MetricSessionInvalidated)
		s.emitAudit(ctx, auditEventDeviceAnomaly, record.IdentityID, "", false, ErrDeviceAnomaly)
		return nil, ErrDeviceAnomaly
	}

	claims, err := s.issuer.Decode(refreshToken)
	if err != nil {
		s.metrics.Inc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: invalid token, login again", ErrAuthenticationFailed)
	}

	identity, err := s.identities.FindByID(ctx, claims.UID)
	if err != nil {
		s.logger.Error("refresh: identity lookup failed", "identity_id", claims.UID, "err", err)
		return nil, err
	}

	access, err := s.issuer.MintAccess(identity.ID, identity.Email, identity.Role)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefresh, identity.ID, identity.Email, true, nil)

	return &token.Pair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// Logout invalidates the session for the given refresh token. Logging out
// an already-invalid session succeeds; only a token with no session record
// at all fails, with ErrSessionNotFound.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	record, err := s.sessions.Invalidate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	s.metrics.Inc(MetricLogout)
	s.metrics.Inc(MetricSessionInvalidated)
	s.emitAudit(ctx, auditEventLogout, record.IdentityID, "", true, nil)

	return nil
}
