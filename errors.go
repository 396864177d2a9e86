package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityNotFound is returned when no identity matches the given
	// email or id. Propagated unchanged from the identity store.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrDuplicateIdentity is returned by Register when the email is
	// already taken. Propagated unchanged from the identity store.
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrNotVerified is returned by Login for an identity that has not
	// completed OTP verification.
	ErrNotVerified = errors.New("identity not verified")

	// ErrAuthenticationFailed covers every credential failure: wrong
	// password, invalid or revoked refresh token, device anomaly. The
	// specific factor that failed is deliberately not exposed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDeviceAnomaly is the device-binding variant of authentication
	// failure: the refresh attempt came from a user agent that does not
	// match the one recorded at login. The session is invalidated before
	// this error is returned, so the credential cannot be retried.
	ErrDeviceAnomaly = fmt.Errorf("%w: device anomaly detected, login again", ErrAuthenticationFailed)

	// ErrSessionNotFound is returned by Logout when no session record
	// matches the token at all.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingUserAgent is returned when the request context carries no
	// user agent. This is a hard requirement, never defaulted.
	ErrMissingUserAgent = errors.New("user agent not found")

	// ErrRegistrationFailed wraps any unexpected downstream failure during
	// Register. The cause is logged, not exposed.
	ErrRegistrationFailed = errors.New("not able to register at this moment")

	// ErrResetFailed wraps any unexpected downstream failure during
	// ResetPassword. The cause is logged, not exposed.
	ErrResetFailed = errors.New("failed to reset password")
)
