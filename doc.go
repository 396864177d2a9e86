// Package authcore issues, validates, and revokes bearer credentials for a
// multi-device client population and tracks the server-side session state
// needed to detect anomalous reuse of a refresh credential.
//
// The package is composed of three parts. The [token] package mints and
// decodes signed access/refresh tokens and is stateless. The [session]
// package owns the durable record of every issued refresh credential in
// Redis. [Service], defined here, orchestrates the login, registration,
// OTP verification, logout, refresh, forgot-password, and reset-password
// flows on top of both, plus a set of collaborators the caller supplies:
// an [IdentityStore], an [OTPService], and an [EmailSender].
//
// Service methods are safe to call from multiple goroutines. Each request
// runs independently; the session collection is the only shared mutable
// resource and is protected by conditional updates at the persistence
// layer, so multiple Service instances may run against the same Redis.
//
// Caller IP and user agent travel on the request context via
// [WithClientIP] and [WithUserAgent]. A missing user agent is a hard error
// ([ErrMissingUserAgent]); a missing IP is recorded as "Unknown IP".
package authcore
