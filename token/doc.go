// Package token is the credential issuer: it mints and decodes the signed
// access and refresh tokens handed to clients.
//
// Tokens are JWTs signed with HMAC-SHA256 under a single symmetric key held
// by the server. The key is part of the immutable [Config] passed to
// [NewIssuer]; there is no process-wide key state. A missing key is a
// construction error ([ErrMissingSigningKey]) so deployments fail at
// startup, not on the first request.
//
// Refresh tokens carry the reserved role value [RoleRefresh] instead of an
// application role, so a refresh token presented where an access token is
// expected fails role checks by construction.
//
// # What this package must NOT do
//
//   - Consult session state. Signature validity and session validity are
//     orthogonal; the session store owns the latter.
//   - Import any other authcore package.
package token
