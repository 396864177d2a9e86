// Package password implements the keyed password digest used by the
// authentication service: HMAC-SHA512 over the plaintext, parameterized by
// per-identity keying material so a precomputed table built against one
// account is useless against any other.
//
// Keying material is generated with [NewKey] at registration and
// regenerated on forgot-password. Digest comparison is constant time over
// the full digest length.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other authcore package.
//   - Log plaintext passwords or keying material.
package password
