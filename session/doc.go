// Package session seals and opens the stateless session cookie and owns the
// session record it carries.
//
// # Token format
//
// A session token is a compact JWE (alg "dir", enc "A256GCM") whose payload
// holds the registered claims (jti, iat, exp) and the [Data] record. The
// content key is derived from the configured secret with HKDF-SHA256 and
// cached by [Keyring]. Every Encode draws a fresh random IV.
//
// # Failure model
//
// [Codec.Decode] never reports why a token was rejected. Wrong key, expiry,
// truncation, tampering and non-canonical base64 all collapse into a single
// "not ok" result.
//
// # Architecture boundaries
//
// This package owns the [Codec], the [Keyring], the [Data] model and the
// optional Redis [RevocationStore]. It does NOT build cookies, talk to the
// identity provider, or decide when to refresh.
//
// # What this package must NOT do
//
//   - Import agentcanvas, cookie, idp, or membership (no upward imports).
//   - Log or return secrets, derived keys, or upstream credentials.
//   - Operate with a secret shorter than [MinSecretLength].
package session
