// Package idp is a small client for the identity provider's user management
// REST API: OAuth code exchange, refresh, and organization memberships.
//
// # Failure model
//
// Transport errors, timeouts and non-2xx responses all wrap [ErrUpstream].
// Non-2xx responses are returned as [*APIError] carrying the status code and
// the provider's error code. No call is retried.
//
// # What this package must NOT do
//
//   - Touch cookies or session tokens.
//   - Cache responses (see membership).
package idp
