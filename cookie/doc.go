// Package cookie builds Set-Cookie header values for the session and OAuth
// state cookies.
//
// Every cookie is HttpOnly, SameSite=Lax and Path=/. Secure is decided once,
// at construction, from the production flag and the base URL scheme, so the
// same configuration always yields the same attributes.
//
// # What this package must NOT do
//
//   - Encrypt or decode cookie values (see session).
//   - Read cookies from requests beyond the name lookup helpers.
package cookie
