// Package idtoken issues the RS256 identity token handed to the document
// database and publishes the matching JWKS.
//
// The downstream verifier checks the token against the key set served at
// /.well-known/jwks.json. [Manager] signs with one RSA key; [Verifier] checks
// bearer tokens the same way the downstream does.
//
// # What this package must NOT do
//
//   - Read or write cookies or session tokens.
//   - Call the identity provider.
package idtoken
