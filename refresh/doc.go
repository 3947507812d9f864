// Package refresh decides when a session's identity token must be renewed.
//
// # Expiry format
//
// Expiries are absolute epoch milliseconds with the refresh [Window] already
// subtracted at issuance. Checking a stored expiry is a single comparison
// against the current time.
//
// # Architecture boundaries
//
// This package owns the arithmetic only. Calling the identity provider and
// minting a replacement identity token are handled by the Engine.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import agentcanvas or session.
package refresh
