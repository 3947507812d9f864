// Package internal contains randomness helpers shared by the agentcanvas
// packages.
//
// # Architecture boundaries
//
// Values are generated from crypto/rand only. Callers own encoding into
// cookies, URLs, or tokens.
//
// # What this package must NOT do
//
//   - Perform I/O beyond reading crypto/rand.
//   - Import agentcanvas or any public sibling package.
package internal
