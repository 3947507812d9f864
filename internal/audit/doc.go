// Package audit implements async event dispatching for session lifecycle
// events: sign-in, state mismatch, forged or expired cookies, refresh,
// logout and membership changes.
//
// # Components
//
//   - [Sink] is the consumer interface (channel, JSON writer, zap, no-op).
//   - [Dispatcher] is a buffered relay with drop-if-full or block-if-full semantics.
//   - [Event] is the record: timestamp, type, user, org, session id, IP, metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does not decide which
// events to emit; the Engine does.
package audit
