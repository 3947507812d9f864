// Package agentcanvas provides the session and token lifecycle for the
// AgentCanvas web application: encrypted session cookies, OAuth sign-in
// against an external identity provider, proactive identity token refresh,
// and a short-lived organization membership cache.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// agentcanvas is the public surface. It exposes [Engine], [Builder], [Config],
// and value types ([SessionView], [MetricsSnapshot], etc.). Sealing, cookie
// attributes, state generation, refresh arithmetic and caching live in their
// own packages (session, cookie, oauthstate, refresh, membership) and are
// composed here.
//
// # Failure model
//
// Configuration errors fail [Builder.Build]. Every authentication failure is
// reported as [ErrUnauthenticated] without saying why; the reason goes to the
// log and the audit sink. Identity provider failures wrap [ErrUpstream]. No
// call is retried.
//
// # What this package must NOT do
//
//   - Hand access or refresh tokens to callers outside the Engine.
//   - Hold per-user state outside the membership cache.
//   - Import httpapi or middleware (no import cycles).
package agentcanvas
