// Package httpapi exposes the Engine over HTTP with gorilla/mux.
//
// Routes:
//
//	GET    /api/auth/login                              redirect to hosted sign-in
//	GET    /api/auth/callback                           finish sign-in, set session cookie
//	POST   /api/auth/refresh                            re-issue the session when due
//	POST   /api/auth/logout                             clear the session cookie
//	GET    /api/auth/session                            session view for the UI
//	GET    /.well-known/jwks.json                       identity token verification keys
//	GET    /api/token/info                              claims of a bearer identity token
//	GET    /api/orgs/{orgID}/members                    list members
//	POST   /api/orgs/{orgID}/members                    add a member
//	PATCH  /api/orgs/{orgID}/members/{membershipID}     change a member's role
//	DELETE /api/orgs/{orgID}/members/{membershipID}     remove a member
//	POST   /api/canvas/import                           YAML in, JSON workflow out
//	POST   /api/canvas/export                           JSON workflow in, YAML out
//	GET    /api/admin/security                          hardening report, super admins only
//	GET    /healthz                                     backend health
//	GET    /metrics                                     Prometheus exposition, when configured
//
// Organization routes pass through middleware.RequireOrgAdmin before the
// handler runs. Upstream credentials never appear in a response body.
package httpapi
