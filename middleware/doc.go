// Package middleware adapts Engine checks to net/http.
//
// [RequestContext] copies the client address, user agent and a request id
// into the request context so that Engine audit events carry them.
// [RequireSession] opens the session cookie; [RequireSuperAdmin] and
// [RequireOrgAdmin] must run after it. [RequireIDToken] accepts a bearer
// identity token instead of a cookie, for callers outside the browser.
//
// Every decision is delegated to the Engine. Rejections carry a generic JSON
// body; details go to the Engine's log and audit stream only.
package middleware
