package agentcanvas

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks a LintWarning.
type LintSeverity int

const (
	// LintInfo is informational.
	LintInfo LintSeverity = iota
	// LintWarn should be reviewed before a production rollout.
	LintWarn
	// LintHigh weakens a security property.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one non-fatal configuration finding.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings from [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast returns the warnings with severity >= min.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that are valid but risky. It never fails; callers
// decide whether to log or refuse to start.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.Production && len(c.IDToken.SigningKeyPEM) == 0 {
		add("generated_signing_key", LintHigh,
			"identity tokens are signed with a generated key; tokens stop verifying after every restart")
	}
	if !c.Production {
		if u, err := url.Parse(c.BaseURL); err == nil && u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
			add("insecure_base_url", LintWarn, "BaseURL %q is plain http on a non-loopback host", c.BaseURL)
		}
	}
	if c.Production && !c.Revocation.Enabled {
		add("revocation_disabled", LintInfo,
			"logout only clears the cookie; a copied session stays valid for up to %s", c.Session.Lifetime)
	}
	if c.Production && !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "state mismatches and forged cookies are not audited")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull && c.Production {
		add("audit_drop_if_full", LintInfo, "audit events are dropped when the buffer is full")
	}
	if len(c.Admin.SuperAdminEmails) == 0 {
		add("no_super_admins", LintInfo, "no super-admin emails configured")
	}
	if c.Session.Lifetime > 30*24*time.Hour {
		add("session_lifetime_long", LintWarn, "Session Lifetime %s exceeds 30 days", c.Session.Lifetime)
	}
	if c.Membership.TTL > 5*time.Minute {
		add("membership_ttl_long", LintWarn,
			"Membership TTL %s delays role revocation for that long", c.Membership.TTL)
	}
	if c.IDToken.Lifetime > 0 && c.IDToken.RefreshWindow*2 > c.IDToken.Lifetime {
		add("refresh_window_large", LintInfo,
			"IDToken RefreshWindow %s is more than half of Lifetime %s", c.IDToken.RefreshWindow, c.IDToken.Lifetime)
	}
	if c.Upstream.Timeout > 30*time.Second {
		add("upstream_timeout_long", LintInfo, "Upstream Timeout %s holds request goroutines for long", c.Upstream.Timeout)
	}

	return ws
}

func isLoopbackHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || strings.HasSuffix(host, ".localhost")
}
