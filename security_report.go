package agentcanvas

import "time"

// SecurityReport summarizes the effective security posture of an Engine,
// for startup logs and the operator endpoint. It carries no secrets.
type SecurityReport struct {
	ProductionMode       bool
	SecureCookies        bool
	SessionLifetime      time.Duration
	SessionCipher        string
	IDTokenAlgorithm     string
	IDTokenKeyID         string
	IDTokenKeyGenerated  bool
	IDTokenLifetime      time.Duration
	RefreshWindow        time.Duration
	MembershipTTL        time.Duration
	UpstreamTimeout      time.Duration
	RevocationEnabled    bool
	AuditEnabled         bool
	SuperAdminCount      int
	LintWarnings         []string
	HighSeverityWarnings int
}

// SecurityReport returns the report for e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	lint := e.config.Lint()
	report := SecurityReport{
		ProductionMode:       e.config.Production,
		SessionLifetime:      e.config.Session.Lifetime,
		SessionCipher:        "dir+A256GCM",
		IDTokenAlgorithm:     "RS256",
		IDTokenLifetime:      e.config.IDToken.Lifetime,
		RefreshWindow:        e.config.IDToken.RefreshWindow,
		MembershipTTL:        e.config.Membership.TTL,
		UpstreamTimeout:      e.config.Upstream.Timeout,
		RevocationEnabled:    e.revocations != nil,
		AuditEnabled:         e.audit != nil,
		SuperAdminCount:      len(e.admins),
		LintWarnings:         lint.Codes(),
		HighSeverityWarnings: len(lint.AtLeast(LintHigh)),
	}
	if e.cookies != nil {
		report.SecureCookies = e.cookies.Secure()
	}
	if e.tokens != nil {
		report.IDTokenKeyID = e.tokens.KeyID()
		report.IDTokenKeyGenerated = e.tokens.Generated()
	}
	return report
}
