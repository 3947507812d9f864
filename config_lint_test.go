package agentcanvas

import (
	"testing"
	"time"
)

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func productionConfig(t *testing.T) Config {
	cfg := testConfig(t)
	cfg.Production = true
	cfg.Revocation.Enabled = true
	cfg.Revocation.RedisAddr = "127.0.0.1:6379"
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func TestLintHardenedProductionConfigIsClean(t *testing.T) {
	cfg := productionConfig(t)
	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws.Codes())
	}
}

func TestLintGeneratedSigningKeyInProduction(t *testing.T) {
	cfg := productionConfig(t)
	cfg.IDToken.SigningKeyPEM = nil

	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "generated_signing_key") {
		t.Fatal("expected generated_signing_key warning")
	}
	if len(ws.AtLeast(LintHigh)) != 1 {
		t.Fatalf("expected one high severity warning, got %v", ws.AtLeast(LintHigh).Codes())
	}

	dev := testConfig(t)
	dev.IDToken.SigningKeyPEM = nil
	if containsCode(dev.Lint().Codes(), "generated_signing_key") {
		t.Fatal("generated keys are fine outside production")
	}
}

func TestLintInsecureBaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.BaseURL = "http://canvas.internal"
	if !containsCode(cfg.Lint().Codes(), "insecure_base_url") {
		t.Fatal("expected insecure_base_url warning")
	}

	cfg.BaseURL = "http://localhost:3000"
	if containsCode(cfg.Lint().Codes(), "insecure_base_url") {
		t.Fatal("loopback http is fine for development")
	}
}

func TestLintProductionToggles(t *testing.T) {
	cfg := productionConfig(t)
	cfg.Revocation.Enabled = false
	cfg.Audit.Enabled = false

	codes := cfg.Lint().Codes()
	for _, code := range []string{"revocation_disabled", "audit_disabled"} {
		if !containsCode(codes, code) {
			t.Errorf("expected %s warning", code)
		}
	}
}

func TestLintDurations(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Lifetime = 60 * 24 * time.Hour
	cfg.Membership.TTL = 10 * time.Minute
	cfg.IDToken.RefreshWindow = 40 * time.Minute
	cfg.Upstream.Timeout = time.Minute

	codes := cfg.Lint().Codes()
	for _, code := range []string{"session_lifetime_long", "membership_ttl_long", "refresh_window_large", "upstream_timeout_long"} {
		if !containsCode(codes, code) {
			t.Errorf("expected %s warning", code)
		}
	}
}

func TestLintNoSuperAdmins(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.SuperAdminEmails = nil
	if !containsCode(cfg.Lint().Codes(), "no_super_admins") {
		t.Fatal("expected no_super_admins warning")
	}
}

func TestLintSeverityString(t *testing.T) {
	if LintHigh.String() != "HIGH" || LintSeverity(9).String() != "LintSeverity(9)" {
		t.Fatal("unexpected severity names")
	}
}
