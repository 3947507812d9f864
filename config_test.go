package agentcanvas

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "test config valid", mutate: func(*Config) {}, wantValid: true},
		{
			name:      "missing secret",
			mutate:    func(c *Config) { c.Session.Secret = "" },
			wantValid: false,
		},
		{
			name:      "31-char secret",
			mutate:    func(c *Config) { c.Session.Secret = strings.Repeat("a", 31) },
			wantValid: false,
		},
		{
			name:      "32-char secret",
			mutate:    func(c *Config) { c.Session.Secret = strings.Repeat("a", 32) },
			wantValid: true,
		},
		{
			name:      "relative base url",
			mutate:    func(c *Config) { c.BaseURL = "/app" },
			wantValid: false,
		},
		{
			name:      "ftp base url",
			mutate:    func(c *Config) { c.BaseURL = "ftp://canvas.test" },
			wantValid: false,
		},
		{
			name: "production over http",
			mutate: func(c *Config) {
				c.Production = true
				c.BaseURL = "http://canvas.test"
			},
			wantValid: false,
		},
		{
			name:      "callback path without slash",
			mutate:    func(c *Config) { c.OAuth.CallbackPath = "callback" },
			wantValid: false,
		},
		{
			name:      "refresh window longer than token",
			mutate:    func(c *Config) { c.IDToken.RefreshWindow = 2 * time.Hour },
			wantValid: false,
		},
		{
			name:      "negative refresh window",
			mutate:    func(c *Config) { c.IDToken.RefreshWindow = -time.Second },
			wantValid: false,
		},
		{
			name:      "zero membership ttl",
			mutate:    func(c *Config) { c.Membership.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "missing api key",
			mutate:    func(c *Config) { c.Upstream.APIKey = "" },
			wantValid: false,
		},
		{
			name:      "missing client id",
			mutate:    func(c *Config) { c.Upstream.ClientID = "" },
			wantValid: false,
		},
		{
			name:      "zero upstream timeout",
			mutate:    func(c *Config) { c.Upstream.Timeout = 0 },
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "revocation without prefix",
			mutate: func(c *Config) {
				c.Revocation.Enabled = true
				c.Revocation.Prefix = ""
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Secret = "short"

	_, err := New().WithConfig(cfg).WithIdentityProvider(newFakeIDP()).Build()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuildRevocationRequiresRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Revocation.Enabled = true

	_, err := New().WithConfig(cfg).WithIdentityProvider(newFakeIDP()).Build()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig(t)).WithIdentityProvider(newFakeIDP())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildCopiesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.SuperAdminEmails = []string{"a@canvas.test"}
	b := New().WithConfig(cfg).WithIdentityProvider(newFakeIDP())
	cfg.Admin.SuperAdminEmails[0] = "mutated@canvas.test"

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if !engine.IsSuperAdmin("a@canvas.test") || engine.IsSuperAdmin("mutated@canvas.test") {
		t.Fatal("engine must not observe caller mutations")
	}
}

func TestBuildWithJanitorClosesCleanly(t *testing.T) {
	cfg := testConfig(t)
	cfg.Membership.JanitorInterval = 10 * time.Millisecond

	engine, err := New().WithConfig(cfg).WithIdentityProvider(newFakeIDP()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	engine.Close()
	engine.Close()
}

func TestParseEmailList(t *testing.T) {
	got := ParseEmailList(" Root@Canvas.test, ,ops@canvas.test,root@canvas.test,")
	want := []string{"root@canvas.test", "ops@canvas.test"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseEmailList = %v, want %v", got, want)
	}
	if got := ParseEmailList(""); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestCallbackURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://canvas.test/"
	if got := cfg.CallbackURL(); got != "https://canvas.test/api/auth/callback" {
		t.Fatalf("unexpected callback url %q", got)
	}
}
