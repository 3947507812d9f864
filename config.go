package agentcanvas

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/agentcanvas/agentcanvas/idtoken"
	"github.com/agentcanvas/agentcanvas/membership"
	"github.com/agentcanvas/agentcanvas/refresh"
	"github.com/agentcanvas/agentcanvas/session"
	"github.com/samber/lo"
)

// Config is the full Engine configuration.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable. [Builder.Build] takes a private copy.
type Config struct {
	// BaseURL is the externally visible origin of the service, for example
	// https://canvas.example.com. It is the identity token issuer and
	// decides the Secure cookie attribute.
	BaseURL string
	// Production marks a production deployment. Cookies are Secure and
	// Lint applies production rules.
	Production bool

	Session    SessionConfig
	Cookie     CookieConfig
	OAuth      OAuthConfig
	IDToken    IDTokenConfig
	Membership MembershipConfig
	Upstream   UpstreamConfig
	Admin      AdminConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the sealed session cookie.
type SessionConfig struct {
	// Secret is the key material for the session cookie. At least
	// session.MinSecretLength characters.
	Secret   string
	Lifetime time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls cookie attributes that are not fixed.
type CookieConfig struct {
	// Domain is optional; empty yields host-only cookies.
	Domain string
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig controls the hosted sign-in redirect.
type OAuthConfig struct {
	CallbackPath       string
	Provider           string
	PostLoginRedirect  string
	PostLogoutRedirect string
}

/*
====================================
IDENTITY TOKEN CONFIG
====================================
*/

// IDTokenConfig controls the identity token handed to the document database.
type IDTokenConfig struct {
	Audience string
	Lifetime time.Duration
	// SigningKeyPEM is an RSA private key (PKCS#1 or PKCS#8). When empty a
	// key is generated at startup, which only suits development.
	SigningKeyPEM []byte
	KeyID         string
	// RefreshWindow is subtracted from the token expiry to decide when a
	// session needs a proactive refresh.
	RefreshWindow time.Duration
}

/*
====================================
MEMBERSHIP CONFIG
====================================
*/

// MembershipConfig controls the per-user membership cache.
type MembershipConfig struct {
	TTL time.Duration
	// JanitorInterval enables a background purge of expired entries when > 0.
	JanitorInterval time.Duration
}

/*
====================================
UPSTREAM CONFIG
====================================
*/

// UpstreamConfig points at the identity provider.
type UpstreamConfig struct {
	BaseURL  string
	APIKey   string
	ClientID string
	Timeout  time.Duration
}

/*
====================================
ADMIN CONFIG
====================================
*/

// AdminConfig holds the super-admin allow-list. Emails are compared
// case-insensitively.
type AdminConfig struct {
	SuperAdminEmails []string
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig enables the optional Redis deny-list used by Logout.
type RevocationConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development configuration. Secret, upstream
// credentials and BaseURL still have to be supplied.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:3000",
		Production: false,
		Session: SessionConfig{
			Lifetime: session.Lifetime,
		},
		OAuth: OAuthConfig{
			CallbackPath:       "/api/auth/callback",
			Provider:           "authkit",
			PostLoginRedirect:  "/",
			PostLogoutRedirect: "/",
		},
		IDToken: IDTokenConfig{
			Audience:      idtoken.DefaultAudience,
			Lifetime:      idtoken.DefaultLifetime,
			RefreshWindow: refresh.Window,
		},
		Membership: MembershipConfig{
			TTL:             membership.DefaultTTL,
			JanitorInterval: 5 * time.Minute,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.workos.com",
			Timeout: 10 * time.Second,
		},
		Revocation: RevocationConfig{
			Enabled: false,
			Prefix:  "acr",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.IDToken.SigningKeyPEM = cloneBytes(cfg.IDToken.SigningKeyPEM)
	out.Admin.SuperAdminEmails = append([]string(nil), cfg.Admin.SuperAdminEmails...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ParseEmailList splits a comma-separated allow-list, trimming blanks and
// lower-casing entries. Duplicates are removed.
func ParseEmailList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.ToLower(strings.TrimSpace(p))
	})
	return lo.Uniq(lo.Compact(parts))
}

// CallbackURL joins BaseURL and OAuth.CallbackPath.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.OAuth.CallbackPath
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first configuration error found. Every error is a
// startup failure; Build wraps it in ErrInvalidConfig.
func (c *Config) Validate() error {
	// Base URL
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("BaseURL must be an absolute http(s) URL")
	}
	if c.Production && u.Scheme != "https" {
		return errors.New("BaseURL must use https in production")
	}

	// Session
	if err := session.ValidateSecret(c.Session.Secret); err != nil {
		return fmt.Errorf("Session Secret: %w", err)
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	// OAuth
	if !strings.HasPrefix(c.OAuth.CallbackPath, "/") {
		return errors.New("OAuth CallbackPath must start with /")
	}

	// Identity token
	if c.IDToken.Audience == "" {
		return errors.New("IDToken Audience must not be empty")
	}
	if c.IDToken.Lifetime <= 0 {
		return errors.New("IDToken Lifetime must be > 0")
	}
	if c.IDToken.RefreshWindow < 0 {
		return errors.New("IDToken RefreshWindow must be >= 0")
	}
	if c.IDToken.RefreshWindow >= c.IDToken.Lifetime {
		return errors.New("IDToken RefreshWindow must be shorter than IDToken Lifetime")
	}

	// Membership
	if c.Membership.TTL <= 0 {
		return errors.New("Membership TTL must be > 0")
	}
	if c.Membership.JanitorInterval < 0 {
		return errors.New("Membership JanitorInterval must be >= 0")
	}

	// Upstream
	if c.Upstream.APIKey == "" {
		return errors.New("Upstream APIKey is required")
	}
	if c.Upstream.ClientID == "" {
		return errors.New("Upstream ClientID is required")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("Upstream Timeout must be > 0")
	}

	// Revocation
	if c.Revocation.Enabled && c.Revocation.Prefix == "" {
		return errors.New("Revocation Prefix must not be empty when revocation is enabled")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
