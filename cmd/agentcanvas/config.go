package main

import (
	"fmt"
	"os"
	"time"

	"github.com/agentcanvas/agentcanvas"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// addEngineFlags registers every Engine setting. Defaults mirror
// agentcanvas.DefaultConfig.
func addEngineFlags(fs *pflag.FlagSet) {
	d := agentcanvas.DefaultConfig()

	fs.String("base-url", d.BaseURL, "public origin of the service")
	fs.Bool("production", false, "production mode: Secure cookies and strict lint")
	fs.String("session-secret", "", "session cookie secret, at least 32 characters")
	fs.Duration("session-lifetime", d.Session.Lifetime, "absolute session lifetime")
	fs.String("cookie-domain", "", "cookie Domain attribute; empty for host-only")

	fs.String("callback-path", d.OAuth.CallbackPath, "OAuth callback path")
	fs.String("oauth-provider", d.OAuth.Provider, "identity provider connection name")
	fs.String("post-login-redirect", d.OAuth.PostLoginRedirect, "redirect after sign-in")
	fs.String("post-logout-redirect", d.OAuth.PostLogoutRedirect, "redirect after logout")

	fs.String("idtoken-audience", d.IDToken.Audience, "identity token audience")
	fs.Duration("idtoken-lifetime", d.IDToken.Lifetime, "identity token lifetime")
	fs.Duration("idtoken-refresh-window", d.IDToken.RefreshWindow, "refresh this long before identity token expiry")
	fs.String("idtoken-key-file", "", "PEM file holding the RSA signing key")
	fs.String("idtoken-key-pem", "", "PEM-encoded RSA signing key")
	fs.String("idtoken-key-id", "", "kid header; defaults to the key thumbprint")

	fs.Duration("membership-ttl", d.Membership.TTL, "membership cache TTL")
	fs.Duration("membership-janitor-interval", d.Membership.JanitorInterval, "expired membership purge interval; 0 disables")

	fs.String("upstream-url", d.Upstream.BaseURL, "identity provider API base URL")
	fs.String("upstream-api-key", "", "identity provider API key")
	fs.String("upstream-client-id", "", "identity provider client ID")
	fs.Duration("upstream-timeout", d.Upstream.Timeout, "identity provider request timeout")

	fs.String("super-admins", "", "comma-separated super-admin emails")

	fs.String("redis-addr", "", "Redis address; enables the session revocation list")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database")
	fs.String("revocation-prefix", d.Revocation.Prefix, "Redis key prefix for revoked sessions")

	fs.Bool("audit", false, "emit audit events to the log")
	fs.Int("audit-buffer", d.Audit.BufferSize, "audit dispatcher buffer size")
	fs.Bool("audit-block", false, "block instead of dropping when the audit buffer is full")

	fs.Bool("metrics", d.Metrics.Enabled, "record metrics")
	fs.Bool("metrics-latency", d.Metrics.EnableLatencyHistograms, "record upstream latency histogram")
}

// engineConfig assembles a Config from v. It does not validate.
func engineConfig(v *viper.Viper) (agentcanvas.Config, error) {
	cfg := agentcanvas.DefaultConfig()

	cfg.BaseURL = v.GetString("base-url")
	cfg.Production = v.GetBool("production")
	cfg.Session.Secret = v.GetString("session-secret")
	cfg.Session.Lifetime = v.GetDuration("session-lifetime")
	cfg.Cookie.Domain = v.GetString("cookie-domain")

	cfg.OAuth.CallbackPath = v.GetString("callback-path")
	cfg.OAuth.Provider = v.GetString("oauth-provider")
	cfg.OAuth.PostLoginRedirect = v.GetString("post-login-redirect")
	cfg.OAuth.PostLogoutRedirect = v.GetString("post-logout-redirect")

	cfg.IDToken.Audience = v.GetString("idtoken-audience")
	cfg.IDToken.Lifetime = v.GetDuration("idtoken-lifetime")
	cfg.IDToken.RefreshWindow = v.GetDuration("idtoken-refresh-window")
	cfg.IDToken.KeyID = v.GetString("idtoken-key-id")
	switch {
	case v.GetString("idtoken-key-pem") != "":
		cfg.IDToken.SigningKeyPEM = []byte(v.GetString("idtoken-key-pem"))
	case v.GetString("idtoken-key-file") != "":
		pem, err := os.ReadFile(v.GetString("idtoken-key-file"))
		if err != nil {
			return cfg, fmt.Errorf("read signing key: %w", err)
		}
		cfg.IDToken.SigningKeyPEM = pem
	}

	cfg.Membership.TTL = v.GetDuration("membership-ttl")
	cfg.Membership.JanitorInterval = v.GetDuration("membership-janitor-interval")

	cfg.Upstream.BaseURL = v.GetString("upstream-url")
	cfg.Upstream.APIKey = v.GetString("upstream-api-key")
	cfg.Upstream.ClientID = v.GetString("upstream-client-id")
	cfg.Upstream.Timeout = v.GetDuration("upstream-timeout")

	cfg.Admin.SuperAdminEmails = agentcanvas.ParseEmailList(v.GetString("super-admins"))

	if addr := v.GetString("redis-addr"); addr != "" {
		cfg.Revocation.Enabled = true
		cfg.Revocation.RedisAddr = addr
		cfg.Revocation.RedisPassword = v.GetString("redis-password")
		cfg.Revocation.RedisDB = v.GetInt("redis-db")
	}
	cfg.Revocation.Prefix = v.GetString("revocation-prefix")

	cfg.Audit.Enabled = v.GetBool("audit")
	cfg.Audit.BufferSize = v.GetInt("audit-buffer")
	cfg.Audit.DropIfFull = !v.GetBool("audit-block")

	cfg.Metrics.Enabled = v.GetBool("metrics")
	cfg.Metrics.EnableLatencyHistograms = v.GetBool("metrics-latency")

	return cfg, nil
}

// durationOr returns v's duration for key, or def when unset or not positive.
func durationOr(v *viper.Viper, key string, def time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return def
}
