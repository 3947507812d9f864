package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentcanvas/agentcanvas/idtoken"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeygenWritesKeyAndJWKS(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"keygen", "--out", dir, "--kid", "k1"})
	require.NoError(t, root.Execute())

	pem, err := os.ReadFile(filepath.Join(dir, "signing-key.pem"))
	require.NoError(t, err)
	_, err = idtoken.ParsePrivateKey(pem)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "signing-key.pem"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	var set struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "k1", set.Keys[0].Kid)
	assert.Equal(t, "RSA", set.Keys[0].Kty)
	assert.Contains(t, stderr.String(), "signing-key.pem")
}

func flagViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	v := viper.New()
	cmd := newServeCmd(v)
	require.NoError(t, cmd.ParseFlags(args))
	require.NoError(t, initConfig(cmd, v, ""))
	return v
}

func TestEngineConfigFromFlags(t *testing.T) {
	v := flagViper(t,
		"--base-url", "https://canvas.example.com",
		"--production",
		"--session-secret", strings.Repeat("s", 40),
		"--upstream-api-key", "sk_live",
		"--upstream-client-id", "client_live",
		"--super-admins", "Root@Example.com, ops@example.com,",
		"--redis-addr", "localhost:6379",
		"--membership-ttl", "30s",
		"--audit",
	)
	cfg, err := engineConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "https://canvas.example.com", cfg.BaseURL)
	assert.True(t, cfg.Production)
	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.Admin.SuperAdminEmails)
	assert.True(t, cfg.Revocation.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Revocation.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Membership.TTL)
	assert.True(t, cfg.Audit.Enabled)
	assert.True(t, cfg.Audit.DropIfFull)
	assert.NoError(t, cfg.Validate())
}

func TestEngineConfigFromEnvironment(t *testing.T) {
	t.Setenv("AGENTCANVAS_SESSION_SECRET", strings.Repeat("e", 40))
	t.Setenv("AGENTCANVAS_UPSTREAM_API_KEY", "sk_env")
	t.Setenv("AGENTCANVAS_UPSTREAM_TIMEOUT", "3s")

	cfg, err := engineConfig(flagViper(t))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("e", 40), cfg.Session.Secret)
	assert.Equal(t, "sk_env", cfg.Upstream.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Revocation.Enabled)
}

func TestEngineConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentcanvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upstream-client-id: client_file\nmembership-ttl: 45s\n"), 0o600))

	v := viper.New()
	cmd := newServeCmd(v)
	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, initConfig(cmd, v, path))

	cfg, err := engineConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "client_file", cfg.Upstream.ClientID)
	assert.Equal(t, 45*time.Second, cfg.Membership.TTL)
}

func TestEngineConfigReadsKeyFile(t *testing.T) {
	dir := t.TempDir()
	keyPath, _, err := writeSigningKey(dir, "")
	require.NoError(t, err)

	cfg, err := engineConfig(flagViper(t, "--idtoken-key-file", keyPath))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.IDToken.SigningKeyPEM)

	_, err = engineConfig(flagViper(t, "--idtoken-key-file", filepath.Join(dir, "missing.pem")))
	assert.Error(t, err)
}

func TestBenchSmallRun(t *testing.T) {
	var out bytes.Buffer
	err := runBench(context.Background(), &out, benchOptions{sessions: 5, concurrency: 2, ops: 20, revocation: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "authenticate: ops=20 failures=0")
	assert.Contains(t, out.String(), "is_org_admin: ops=20 failures=0")
	assert.Contains(t, out.String(), "refresh: ops=20 failures=0")
}

func TestBenchRejectsBadOptions(t *testing.T) {
	assert.Error(t, runBench(context.Background(), &bytes.Buffer{}, benchOptions{}))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
