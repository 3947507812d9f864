package agentcanvas

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/idp/idptest"
	"github.com/agentcanvas/agentcanvas/idtoken"
)

var (
	testKeyOnce sync.Once
	testKeyPEM  []byte
	testKeyErr  error
)

func signingKeyPEM(t testing.TB) []byte {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := idtoken.GenerateKey()
		if err != nil {
			testKeyErr = err
			return
		}
		testKeyPEM, testKeyErr = idtoken.EncodePrivateKey(key)
	})
	if testKeyErr != nil {
		t.Fatalf("generate signing key: %v", testKeyErr)
	}
	return testKeyPEM
}

func testConfig(t testing.TB) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = "https://canvas.test"
	cfg.Session.Secret = strings.Repeat("k", 48)
	cfg.Upstream.APIKey = "sk_test_123"
	cfg.Upstream.ClientID = "client_123"
	cfg.IDToken.SigningKeyPEM = signingKeyPEM(t)
	cfg.Admin.SuperAdminEmails = []string{"root@canvas.test"}
	cfg.Membership.JanitorInterval = 0
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeIDP = idptest.Provider

func newFakeIDP() *fakeIDP {
	return idptest.New()
}

type engineOption func(*Builder)

func newTestEngine(t *testing.T, fake *fakeIDP, mutate func(*Config), opts ...engineOption) (*Engine, *testClock) {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newTestClock()
	b := New().
		WithConfig(cfg).
		WithIdentityProvider(fake).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, clock
}

// seedAlice registers alice as admin of org_a and member of org_b.
func seedAlice(fake *fakeIDP) idp.User {
	alice := idp.User{ID: "user_alice", Email: "alice@canvas.test", FirstName: "Alice", LastName: "Liddell"}
	fake.AddUser("code_alice", alice, "rt_alice_1")
	fake.AddOrg("org_a", "Acme")
	fake.AddOrg("org_b", "Beta")
	fake.AddMembership("om_1", alice.ID, "org_a", "admin")
	fake.AddMembership("om_2", alice.ID, "org_b", "member")
	return alice
}

func cookieValue(t *testing.T, setCookie string) string {
	t.Helper()
	return cookieValueTB(t, setCookie)
}

func cookieValueTB(tb testing.TB, setCookie string) string {
	tb.Helper()
	c, err := http.ParseSetCookie(setCookie)
	if err != nil {
		tb.Fatalf("parse Set-Cookie %q: %v", setCookie, err)
	}
	return c.Value
}

// signIn runs the full sign-in and returns the session token.
func signIn(t *testing.T, engine *Engine, code string) (*SignInResult, string) {
	t.Helper()
	ctx := context.Background()

	start, err := engine.BeginSignIn(ctx)
	if err != nil {
		t.Fatalf("BeginSignIn failed: %v", err)
	}
	state := cookieValue(t, start.StateCookie)

	res, err := engine.CompleteSignIn(ctx, code, state, state)
	if err != nil {
		t.Fatalf("CompleteSignIn failed: %v", err)
	}
	return res, cookieValue(t, res.SessionCookie)
}
