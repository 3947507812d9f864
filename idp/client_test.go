package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:     srv.URL,
		APIKey:      "sk_test",
		ClientID:    "client_123",
		RedirectURI: "http://localhost:3000/api/auth/callback",
		Provider:    "authkit",
	}, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{ClientID: "c"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(Config{APIKey: "k"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(Config{APIKey: "k", ClientID: "c", BaseURL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c, err := New(Config{APIKey: "k", ClientID: "c"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestAuthorizationURL(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	raw := c.AuthorizationURL("state-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/user_management/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client_123", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "authkit", q.Get("provider"))
	assert.Equal(t, "http://localhost:3000/api/auth/callback", q.Get("redirect_uri"))
}

func TestAuthenticateWithCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/user_management/authenticate", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body authenticateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "authorization_code", body.GrantType)
		assert.Equal(t, "the-code", body.Code)
		assert.Equal(t, "client_123", body.ClientID)
		assert.Equal(t, "sk_test", body.ClientSecret)

		writeJSON(w, http.StatusOK, map[string]any{
			"user":          map[string]any{"id": "user_1", "email": "a@b.com", "first_name": "Ada"},
			"access_token":  "at",
			"refresh_token": "rt",
		})
	}))

	res, err := c.AuthenticateWithCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "user_1", res.User.ID)
	assert.Equal(t, "Ada", res.User.FirstName)
	assert.Equal(t, "at", res.AccessToken)
	assert.Equal(t, "rt", res.RefreshToken)
	assert.Empty(t, res.IDToken)
}

func TestAuthenticateWithRefreshTokenMapsAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Refresh token already exchanged.",
		})
	}))

	_, err := c.AuthenticateWithRefreshToken(context.Background(), "old")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "invalid_grant", ae.Code)
	assert.Equal(t, "Refresh token already exchanged.", ae.Message)
}

func TestListUserMembershipsFollowsPages(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "user_1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{
					{"id": "om_1", "user_id": "user_1", "organization_id": "org_1", "role": map[string]any{"slug": "admin"}, "status": "active"},
				},
				"list_metadata": map[string]any{"after": "om_1"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"id": "om_2", "user_id": "user_1", "organization_id": "org_2", "role": map[string]any{"slug": "member"}, "status": "pending"},
			},
			"list_metadata": map[string]any{},
		})
	}))

	ms, err := c.ListUserMemberships(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "admin", ms[0].Role.Slug)
	assert.True(t, ms[0].Active())
	assert.False(t, ms[1].Active())
}

func TestMembershipMutations(t *testing.T) {
	var (
		mu                   sync.Mutex
		lastMethod, lastPath string
	)
	last := func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return lastMethod, lastPath
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastMethod, lastPath = r.Method, r.URL.Path
		mu.Unlock()
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			if r.URL.Path == "/organizations/org_1" {
				writeJSON(w, http.StatusOK, map[string]any{"id": "org_1", "name": "Acme"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "om_9", "user_id": "u", "organization_id": "org_1", "role": map[string]any{"slug": "member"}})
		default:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusCreated, map[string]any{"id": "om_9", "user_id": "u", "organization_id": "org_1", "role": map[string]any{"slug": body["role_slug"]}})
		}
	}))
	ctx := context.Background()

	m, err := c.CreateMembership(ctx, "u", "org_1", "member")
	require.NoError(t, err)
	assert.Equal(t, "member", m.Role.Slug)
	method, _ := last()
	assert.Equal(t, http.MethodPost, method)

	m, err = c.UpdateMembershipRole(ctx, "om_9", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", m.Role.Slug)
	method, path := last()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/user_management/organization_memberships/om_9", path)

	m, err = c.GetMembership(ctx, "om_9")
	require.NoError(t, err)
	assert.Equal(t, "org_1", m.OrganizationID)

	require.NoError(t, c.DeleteMembership(ctx, "om_9"))
	method, _ = last()
	assert.Equal(t, http.MethodDelete, method)

	org, err := c.GetOrganization(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "entity_not_found", "message": "gone"})
	}))

	_, err := c.GetOrganization(context.Background(), "org_x")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, 0, StatusOf(errors.New("other")))
}

func TestTimeoutWrapsUpstream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var observed atomic.Int32
	c, err := New(Config{BaseURL: srv.URL, APIKey: "k", ClientID: "c", Timeout: 50 * time.Millisecond},
		WithObserver(func(op string, _ time.Duration, err error) {
			if op == "get_organization" && err != nil {
				observed.Add(1)
			}
		}))
	require.NoError(t, err)

	_, err = c.GetOrganization(context.Background(), "org_1")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), observed.Load())
}

func TestMalformedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	}))

	_, err := c.GetOrganization(context.Background(), "org_1")
	assert.ErrorIs(t, err, ErrUpstream)
}
