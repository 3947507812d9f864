package idptest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesAreSingleUseByDefault(t *testing.T) {
	p := New()
	p.AddUser("c1", idp.User{ID: "u1"}, "rt1")
	ctx := context.Background()

	resp, err := p.AuthenticateWithCode(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "rt1", resp.RefreshToken)

	_, err = p.AuthenticateWithCode(ctx, "c1")
	var apiErr *idp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.ErrorIs(t, err, idp.ErrUpstream)

	p.AddUser("c2", idp.User{ID: "u2"}, "")
	p.ReusableCodes = true
	for i := 0; i < 3; i++ {
		_, err := p.AuthenticateWithCode(ctx, "c2")
		require.NoError(t, err)
	}
}

func TestMembershipLifecycle(t *testing.T) {
	p := New()
	ctx := context.Background()
	p.AddMembership("om_b", "u1", "org", "member")
	p.AddMembership("om_a", "u2", "org", "admin")

	ms, err := p.ListOrganizationMemberships(ctx, "org")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "om_a", ms[0].ID)

	created, err := p.CreateMembership(ctx, "u3", "org", "member")
	require.NoError(t, err)
	updated, err := p.UpdateMembershipRole(ctx, created.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role.Slug)

	require.NoError(t, p.DeleteMembership(ctx, created.ID))
	_, err = p.GetMembership(ctx, created.ID)
	var apiErr *idp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestInjectedErrorsAndCounters(t *testing.T) {
	p := New()
	ctx := context.Background()
	boom := errors.New("boom")

	p.SetListErr(boom)
	_, err := p.ListUserMemberships(ctx, "u1")
	assert.ErrorIs(t, err, boom)
	p.SetListErr(nil)
	_, err = p.ListUserMemberships(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 2, p.ListCalls())

	p.SetAuthErr(boom)
	_, err = p.AuthenticateWithRefreshToken(ctx, "rt")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.RefreshCalls())
}
