// Package idptest provides an in-memory identity provider for tests and
// offline benchmarks. It implements the same methods as [idp.Client] and
// returns the same [*idp.APIError] shapes for unknown codes and resources.
package idptest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"github.com/agentcanvas/agentcanvas/idp"
)

// Provider is safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	codes       map[string]*idp.AuthResponse
	refreshes   map[string]*idp.AuthResponse
	memberships map[string]idp.Membership
	orgs        map[string]idp.Organization

	listErr      error
	authErr      error
	nextID       int
	listCalls    int
	refreshCalls int

	// ReusableCodes keeps codes valid after exchange. The bench command
	// replays one code many times.
	ReusableCodes bool
}

// New returns an empty provider.
func New() *Provider {
	return &Provider{
		codes:       map[string]*idp.AuthResponse{},
		refreshes:   map[string]*idp.AuthResponse{},
		memberships: map[string]idp.Membership{},
		orgs:        map[string]idp.Organization{},
	}
}

// AddUser makes code exchange to u with the given refresh token.
func (p *Provider) AddUser(code string, u idp.User, refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[code] = &idp.AuthResponse{
		User:         u,
		AccessToken:  "at_" + u.ID,
		RefreshToken: refreshToken,
	}
}

// SetCodeIDToken attaches an upstream identity token to a registered code.
func (p *Provider) SetCodeIDToken(code, idToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if resp, ok := p.codes[code]; ok {
		resp.IDToken = idToken
	}
}

// AddRefresh registers the response for a refresh token.
func (p *Provider) AddRefresh(refreshToken string, resp *idp.AuthResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes[refreshToken] = resp
}

// AddOrg registers an organization.
func (p *Provider) AddOrg(id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orgs[id] = idp.Organization{ID: id, Name: name}
}

// AddMembership registers an active membership.
func (p *Provider) AddMembership(id, userID, orgID, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memberships[id] = idp.Membership{
		ID:             id,
		UserID:         userID,
		OrganizationID: orgID,
		Role:           idp.RoleRef{Slug: role},
		Status:         "active",
	}
}

// SetListErr makes ListUserMemberships fail with err until cleared with nil.
func (p *Provider) SetListErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// SetAuthErr makes code exchange and refresh fail with err until cleared.
func (p *Provider) SetAuthErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authErr = err
}

// ListCalls counts ListUserMemberships calls.
func (p *Provider) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

// RefreshCalls counts AuthenticateWithRefreshToken calls.
func (p *Provider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

// AuthorizationURL returns a fake hosted sign-in URL.
func (p *Provider) AuthorizationURL(state string) string {
	return "https://idp.test/user_management/authorize?state=" + url.QueryEscape(state)
}

// AuthenticateWithCode exchanges a registered code. Codes are single use
// unless ReusableCodes is set.
func (p *Provider) AuthenticateWithCode(_ context.Context, code string) (*idp.AuthResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authErr != nil {
		return nil, p.authErr
	}
	resp, ok := p.codes[code]
	if !ok {
		return nil, &idp.APIError{Op: "authenticate_code", Status: http.StatusBadRequest, Code: "invalid_grant"}
	}
	if !p.ReusableCodes {
		delete(p.codes, code)
	}
	cp := *resp
	return &cp, nil
}

// AuthenticateWithRefreshToken returns the registered refresh response.
func (p *Provider) AuthenticateWithRefreshToken(_ context.Context, refreshToken string) (*idp.AuthResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	if p.authErr != nil {
		return nil, p.authErr
	}
	resp, ok := p.refreshes[refreshToken]
	if !ok {
		return nil, &idp.APIError{Op: "authenticate_refresh", Status: http.StatusBadRequest, Code: "invalid_grant"}
	}
	cp := *resp
	return &cp, nil
}

// ListUserMemberships returns userID's memberships ordered by id.
func (p *Provider) ListUserMemberships(_ context.Context, userID string) ([]idp.Membership, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.filter(func(m idp.Membership) bool { return m.UserID == userID }), nil
}

// ListOrganizationMemberships returns orgID's memberships ordered by id.
func (p *Provider) ListOrganizationMemberships(_ context.Context, orgID string) ([]idp.Membership, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter(func(m idp.Membership) bool { return m.OrganizationID == orgID }), nil
}

// CreateMembership adds an active membership with a generated id.
func (p *Provider) CreateMembership(_ context.Context, userID, orgID, roleSlug string) (*idp.Membership, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	m := idp.Membership{
		ID:             fmt.Sprintf("om_new_%d", p.nextID),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           idp.RoleRef{Slug: roleSlug},
		Status:         "active",
	}
	p.memberships[m.ID] = m
	return &m, nil
}

// GetMembership returns a membership or a 404 APIError.
func (p *Provider) GetMembership(_ context.Context, membershipID string) (*idp.Membership, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.memberships[membershipID]
	if !ok {
		return nil, &idp.APIError{Op: "get_membership", Status: http.StatusNotFound, Code: "entity_not_found"}
	}
	return &m, nil
}

// UpdateMembershipRole changes a membership's role slug.
func (p *Provider) UpdateMembershipRole(_ context.Context, membershipID, roleSlug string) (*idp.Membership, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.memberships[membershipID]
	if !ok {
		return nil, &idp.APIError{Op: "update_membership", Status: http.StatusNotFound}
	}
	m.Role.Slug = roleSlug
	p.memberships[membershipID] = m
	return &m, nil
}

// DeleteMembership removes a membership.
func (p *Provider) DeleteMembership(_ context.Context, membershipID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.memberships[membershipID]; !ok {
		return &idp.APIError{Op: "delete_membership", Status: http.StatusNotFound}
	}
	delete(p.memberships, membershipID)
	return nil
}

// GetOrganization returns an organization or a 404 APIError.
func (p *Provider) GetOrganization(_ context.Context, orgID string) (*idp.Organization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orgs[orgID]
	if !ok {
		return nil, &idp.APIError{Op: "get_organization", Status: http.StatusNotFound}
	}
	return &o, nil
}

func (p *Provider) filter(keep func(idp.Membership) bool) []idp.Membership {
	var out []idp.Membership
	for _, m := range p.memberships {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
