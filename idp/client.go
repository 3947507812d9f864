package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the provider's public API root.
	DefaultBaseURL = "https://api.workos.com"
	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 10 * time.Second

	pageSize     = 100
	maxPages     = 50
	maxBodyBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	ClientID    string
	RedirectURI string
	// Provider is passed to the authorize endpoint, e.g. "authkit".
	Provider   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Observer receives one callback per upstream call.
type Observer func(op string, elapsed time.Duration, err error)

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.Named("idp")
		}
	}
}

// WithObserver sets the per-call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

// Client talks to the provider's user management API. It is safe for
// concurrent use.
type Client struct {
	base    *url.URL
	apiKey  string
	oauth   *oauth2.Config
	extra   []oauth2.AuthCodeOption
	http    *http.Client
	log     *zap.Logger
	observe Observer
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	} else if hc.Timeout == 0 {
		cp := *hc
		cp.Timeout = cfg.Timeout
		hc = &cp
	}

	c := &Client{
		base:   base,
		apiKey: cfg.APIKey,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base.String() + "/user_management/authorize",
				TokenURL: base.String() + "/user_management/authenticate",
			},
		},
		http: hc,
		log:  zap.NewNop(),
	}
	if cfg.Provider != "" {
		c.extra = append(c.extra, oauth2.SetAuthURLParam("provider", cfg.Provider))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AuthorizationURL returns the hosted sign-in URL carrying state.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state, c.extra...)
}

// AuthenticateWithCode exchanges an authorization code.
func (c *Client) AuthenticateWithCode(ctx context.Context, code string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, "authenticate_code", http.MethodPost, "/user_management/authenticate", nil, authenticateRequest{
		ClientID:     c.oauth.ClientID,
		ClientSecret: c.apiKey,
		GrantType:    "authorization_code",
		Code:         code,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthenticateWithRefreshToken rotates the upstream tokens.
func (c *Client) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, "authenticate_refresh", http.MethodPost, "/user_management/authenticate", nil, authenticateRequest{
		ClientID:     c.oauth.ClientID,
		ClientSecret: c.apiKey,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUserMemberships returns every membership of userID, following pages.
func (c *Client) ListUserMemberships(ctx context.Context, userID string) ([]Membership, error) {
	return c.listMemberships(ctx, "list_user_memberships", url.Values{"user_id": {userID}})
}

// ListOrganizationMemberships returns every membership of orgID.
func (c *Client) ListOrganizationMemberships(ctx context.Context, orgID string) ([]Membership, error) {
	return c.listMemberships(ctx, "list_org_memberships", url.Values{"organization_id": {orgID}})
}

func (c *Client) listMemberships(ctx context.Context, op string, q url.Values) ([]Membership, error) {
	q.Set("limit", fmt.Sprint(pageSize))
	var all []Membership
	for page := 0; page < maxPages; page++ {
		var out membershipList
		if err := c.do(ctx, op, http.MethodGet, "/user_management/organization_memberships", q, nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Data...)
		if out.ListMetadata.After == "" {
			return all, nil
		}
		q.Set("after", out.ListMetadata.After)
	}
	c.log.Warn("membership listing truncated", zap.String("op", op), zap.Int("pages", maxPages))
	return all, nil
}

// CreateMembership adds userID to orgID with roleSlug.
func (c *Client) CreateMembership(ctx context.Context, userID, orgID, roleSlug string) (*Membership, error) {
	var out Membership
	err := c.do(ctx, "create_membership", http.MethodPost, "/user_management/organization_memberships", nil,
		createMembershipRequest{UserID: userID, OrganizationID: orgID, RoleSlug: roleSlug}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMembership fetches one membership.
func (c *Client) GetMembership(ctx context.Context, membershipID string) (*Membership, error) {
	var out Membership
	if err := c.do(ctx, "get_membership", http.MethodGet, "/user_management/organization_memberships/"+url.PathEscape(membershipID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMembershipRole changes the role of a membership.
func (c *Client) UpdateMembershipRole(ctx context.Context, membershipID, roleSlug string) (*Membership, error) {
	var out Membership
	err := c.do(ctx, "update_membership", http.MethodPut, "/user_management/organization_memberships/"+url.PathEscape(membershipID), nil,
		updateMembershipRequest{RoleSlug: roleSlug}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMembership removes a membership.
func (c *Client) DeleteMembership(ctx context.Context, membershipID string) error {
	return c.do(ctx, "delete_membership", http.MethodDelete, "/user_management/organization_memberships/"+url.PathEscape(membershipID), nil, nil, nil)
}

// GetOrganization fetches an organization.
func (c *Client) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var out Organization
	if err := c.do(ctx, "get_organization", http.MethodGet, "/organizations/"+url.PathEscape(orgID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body, out any) (err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if c.observe != nil {
			c.observe(op, elapsed, err)
		}
		if err != nil {
			c.log.Warn("upstream call failed", zap.String("op", op), zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			c.log.Debug("upstream call", zap.String("op", op), zap.Duration("elapsed", elapsed))
		}
	}()

	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		raw, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("idp %s: encode request: %w", op, mErr)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("idp %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrUpstream, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(op, resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrUpstream, op, err)
	}
	return nil
}

func decodeAPIError(op string, status int, raw []byte) *APIError {
	ae := &APIError{Op: op, Status: status, Message: http.StatusText(status)}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		switch {
		case eb.Code != "":
			ae.Code = eb.Code
		case eb.Error != "":
			ae.Code = eb.Error
		}
		switch {
		case eb.Message != "":
			ae.Message = eb.Message
		case eb.ErrorDescription != "":
			ae.Message = eb.ErrorDescription
		}
	}
	return ae
}
