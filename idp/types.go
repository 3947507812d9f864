package idp

// User is the provider's user record.
type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
}

// AuthResponse is returned by code exchange and refresh.
type AuthResponse struct {
	User           User   `json:"user"`
	OrganizationID string `json:"organization_id,omitempty"`
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	// IDToken is optional; many refresh responses omit it.
	IDToken string `json:"id_token,omitempty"`
}

// RoleRef is the role attached to a membership.
type RoleRef struct {
	Slug string `json:"slug"`
}

// Membership links a user to an organization.
type Membership struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	OrganizationID string  `json:"organization_id"`
	Role           RoleRef `json:"role"`
	Status         string  `json:"status,omitempty"`
}

// Active reports whether the membership is usable for authorization.
func (m Membership) Active() bool {
	return m.Status == "" || m.Status == "active"
}

// Organization is the provider's organization record.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listMetadata struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

type membershipList struct {
	Data         []Membership `json:"data"`
	ListMetadata listMetadata `json:"list_metadata"`
}

type authenticateRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type createMembershipRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	RoleSlug       string `json:"role_slug,omitempty"`
}

type updateMembershipRequest struct {
	RoleSlug string `json:"role_slug"`
}

type errorBody struct {
	Code             string `json:"code"`
	Error            string `json:"error"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}
