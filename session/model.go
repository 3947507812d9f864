package session

// Role is an organization membership role carried in the session.
type Role string

const (
	// RoleAdmin grants membership management inside an organization.
	RoleAdmin Role = "admin"
	// RoleMember is the default organization role.
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is the identity provider's user record as of login or last refresh.
// It may go stale between refreshes.
type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

// DisplayName joins first and last name, falling back to the email.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// Org is one organization membership captured when the session was issued.
type Org struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

// Data is the decrypted session payload. It has no identity of its own: the
// sealed cookie is the session.
//
// AccessToken and RefreshToken are upstream credentials and must never be
// handed to the UI.
type Data struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	IDToken          string `json:"idToken"`
	IDTokenExpiresAt int64  `json:"idTokenExpiresAt"` // epoch ms, refresh margin already subtracted
	User             User   `json:"user"`
	Orgs             []Org  `json:"orgs"`
	IsSuperAdmin     bool   `json:"isSuperAdmin"`
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	if d.Orgs != nil {
		out.Orgs = make([]Org, len(d.Orgs))
		copy(out.Orgs, d.Orgs)
	}
	return &out
}

// OrgRole returns the role held in orgID, if any.
func (d *Data) OrgRole(orgID string) (Role, bool) {
	if d == nil {
		return "", false
	}
	for _, o := range d.Orgs {
		if o.ID == orgID {
			return o.Role, true
		}
	}
	return "", false
}

// Envelope is an opened token: the record plus its registered claims.
type Envelope struct {
	ID        string
	IssuedAt  int64 // unix seconds
	ExpiresAt int64 // unix seconds
	Data      *Data
}
