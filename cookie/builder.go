package cookie

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// SessionName is the session cookie name.
	SessionName = "session"
	// StateName is the OAuth state cookie name.
	StateName = "oauth_state"

	// SessionMaxAge is the default session cookie lifetime.
	SessionMaxAge = 7 * 24 * time.Hour
	// StateMaxAge is the OAuth state cookie lifetime.
	StateMaxAge = 10 * time.Minute
)

// ErrInvalidBaseURL is returned when the base URL cannot be parsed.
var ErrInvalidBaseURL = errors.New("cookie: invalid base url")

// Builder produces Set-Cookie values. It is immutable and safe for
// concurrent use.
type Builder struct {
	secure        bool
	domain        string
	sessionMaxAge time.Duration
}

// NewBuilder decides the Secure attribute from production and the scheme of
// baseURL. An empty baseURL is allowed and counts as not https.
func NewBuilder(baseURL string, production bool) (*Builder, error) {
	secure := production
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, ErrInvalidBaseURL
		}
		if strings.EqualFold(u.Scheme, "https") {
			secure = true
		}
	}
	return &Builder{secure: secure, sessionMaxAge: SessionMaxAge}, nil
}

// WithDomain returns a copy of b that sets the Domain attribute.
func (b *Builder) WithDomain(domain string) *Builder {
	out := *b
	out.domain = domain
	return &out
}

// WithSessionMaxAge returns a copy of b whose session cookie lives for d,
// rounded down to whole seconds. d <= 0 keeps the current value.
func (b *Builder) WithSessionMaxAge(d time.Duration) *Builder {
	out := *b
	if d > 0 {
		out.sessionMaxAge = d
	}
	return &out
}

// SessionMaxAge returns the session cookie lifetime.
func (b *Builder) SessionMaxAge() time.Duration {
	return b.sessionMaxAge
}

// Secure reports whether cookies carry the Secure attribute.
func (b *Builder) Secure() bool {
	return b.secure
}

// Session returns the Set-Cookie value carrying an encoded session token.
func (b *Builder) Session(token string) string {
	return b.build(SessionName, token, b.sessionMaxAge)
}

// ClearSession returns a zero-lifetime session cookie.
func (b *Builder) ClearSession() string {
	return b.build(SessionName, "", 0)
}

// State returns the Set-Cookie value binding the browser to an OAuth state.
func (b *Builder) State(state string) string {
	return b.build(StateName, state, StateMaxAge)
}

// ClearState returns a zero-lifetime OAuth state cookie.
func (b *Builder) ClearState() string {
	return b.build(StateName, "", 0)
}

func (b *Builder) build(name, value string, maxAge time.Duration) string {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   b.domain,
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
	} else {
		// net/http renders a negative MaxAge as "Max-Age=0".
		c.MaxAge = -1
	}
	return c.String()
}

// Read returns the named cookie's value from r, or "" when absent.
func Read(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
