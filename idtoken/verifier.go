package idtoken

import (
	"context"
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrInvalidToken is returned for any identity token that fails
// verification.
var ErrInvalidToken = errors.New("invalid identity token")

// Verifier checks identity tokens with the same rules as the downstream
// database: RS256, issuer, audience and expiry.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier builds a Verifier for tokens from issuer, aimed at audience,
// signed by any of keys.
func NewVerifier(issuer, audience string, keys []*rsa.PublicKey, now func() time.Time) *Verifier {
	pub := make([]crypto.PublicKey, 0, len(keys))
	for _, k := range keys {
		pub = append(pub, k)
	}
	cfg := &oidc.Config{
		ClientID:             audience,
		SupportedSigningAlgs: []string{oidc.RS256},
	}
	if now != nil {
		cfg.Now = now
	}
	return &Verifier{
		verifier: oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: pub}, cfg),
	}
}

// VerifierFor returns a Verifier trusting m's key.
func VerifierFor(m *Manager) *Verifier {
	return NewVerifier(m.Issuer(), m.Audience(), []*rsa.PublicKey{m.PublicKey()}, m.config.Now)
}

// Verify checks raw and returns its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c Claims
	if err := tok.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &c, nil
}
