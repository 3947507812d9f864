package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// Lifetime is the absolute session lifetime sealed into every token.
const Lifetime = 7 * 24 * time.Hour

var (
	keyAlgorithms     = []jose.KeyAlgorithm{jose.DIRECT}
	contentEncryption = []jose.ContentEncryption{jose.A256GCM}
)

type sealedClaims struct {
	josejwt.Claims
	Session *Data `json:"ses"`
}

// Codec seals Data into compact JWE tokens and opens them again.
//
// Codec is safe for concurrent use after construction.
type Codec struct {
	secret   func() string
	keys     *Keyring
	lifetime time.Duration
	now      func() time.Time
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLifetime overrides the sealed session lifetime.
func WithLifetime(d time.Duration) CodecOption {
	return func(c *Codec) {
		if d > 0 {
			c.lifetime = d
		}
	}
}

// WithSecretSource reads the secret on every call instead of pinning the
// constructor argument. The keyring re-derives when the value changes.
func WithSecretSource(fn func() string) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.secret = fn
		}
	}
}

// WithKeyring shares a keyring between codecs.
func WithKeyring(k *Keyring) CodecOption {
	return func(c *Codec) {
		if k != nil {
			c.keys = k
		}
	}
}

// NewCodec validates secret and derives its key up front so that a weak or
// missing secret fails at startup rather than on the first request.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	c := &Codec{
		secret:   func() string { return secret },
		keys:     NewKeyring(),
		lifetime: Lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.keys.Key(c.secret()); err != nil {
		return nil, err
	}
	return c, nil
}

// Lifetime returns the sealed session lifetime.
func (c *Codec) Lifetime() time.Duration {
	return c.lifetime
}

// Encode seals d with a fresh token id, iat = now and exp = now + lifetime.
func (c *Codec) Encode(d *Data) (string, error) {
	now := c.now()
	return c.EncodeUntil(d, now, now.Add(c.lifetime))
}

// EncodeUntil seals d with explicit issue and expiry times.
func (c *Codec) EncodeUntil(d *Data, issuedAt, expiresAt time.Time) (string, error) {
	if d == nil {
		return "", errors.New("nil session data")
	}
	key, err := c.keys.Key(c.secret())
	if err != nil {
		return "", err
	}

	enc, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: key},
		(&jose.EncrypterOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("session encrypter: %w", err)
	}

	claims := sealedClaims{
		Claims: josejwt.Claims{
			ID:       uuid.NewString(),
			IssuedAt: josejwt.NewNumericDate(issuedAt),
			Expiry:   josejwt.NewNumericDate(expiresAt),
		},
		Session: d,
	}

	token, err := josejwt.Encrypted(enc).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("seal session: %w", err)
	}
	return token, nil
}

// Decode opens token and returns its record. Any failure yields (nil, false).
func (c *Codec) Decode(token string) (*Data, bool) {
	env, ok := c.Open(token)
	if !ok {
		return nil, false
	}
	return env.Data, true
}

// Open is Decode plus the registered claims, for callers that need the
// token id or expiry (revocation, cookie refresh).
func (c *Codec) Open(token string) (*Envelope, bool) {
	if !canonical(token) {
		return nil, false
	}
	key, err := c.keys.Key(c.secret())
	if err != nil {
		return nil, false
	}

	parsed, err := josejwt.ParseEncrypted(token, keyAlgorithms, contentEncryption)
	if err != nil {
		return nil, false
	}

	var claims sealedClaims
	if err := parsed.Claims(key, &claims); err != nil {
		return nil, false
	}
	if claims.Expiry == nil || claims.IssuedAt == nil || claims.Session == nil {
		return nil, false
	}
	if err := claims.Claims.ValidateWithLeeway(josejwt.Expected{Time: c.now()}, 0); err != nil {
		return nil, false
	}

	return &Envelope{
		ID:        claims.ID,
		IssuedAt:  int64(*claims.IssuedAt),
		ExpiresAt: int64(*claims.Expiry),
		Data:      claims.Session,
	}, true
}

// canonical rejects anything that is not a five-part compact JWE with an
// empty key segment and strictly encoded base64url segments, so that no two
// distinct strings open to the same token.
func canonical(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		ch := token[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.':
		default:
			return false
		}
	}

	parts := strings.Split(token, ".")
	if len(parts) != 5 || parts[1] != "" {
		return false
	}
	strict := base64.RawURLEncoding.Strict()
	for _, i := range [...]int{0, 2, 3, 4} {
		if parts[i] == "" {
			return false
		}
		if _, err := strict.DecodeString(parts[i]); err != nil {
			return false
		}
	}
	return true
}
