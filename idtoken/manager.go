package idtoken

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultLifetime is the identity token lifetime.
	DefaultLifetime = time.Hour
	// DefaultAudience is the audience expected by the document database.
	DefaultAudience = "agentcanvas"
	// GeneratedKeyBits is the size of keys made by [GenerateKey].
	GeneratedKeyBits = 2048
)

// Config configures a Manager.
type Config struct {
	Issuer   string
	Audience string
	Lifetime time.Duration
	Leeway   time.Duration
	// PrivateKeyPEM is a PKCS#1 or PKCS#8 RSA key. When empty a key is
	// generated at startup and tokens stop verifying after a restart.
	PrivateKeyPEM []byte
	// KeyID defaults to the RFC 7638 thumbprint of the public key.
	KeyID string
	// Now overrides the clock.
	Now func() time.Time
}

// Subject is the user a token is minted for.
type Subject struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// Claims are the identity token claims.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Manager mints and parses identity tokens.
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	config    Config
	key       *rsa.PrivateKey
	generated bool
}

// NewManager validates cfg and loads or generates the signing key.
func NewManager(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("idtoken: issuer is required")
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Lifetime < 0 || cfg.Lifetime > 24*time.Hour {
		return nil, errors.New("idtoken: invalid lifetime configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("idtoken: invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg}
	if len(cfg.PrivateKeyPEM) > 0 {
		key, err := ParsePrivateKey(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		m.key = key
	} else {
		key, err := GenerateKey()
		if err != nil {
			return nil, err
		}
		m.key = key
		m.generated = true
	}
	if key := &m.key.PublicKey; key.N.BitLen() < GeneratedKeyBits {
		return nil, fmt.Errorf("idtoken: rsa key must be at least %d bits", GeneratedKeyBits)
	}

	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.KeyID == "" {
		kid, err := Thumbprint(&m.key.PublicKey)
		if err != nil {
			return nil, err
		}
		cfg.KeyID = kid
	}
	m.config = cfg
	return m, nil
}

// Issuer returns the iss claim.
func (m *Manager) Issuer() string { return m.config.Issuer }

// Audience returns the aud claim.
func (m *Manager) Audience() string { return m.config.Audience }

// KeyID returns the kid header value.
func (m *Manager) KeyID() string { return m.config.KeyID }

// Lifetime returns the token lifetime.
func (m *Manager) Lifetime() time.Duration { return m.config.Lifetime }

// Generated reports whether the signing key was generated at startup.
func (m *Manager) Generated() bool { return m.generated }

// PublicKey returns the verification key.
func (m *Manager) PublicKey() *rsa.PublicKey { return &m.key.PublicKey }

// Mint signs a token for s issued at now. It returns the token and its
// absolute expiry.
func (m *Manager) Mint(s Subject, now time.Time) (string, time.Time, error) {
	if s.ID == "" {
		return "", time.Time{}, errors.New("idtoken: subject id is required")
	}
	exp := now.Add(m.config.Lifetime)
	claims := Claims{
		Email:   s.Email,
		Name:    s.Name,
		Picture: s.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   s.ID,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.config.KeyID

	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("idtoken: sign: %w", err)
	}
	return signed, exp.Truncate(time.Second), nil
}

// Parse verifies tokenStr against the manager's own key.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
		return &m.key.PublicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// JWKS returns the public key set.
func (m *Manager) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &m.key.PublicKey,
		KeyID:     m.config.KeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
}

// JWKSJSON returns the JWKS document body.
func (m *Manager) JWKSJSON() ([]byte, error) {
	return json.Marshal(m.JWKS())
}

// PrivateKeyPEM returns the signing key as PKCS#8 PEM.
func (m *Manager) PrivateKeyPEM() ([]byte, error) {
	return EncodePrivateKey(m.key)
}

// ExpiryOf reads exp from a token without verifying it. It is used only to
// schedule refresh of tokens issued by someone else.
func ExpiryOf(tokenStr string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// GenerateKey returns a fresh RSA signing key.
func GenerateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, GeneratedKeyBits)
	if err != nil {
		return nil, fmt.Errorf("idtoken: generate key: %w", err)
	}
	return key, nil
}

// ParsePrivateKey accepts PKCS#1 or PKCS#8 PEM.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, errors.New("idtoken: invalid rsa private key")
	}
	return key, nil
}

// EncodePrivateKey renders key as PKCS#8 PEM.
func EncodePrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// Thumbprint returns the base64url RFC 7638 SHA-256 thumbprint of pub.
func Thumbprint(pub *rsa.PublicKey) (string, error) {
	tp, err := (&jose.JSONWebKey{Key: pub}).Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("idtoken: thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}
