package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest accepted session secret, in characters.
const MinSecretLength = 32

// KeySize is the derived content-encryption key size in bytes (A256GCM).
const KeySize = 32

const (
	keySalt = "agentcanvas.session.v1"
	keyInfo = "agentcanvas session cookie A256GCM"
)

// ErrWeakSecret is returned when the session secret is missing or shorter
// than MinSecretLength. It is a configuration error and must stop startup.
var ErrWeakSecret = errors.New("session secret must be at least 32 characters")

// ValidateSecret reports ErrWeakSecret for absent or short secrets.
func ValidateSecret(secret string) error {
	if len([]rune(secret)) < MinSecretLength {
		return ErrWeakSecret
	}
	return nil
}

// DeriveKey derives the 256-bit content key for secret using HKDF-SHA256 with
// a fixed application salt. The result is deterministic per secret.
func DeriveKey(secret string) ([]byte, error) {
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, []byte(secret), []byte(keySalt), []byte(keyInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// Keyring caches the key derived from the current secret. A different secret
// replaces the cached entry, so a hot-reloaded secret takes effect on the
// next call and every token sealed under the old secret stops opening.
//
// Keyring is safe for concurrent use. The zero value is ready to use.
type Keyring struct {
	mu          sync.Mutex
	fingerprint [sha256.Size]byte
	key         []byte
	derivations uint64
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// Key returns the derived key for secret, deriving it only when the secret
// differs from the cached one.
func (k *Keyring) Key(secret string) ([]byte, error) {
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	fp := sha256.Sum256([]byte(secret))

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key != nil && subtle.ConstantTimeCompare(fp[:], k.fingerprint[:]) == 1 {
		return k.key, nil
	}

	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	k.fingerprint = fp
	k.key = key
	k.derivations++
	return key, nil
}

// Reset drops the cached key.
func (k *Keyring) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = nil
	k.fingerprint = [sha256.Size]byte{}
}

// Derivations returns how many times a key was derived. Used by tests and
// the bench command to confirm the cache is hit.
func (k *Keyring) Derivations() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.derivations
}
