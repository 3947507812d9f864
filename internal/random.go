package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// StateSize is the raw size of an OAuth state value: 256 bits.
const StateSize = 32

// NewState returns a fresh base64url (no padding) OAuth state value.
func NewState() (string, error) {
	var raw [StateSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// WellFormedState reports whether s has the shape produced by NewState.
// It is used only to label audit events; acceptance is decided by equality.
func WellFormedState(s string) bool {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(s)
	return err == nil && len(raw) == StateSize
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid random size")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
