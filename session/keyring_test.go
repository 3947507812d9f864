package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyIsDeterministic(t *testing.T) {
	k1, err := DeriveKey(testSecret)
	require.NoError(t, err)
	k2, err := DeriveKey(testSecret)
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, []byte(testSecret), k1)
}

func TestDeriveKeyDiffersPerSecret(t *testing.T) {
	k1, err := DeriveKey(testSecret)
	require.NoError(t, err)
	k2, err := DeriveKey(strings.Repeat("b", 32))
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestValidateSecretCountsCharacters(t *testing.T) {
	assert.ErrorIs(t, ValidateSecret(""), ErrWeakSecret)
	assert.ErrorIs(t, ValidateSecret(strings.Repeat("a", 31)), ErrWeakSecret)
	assert.NoError(t, ValidateSecret(strings.Repeat("a", 32)))
	assert.ErrorIs(t, ValidateSecret(strings.Repeat("é", 16)), ErrWeakSecret)
}

func TestKeyringCachesUntilSecretChanges(t *testing.T) {
	k := NewKeyring()

	first, err := k.Key(testSecret)
	require.NoError(t, err)
	again, err := k.Key(testSecret)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, uint64(1), k.Derivations())

	other, err := k.Key(strings.Repeat("c", 32))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Equal(t, uint64(2), k.Derivations())

	k.Reset()
	_, err = k.Key(strings.Repeat("c", 32))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), k.Derivations())
}

func TestKeyringRejectsWeakSecret(t *testing.T) {
	_, err := NewKeyring().Key("too-short")
	assert.ErrorIs(t, err, ErrWeakSecret)
}
