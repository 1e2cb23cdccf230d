package token

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestMintProducesHexPair(t *testing.T) {
	raw, hash, err := Mint()
	require.NoError(t, err)

	assert.Regexp(t, hex64, raw)
	assert.Regexp(t, hex64, hash)
	assert.NotEqual(t, raw, hash)

	sum := sha256.Sum256([]byte(raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)
}

func TestMintIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		raw, _, err := Mint()
		require.NoError(t, err)
		_, dup := seen[raw]
		require.False(t, dup)
		seen[raw] = struct{}{}
	}
}

func TestVerify(t *testing.T) {
	raw, hash, err := Mint()
	require.NoError(t, err)
	other, _, err := Mint()
	require.NoError(t, err)

	assert.True(t, Verify(raw, hash))
	assert.False(t, Verify(other, hash))
	assert.False(t, Verify(raw, ""))
	assert.False(t, Verify(raw, hash[:63]))
}
