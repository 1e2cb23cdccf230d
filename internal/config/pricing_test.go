package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPricingHolderDefaultsWhenMissing(t *testing.T) {
	holder, err := LoadPricingHolder(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultPricingConfig(), holder.Get())
}

func TestLoadPricingHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `pricing:
  storage_per_mb: 0.5
  email_rate: 0.002
  models:
    Small-Model:
      prompt_rate: 0.000001
      completion_rate: 0.000002
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), []byte(content), 0o600))

	holder, err := LoadPricingHolder(dir)
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 0.5, cfg.StoragePerMB)
	assert.Equal(t, 0.002, cfg.EmailRate)
	require.Contains(t, cfg.Models, "small-model")
	assert.Equal(t, 0.000002, cfg.Models["small-model"].CompletionRate)
}

func TestLoadPricingHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := `pricing:
  email_rate: -1
  models:
    small:
      prompt_rate: 0.1
      completion_rate: 0.1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), []byte(content), 0o600))

	_, err := LoadPricingHolder(dir)
	require.Error(t, err)
}

func TestNormalizeLockBackend(t *testing.T) {
	assert.Equal(t, LockBackendRedis, normalizeLockBackend(" Redis "))
	assert.Equal(t, LockBackendNone, normalizeLockBackend("none"))
	assert.Equal(t, LockBackendAdvisory, normalizeLockBackend("whatever"))
}
