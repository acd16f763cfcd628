package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tillfold.yaml")

	require.NoError(t, Save(path, Default()))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Policy.DepositLimit.Equal(Default().Policy.DepositLimit.Decimal))
	assert.True(t, cfg.Policy.WithdrawLimit.Equal(Default().Policy.WithdrawLimit.Decimal))
	assert.Equal(t, 1, cfg.Policy.SplitToleranceCents)
	assert.Equal(t, 10, cfg.Policy.BcryptCost)
	assert.Equal(t, "tillfold.db", cfg.Storage.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_DecimalLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tillfold.yaml")

	yaml := "policy:\n  deposit_limit: \"2500.50\"\n  withdraw_limit: 1000\n  split_tolerance_cents: 2\n  bcrypt_cost: 4\nstorage:\n  path: books.db\nlog:\n  level: debug\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2500.5", cfg.Policy.DepositLimit.String())
	assert.Equal(t, "1000", cfg.Policy.WithdrawLimit.String())
	assert.Equal(t, "books.db", cfg.Storage.Path)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tillfold.yaml")
	require.NoError(t, Save(path, Default()))

	t.Setenv("TILLFOLD_WITHDRAW_LIMIT", "75")
	t.Setenv("TILLFOLD_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "75", cfg.Policy.WithdrawLimit.String())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
