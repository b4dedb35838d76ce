package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "/metrics", cfg.MetricsPath)
	require.Equal(t, "PPUSD", cfg.Genesis.Token)
	require.EqualValues(t, 30*24*60*60, cfg.Genesis.MaxDurationSecs)
	require.EqualValues(t, 30*60, cfg.Genesis.FiatTimeoutSecs)

	// The default file is written out and loads back identically.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = "0.0.0.0:9000"

[Genesis]
Token = "ppars"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, "/metrics", cfg.MetricsPath)
	require.Equal(t, "ppars", cfg.Genesis.Token)
	require.NotZero(t, cfg.Genesis.FiatTimeoutSecs)
}

func TestLoadRejectsBrokenAllocations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Genesis]
[[Genesis.Allocations]]
Address = "ply1example"
Amount = ""
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadGenesisAllocations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Genesis]
Admin = "ply1admin"
[[Genesis.Allocations]]
Address = "ply1example"
Amount = "1000000"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Genesis.Allocations, 1)
	require.Equal(t, "1000000", cfg.Genesis.Allocations[0].Amount)
}
