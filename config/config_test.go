package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krugbar/barchain/config"
	"github.com/krugbar/barchain/crypto/certgen"
)

func TestConfigSaveLoadRoundtrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NodeID = "node7"
	cfg.Validators = []string{"aa", "bb"}
	cfg.Genesis.Alloc = map[string]uint64{"aa": 500}

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.Save(cfg, path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node7", loaded.NodeID)
	assert.Equal(t, []string{"aa", "bb"}, loaded.Validators)
	assert.Equal(t, uint64(500), loaded.Genesis.Alloc["aa"])
	assert.Equal(t, "barchain-dev", loaded.Genesis.ChainID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadTLSConfigNilWhenUnset(t *testing.T) {
	tlsCfg, err := config.LoadTLSConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)

	tlsCfg, err = config.LoadTLSConfig(&config.TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

// Generated certificates must load straight into a working mTLS config.
func TestLoadTLSConfigWithGeneratedCerts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, certgen.GenerateAll(dir, "node0", nil))

	tlsCfg, err := config.LoadTLSConfig(&config.TLSConfig{
		CACert:   filepath.Join(dir, "ca.crt"),
		NodeCert: filepath.Join(dir, "node0.crt"),
		NodeKey:  filepath.Join(dir, "node0.key"),
	})
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.NotEmpty(t, tlsCfg.Certificates)
}
