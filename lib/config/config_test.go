package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	viper.Reset()
	CfgFile = ""
	t.Cleanup(func() {
		viper.Reset()
		CfgFile = ""
	})
}

func TestCurrentConfig_DefaultsRoundTrip(t *testing.T) {
	reset(t)
	setDefaults()

	cfg := CurrentConfig()
	assert.Equal(t, Defaults(), *cfg)
	assert.Equal(t, "login.oscar.aol.com", cfg.Oscar.LoginHost)
	assert.Equal(t, 5190, cfg.Oscar.LoginPort)
	assert.Equal(t, uint16(3036), cfg.Oscar.Client.Build)
	assert.Equal(t, 15*time.Minute, cfg.Oscar.RequestTTL)
}

func TestInitConfig_CreatesDefaultFile(t *testing.T) {
	reset(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, InitConfig())
	file := filepath.Join(home, BaseDirName, "config.yaml")
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second load reads the file just written.
	viper.Reset()
	require.NoError(t, InitConfig())
	assert.Equal(t, file, viper.ConfigFileUsed())
	assert.Equal(t, Defaults(), *CurrentConfig())
}

func TestInitConfig_ReadsFileAndEnv(t *testing.T) {
	reset(t)
	file := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`oscar:
  screenname: Relay Bot
  password: secret
  send_to: friend
  keepalive_interval: 30s
  client:
    build: 4000
`), 0o600))
	CfgFile = file
	t.Setenv("GO_OSCAR_OSCAR_LOGIN_HOST", "oscar.example")

	require.NoError(t, InitConfig())
	cfg := CurrentConfig()
	assert.Equal(t, "Relay Bot", cfg.Oscar.Screenname)
	assert.Equal(t, "friend", cfg.Oscar.SendTo)
	assert.Equal(t, 30*time.Second, cfg.Oscar.KeepaliveInterval)
	assert.Equal(t, uint16(4000), cfg.Oscar.Client.Build)
	assert.Equal(t, uint16(5), cfg.Oscar.Client.Major)
	assert.Equal(t, "oscar.example", cfg.Oscar.LoginHost)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint16(4000), cfg.Oscar.Client.ClientInfo().Build)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	reset(t)
	CfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.ErrorIs(t, InitConfig(), ErrConfigNotFound)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, cfg.Validate())

	cfg.Oscar.Screenname = "me"
	cfg.Oscar.Password = "pw"
	assert.NoError(t, cfg.Validate())

	cfg.Oscar.LoginPort = 70000
	assert.Error(t, cfg.Validate())
}
