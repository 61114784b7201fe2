package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-i2p/logger"
	"github.com/minecraftim/go-oscar/lib/util"
	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// CfgFile overrides the default config file path when set.
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const (
	BaseDirName = ".go-oscar"
	EnvPrefix   = "GO_OSCAR"
)

var ErrConfigNotFound = errors.New("config: file not found")

// InitConfig sets defaults and reads the config file, creating it when the
// default path does not exist yet.
func InitConfig() error {
	if CfgFile != "" {
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	return handleConfigFile()
}

func setDefaults() {
	d := Defaults().Oscar
	viper.SetDefault("oscar.login_host", d.LoginHost)
	viper.SetDefault("oscar.login_port", d.LoginPort)
	viper.SetDefault("oscar.screenname", d.Screenname)
	viper.SetDefault("oscar.password", d.Password)
	viper.SetDefault("oscar.send_to", d.SendTo)
	viper.SetDefault("oscar.request_ttl", d.RequestTTL)
	viper.SetDefault("oscar.keepalive_interval", d.KeepaliveInterval)
	viper.SetDefault("oscar.connect_timeout", d.ConnectTimeout)
	viper.SetDefault("oscar.rate_limit", d.RateLimit)

	viper.SetDefault("oscar.client.name", d.Client.Name)
	viper.SetDefault("oscar.client.id", d.Client.ID)
	viper.SetDefault("oscar.client.major", d.Client.Major)
	viper.SetDefault("oscar.client.minor", d.Client.Minor)
	viper.SetDefault("oscar.client.point", d.Client.Point)
	viper.SetDefault("oscar.client.build", d.Client.Build)
	viper.SetDefault("oscar.client.distribution", d.Client.Distribution)
	viper.SetDefault("oscar.client.language", d.Client.Language)
	viper.SetDefault("oscar.client.country", d.Client.Country)
}

// CurrentConfig resolves the current viper settings.
func CurrentConfig() *Config {
	return &Config{Oscar: OscarConfig{
		LoginHost:  viper.GetString("oscar.login_host"),
		LoginPort:  viper.GetInt("oscar.login_port"),
		Screenname: viper.GetString("oscar.screenname"),
		Password:   viper.GetString("oscar.password"),
		SendTo:     viper.GetString("oscar.send_to"),
		Client: ClientConfig{
			Name:         viper.GetString("oscar.client.name"),
			ID:           viper.GetUint16("oscar.client.id"),
			Major:        viper.GetUint16("oscar.client.major"),
			Minor:        viper.GetUint16("oscar.client.minor"),
			Point:        viper.GetUint16("oscar.client.point"),
			Build:        viper.GetUint16("oscar.client.build"),
			Distribution: viper.GetUint32("oscar.client.distribution"),
			Language:     viper.GetString("oscar.client.language"),
			Country:      viper.GetString("oscar.client.country"),
		},
		RequestTTL:        viper.GetDuration("oscar.request_ttl"),
		KeepaliveInterval: viper.GetDuration("oscar.keepalive_interval"),
		ConnectTimeout:    viper.GetDuration("oscar.connect_timeout"),
		RateLimit:         viper.GetBool("oscar.rate_limit"),
	}}
}

// Validate reports settings a login cannot proceed without.
func (c *Config) Validate() error {
	switch {
	case c.Oscar.LoginHost == "":
		return oops.Errorf("oscar.login_host is empty")
	case c.Oscar.LoginPort <= 0 || c.Oscar.LoginPort > 0xffff:
		return oops.Errorf("oscar.login_port %d out of range", c.Oscar.LoginPort)
	case c.Oscar.Screenname == "":
		return oops.Errorf("oscar.screenname is empty")
	case c.Oscar.Password == "":
		return oops.Errorf("oscar.password is empty")
	}
	return nil
}

func handleConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		log.WithFields(logger.Fields{"at": "config.handleConfigFile", "file": viper.ConfigFileUsed()}).Debug("config_file_loaded")
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return oops.Wrapf(err, "read config file")
	}
	if CfgFile != "" {
		return oops.Wrapf(ErrConfigNotFound, "%s", CfgFile)
	}
	return createDefaultConfig(BuildDirPath())
}

func createDefaultConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Wrapf(err, "create config directory %s", dir)
	}
	file := filepath.Join(dir, "config.yaml")
	if util.FileExists(file) {
		return oops.Errorf("config %s exists but was not loaded", file)
	}
	if err := WriteConfig(file, viper.AllSettings()); err != nil {
		return err
	}
	log.WithFields(logger.Fields{"at": "config.createDefaultConfig", "file": file}).Debug("default_config_created")
	return nil
}

// WriteConfig writes settings to file as YAML, readable only by the owner
// because it may hold a password.
func WriteConfig(file string, settings map[string]any) error {
	out, err := yaml.Marshal(settings)
	if err != nil {
		return oops.Wrapf(err, "encode config")
	}
	if err := os.WriteFile(file, out, 0o600); err != nil {
		return oops.Wrapf(err, "write config %s", file)
	}
	return nil
}

// BuildDirPath returns $HOME/.go-oscar.
func BuildDirPath() string {
	return filepath.Join(util.UserHome(), BaseDirName)
}
