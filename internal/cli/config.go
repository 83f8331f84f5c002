package cli

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigFileName is the project configuration file looked up in the
// working directory when --config is not given.
const ConfigFileName = "rmlplan.toml"

// Config holds settings shared by commands. Precedence (lowest to
// highest): defaults < rmlplan.toml < RMLPLAN_* environment < flags.
type Config struct {
	OutputDir string `mapstructure:"output_dir"`
	DB        string `mapstructure:"db"`
	Dot       bool   `mapstructure:"dot"`
	Pretty    bool   `mapstructure:"pretty"`
	Format    string `mapstructure:"format"`
	Verbose   bool   `mapstructure:"verbose"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "")
	v.SetDefault("db", "rmlplan.db")
	v.SetDefault("dot", false)
	v.SetDefault("pretty", false)
	v.SetDefault("format", "text")
	v.SetDefault("verbose", false)
}

// NewViper builds the configuration sources. An explicit configFile must
// exist; otherwise rmlplan.toml in the working directory is read when
// present.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix("RMLPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
		return v, nil
	}

	v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".toml"))
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "failed to read %s", ConfigFileName)
		}
	}
	return v, nil
}

// bindFlags lets set flags override the configuration. Flag names use
// dashes, configuration keys underscores.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), f); err != nil {
			return errors.Wrapf(err, "bind flag %s", name)
		}
	}
	return nil
}

// loadConfig unmarshals the settings of v.
func loadConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}
