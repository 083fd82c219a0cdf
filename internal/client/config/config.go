package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PHR"

const (
	KeyServer         = "server"
	KeyDatabase       = "database"
	KeyDiagLog        = "diag_log"
	KeyZone           = "zone"
	KeyRequestTimeout = "request_timeout"
	KeyFetchInterval  = "fetch_interval"
	KeyLogFormat      = "log_format"
	KeyLogLevel       = "log_level"
)

// Config holds runtime settings for the phr CLI.
type Config struct {
	Server         string        `mapstructure:"server"`
	Database       string        `mapstructure:"database"`
	DiagLog        string        `mapstructure:"diag_log"`
	Zone           string        `mapstructure:"zone"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	FetchInterval  time.Duration `mapstructure:"fetch_interval"`
	LogFormat      string        `mapstructure:"log_format"`
	LogLevel       string        `mapstructure:"log_level"`
}

// DataDir is where the store and the debug log live by default.
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "phr-data"
	}
	return filepath.Join(dir, "myhealthdata")
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	dir := DataDir()
	v.SetDefault(KeyServer, "127.0.0.1:50051")
	v.SetDefault(KeyDatabase, filepath.Join(dir, "phr.db"))
	v.SetDefault(KeyDiagLog, filepath.Join(dir, "share_debug.log"))
	v.SetDefault(KeyZone, common.DefaultZoneName)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyFetchInterval, 5*time.Minute)
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyLogLevel, "info")
}

// BindFlags declares the configuration flags on fs and binds them to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.StringP(KeyServer, "a", "", "address and port of the cloud server")
	fs.String(KeyDatabase, "", "path of the local database")
	fs.String(KeyDiagLog, "", "path of the share debug log")
	fs.String(KeyZone, "", "remote zone name")
	fs.Duration(KeyRequestTimeout, 0, "timeout for remote calls")
	fs.Duration(KeyFetchInterval, 0, "interval between fetches in watch mode")
	fs.String(KeyLogFormat, "", "log format: console, json or text")
	fs.String(KeyLogLevel, "", "log level: debug, info, warn or error")

	for _, k := range []string{KeyServer, KeyDatabase, KeyDiagLog, KeyZone, KeyRequestTimeout, KeyFetchInterval, KeyLogFormat, KeyLogLevel} {
		if err := v.BindPFlag(k, fs.Lookup(k)); err != nil {
			return fmt.Errorf("bind flag %s: %w", k, err)
		}
	}
	return nil
}

// Load resolves the configuration. configFile may be empty.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: %s is required", KeyServer)
	}
	if c.Database == "" {
		return fmt.Errorf("config: %s is required", KeyDatabase)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: %s must be positive", KeyRequestTimeout)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("config: %s must be positive", KeyFetchInterval)
	}
	return nil
}
