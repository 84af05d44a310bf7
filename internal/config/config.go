package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "NOVARDB"

type NovaRDBConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Mode            string `mapstructure:"mode"`
		DataDir         string `mapstructure:"data_dir"`
		DefaultDatabase string `mapstructure:"default_database"`
	} `mapstructure:"storage"`

	Server struct {
		Addr      string  `mapstructure:"addr"`
		RateLimit float64 `mapstructure:"rate_limit"` // requests per second per connection
		RateBurst int     `mapstructure:"rate_burst"`
		Debug     bool    `mapstructure:"debug"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "novardb")
	v.SetDefault("storage.mode", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.default_database", "default")
	v.SetDefault("server.addr", "127.0.0.1:7070")
	v.SetDefault("server.rate_limit", 200.0)
	v.SetDefault("server.rate_burst", 50)
	v.SetDefault("server.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads an optional YAML file at path, then applies NOVARDB_*
// environment overrides (e.g. NOVARDB_SERVER_ADDR). A .env file in the working
// directory is loaded into the environment first when present. An empty path
// means defaults plus environment only.
func LoadConfig(path string) (*NovaRDBConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaRDBConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NovaRDBConfig) Validate() error {
	var errs []error
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be >= 0, got %v", c.Server.RateLimit))
	}
	if c.Server.RateBurst < 1 && c.Server.RateLimit > 0 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be >= 1, got %d", c.Server.RateBurst))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
