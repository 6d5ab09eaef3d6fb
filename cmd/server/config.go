package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config is the server configuration, read from webdb.yaml with flag
// overrides on top.
type Config struct {
	Listen string `mapstructure:"listen"`
	Driver string `mapstructure:"driver"`
	Target string `mapstructure:"target"`
	Auth   struct {
		Enabled   bool   `mapstructure:"enabled"`
		JWTSecret string `mapstructure:"jwt_secret"`
		Issuer    string `mapstructure:"issuer"`
		Audience  string `mapstructure:"audience"`
	} `mapstructure:"auth"`
}

// loadConfig reads the config file when present; missing files leave
// the defaults in place.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen", ":7432")
	v.SetDefault("driver", "memory")
	v.SetDefault("target", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("webdb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/webdb")
	}
	v.SetEnvPrefix("WEBDB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
