package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads cfgFile, or tablemapper.yaml from the usual places when
// cfgFile is empty. A missing default file is not an error.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("tablemapper")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tablemapper/")
	}

	v.SetEnvPrefix("TABLEMAPPER") // env vars like TABLEMAPPER_RUNNER__WORKERS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("secrets.keychain_file", "tablemapper.keychain.yaml")
	v.SetDefault("secrets.key", "")
	v.SetDefault("secrets.env_prefix", "")
	v.SetDefault("runner.workers", 1)
	v.SetDefault("runner.queue_size", 64)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Runner.Workers < 1 {
		return nil, fmt.Errorf("runner.workers must be at least 1, got %d", cfg.Runner.Workers)
	}
	if cfg.Runner.QueueSize < 0 {
		return nil, fmt.Errorf("runner.queue_size must not be negative, got %d", cfg.Runner.QueueSize)
	}
	return &cfg, nil
}
