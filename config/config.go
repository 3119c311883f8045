// Package config loads service settings. Defaults are compiled in; a yaml
// file or NOISEDECK_* environment variables may override them.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultBindAddr          = "127.0.0.1:8080"
	DefaultMonitorIntervalMs = 50
	DefaultScanWindowMs      = 1500
)

type Config struct {
	BindAddr          string `mapstructure:"bind_addr"`
	LogDir            string `mapstructure:"log_dir"`
	MonitorIntervalMs int    `mapstructure:"monitor_interval_ms"`
	ScanWindowMs      int    `mapstructure:"scan_window_ms"`
}

// Load reads configuration from path, or from the default search locations
// when path is empty. A missing file is not an error; a broken one is.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("bind_addr", DefaultBindAddr)
	v.SetDefault("monitor_interval_ms", DefaultMonitorIntervalMs)
	v.SetDefault("scan_window_ms", DefaultScanWindowMs)
	v.SetEnvPrefix("NOISEDECK")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("noisedeck")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/noisedeck")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
