package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the dashctl configuration, read from
// ~/.config/dashctl/config.yaml, DASHCTL_* variables and flags.
type Config struct {
	Server    string        `mapstructure:"server"`
	Timeout   time.Duration `mapstructure:"timeout"`
	StateFile string        `mapstructure:"state_file"`
	// RedisURL moves the local state (cookies, timer, profile) into Redis so
	// several hosts share one session and one stopwatch.
	RedisURL string        `mapstructure:"redis_url"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Output   OutputConfig  `mapstructure:"output"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "dashctl")
	}
	return filepath.Join(".", ".dashctl")
}

// LoadConfig reads the configuration through v. Flags must already be
// bound to v by the caller.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		v.AddConfigPath("$HOME/.config/dashctl")
	}

	v.SetEnvPrefix("DASHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("timeout", 6*time.Second)
	v.SetDefault("state_file", filepath.Join(defaultConfigDir(), "state.json"))
	v.SetDefault("redis_url", "")
	v.SetDefault("logging.level", "warn")
	v.SetDefault("output.colors", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	u, err := url.Parse(strings.TrimSpace(cfg.Server))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server must be an http(s) URL, got %q", cfg.Server)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if cfg.RedisURL == "" && strings.TrimSpace(cfg.StateFile) == "" {
		return fmt.Errorf("state_file is required when redis_url is not set")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	return nil
}
