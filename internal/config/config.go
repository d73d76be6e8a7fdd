package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// SourceConfig locates the knowledge base. It may be written as a bare string
// (a directory or an http(s) base URL) or as a table with dir or url.
type SourceConfig struct {
	Dir string `mapstructure:"dir"`
	URL string `mapstructure:"url"`
}

// Location returns the URL if set, otherwise the directory.
func (s SourceConfig) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Dir
}

type DataConfig struct {
	Source             SourceConfig `mapstructure:"source"`
	Root               string       `mapstructure:"root"`
	TimeoutSeconds     int          `mapstructure:"timeout_seconds"`
	PreloadConcurrency int          `mapstructure:"preload_concurrency"`
}

// Timeout is the HTTP source timeout; zero disables it.
func (d DataConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

type DaemonConfig struct {
	ExpirationSeconds int    `mapstructure:"expiration_seconds"`
	HTTPAddr          string `mapstructure:"http_addr"`
}

type Config struct {
	Data   DataConfig   `mapstructure:"data"`
	Daemon DaemonConfig `mapstructure:"daemon"`
}

// cacheBase returns the base cache directory for faultbook.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/faultbook as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "faultbook")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "faultbook")
	}
	return filepath.Join(os.TempDir(), "faultbook")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "faultbook", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "faultbook", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "faultbook"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "faultbook"))
	}

	viper.SetDefault("data.source", "data")
	viper.SetDefault("data.root", "categories.json")
	viper.SetDefault("data.timeout_seconds", 60)
	viper.SetDefault("data.preload_concurrency", 4)
	viper.SetDefault("daemon.expiration_seconds", 600)
	viper.SetDefault("daemon.http_addr", "")

	viper.SetEnvPrefix("FAULTBOOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func stringToSourceConfigHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(SourceConfig{}) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return parseSource(data.(string)), nil
		}
		return data, nil
	}
}

func parseSource(location string) SourceConfig {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return SourceConfig{URL: location}
	}
	return SourceConfig{Dir: location}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToSourceConfigHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveSourceDir(&config.Data.Source); err != nil {
		return nil, fmt.Errorf("failed to resolve data source: %w", err)
	}
	if config.Data.Source.Location() == "" {
		return nil, fmt.Errorf("data.source is empty")
	}
	if config.Data.PreloadConcurrency <= 0 {
		config.Data.PreloadConcurrency = 1
	}

	return &config, nil
}

// resolveSourceDir expands a leading ~/ in the data directory.
func resolveSourceDir(src *SourceConfig) error {
	if !strings.HasPrefix(src.Dir, "~/") {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("expanding %s: %w", src.Dir, err)
	}
	src.Dir = filepath.Join(home, src.Dir[2:])
	return nil
}
