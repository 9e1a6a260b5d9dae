// Package config resolves process-level settings for cortexd.
//
// Durable application settings (theme, capture limits, batch sizes) live in
// the app_config table; this package only covers what the process needs
// before the store is open: paths, the sidecar launch command, and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	// DataDir is the app data directory holding cortex.db, shell_hooks/,
	// the daemon socket and the log file.
	DataDir string `mapstructure:"data_dir"`
	// SocketPath is the unix socket the command surface listens on.
	// Defaults to <DataDir>/cortexd.sock.
	SocketPath string `mapstructure:"socket_path"`
	// SidecarCommand is the program (plus leading args) used to launch the
	// embedding sidecar. --host/--port are appended by the manager.
	SidecarCommand []string `mapstructure:"sidecar_command"`
	// SidecarPort overrides the app_config sidecar_port when nonzero.
	SidecarPort int    `mapstructure:"sidecar_port"`
	LogLevel    string `mapstructure:"log_level"`
	LogJSON     bool   `mapstructure:"log_json"`
}

// Load reads configuration from <dataDir>/config.yaml (if present) and
// CORTEX_* environment variables. An empty dataDir resolves to the
// OS-appropriate default.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	v := viper.New()
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("socket_path", "")
	v.SetDefault("sidecar_command", []string{"cortex-sidecar"})
	v.SetDefault("sidecar_port", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetEnvPrefix("CORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(cfg.DataDir, "cortexd.sock")
	}
	return &cfg, nil
}

// DefaultDataDir returns the OS-appropriate app data directory for cortex.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ".cortex"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "cortex")
}

// DatabasePath returns the SQLite database path under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "cortex.db")
}

// LogPath returns the daemon log file path under the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "cortexd.log")
}

// LockPath returns the single-instance lock file path under the data dir.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "cortexd.lock")
}
