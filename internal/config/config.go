// Package config loads nowcast-agentd's configuration from environment
// variables (prefix NOWCAST_) and an optional YAML file, via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/nowcast-run/agent/internal/logging"
)

var log = logging.L("config")

type Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`

	SlotCount int `mapstructure:"slot_count"`

	ArtworkBindHost string `mapstructure:"artwork_bind_host"`
	TunnelMode      string `mapstructure:"tunnel_mode"` // "cloudflared" or "managed"
	CloudflaredPath string `mapstructure:"cloudflared_path"`

	// macOS media helper locations; empty uses the bundled defaults.
	MacHelperScriptPath    string `mapstructure:"mac_helper_script_path"`
	MacHelperFrameworkPath string `mapstructure:"mac_helper_framework_path"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		SlotCount:       10,
		ArtworkBindHost: "127.0.0.1:0",
		TunnelMode:      "cloudflared",
		CloudflaredPath: "cloudflared",
		LogLevel:        "info",
		LogFormat:       "text",
		LogMaxSizeMB:    50,
		LogMaxBackups:   3,
	}
}

// Load reads configuration from cfgFile if given, otherwise from
// "nowcast.yaml" in configDir()/"." , layered under NOWCAST_-prefixed
// environment variables. Validation warnings are logged; fatal errors
// abort loading.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("nowcast")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NOWCAST")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", logging.KeyError, err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", logging.KeyError, err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("client_id", cfg.ClientID)
	viper.Set("client_secret", cfg.ClientSecret)
	viper.Set("token_url", cfg.TokenURL)
	viper.Set("slot_count", cfg.SlotCount)
	viper.Set("artwork_bind_host", cfg.ArtworkBindHost)
	viper.Set("tunnel_mode", cfg.TunnelMode)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		if dir := filepath.Dir(cfgPath); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "nowcast.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict to owner-only access: contains the OAuth client secret.
	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the platform-specific data directory.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "nowcast", "data")
	case "darwin":
		return "/Library/Application Support/nowcast/data"
	default:
		return "/var/lib/nowcast"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "nowcast")
	case "darwin":
		return "/Library/Application Support/nowcast"
	default:
		return "/etc/nowcast"
	}
}
