package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "WIRECHAT"
	envConfigDefaultPath = "WIRECHAT_CLIENT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "client.yaml"
)

// Load resolves the client configuration and the path it was read from.
// Precedence: defaults < config file < WIRECHAT_* env vars; flags are applied
// by the caller through UpdateFrom. A missing file is created with the defaults.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()
	path := resolveConfigPath(explicitPath)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for key, value := range defaultValues(cfg) {
		v.SetDefault(key, value)
	}

	err := v.ReadInConfig()
	switch {
	case err == nil:
	case isMissingFile(err):
		seedConfigFile(logger, v, path, cfg)
	default:
		return cfg, path, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, path, nil
}

// defaultValues lists every key viper must know so env vars bind even when
// the file omits them.
func defaultValues(cfg Config) map[string]any {
	return map[string]any{
		"server_url":      cfg.ServerURL,
		"api_url":         cfg.APIURL,
		"token":           cfg.Token,
		"username":        cfg.Username,
		"user_id":         cfg.UserID,
		"log_level":       cfg.LogLevel,
		"join_timeout":    cfg.JoinTimeout,
		"sweep_interval":  cfg.SweepInterval,
		"request_timeout": cfg.RequestTimeout,
		"dial_timeout":    cfg.DialTimeout,
		"max_frame_bytes": cfg.MaxFrameBytes,
	}
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// seedConfigFile writes the defaults to path and reads them back. Failures
// only cost the user a config file, so they are logged and not returned.
func seedConfigFile(logger *zerolog.Logger, v *viper.Viper, path string, cfg Config) {
	if err := writeDefaultConfig(path, cfg); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to write default config")
		}
		return
	}
	if logger != nil {
		logger.Info().Str("path", path).Msg("created default config")
	}
	if err := v.ReadInConfig(); err != nil && logger != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to read freshly written config")
	}
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wirechat", defaultConfigName)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
