package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SaveConfig writes cfg to funnel.toml and returns the path written.
func SaveConfig(cfg *Config) (string, error) {
	configPath := getConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")

	if cfg.Port != "" {
		v.Set(portSetting.key, cfg.Port)
	}
	if cfg.TrackingAPIURL != "" {
		v.Set(trackingURLSetting.key, cfg.TrackingAPIURL)
	}
	if cfg.DefaultPhoneNumber != "" {
		v.Set(phoneSetting.key, cfg.DefaultPhoneNumber)
	}
	if cfg.NumberPoolTag != "" {
		v.Set(poolTagSetting.key, cfg.NumberPoolTag)
	}
	if len(cfg.TrustedOrigins) > 0 {
		v.Set(originsSetting.key, strings.Join(cfg.TrustedOrigins, ","))
	}
	if len(cfg.InjectScriptPaths) > 0 {
		v.Set(injectSetting.key, strings.Join(cfg.InjectScriptPaths, ","))
	}
	if cfg.Poll.Fast > 0 {
		v.Set(pollFastSetting.key, cfg.Poll.Fast.String())
	}
	if cfg.Poll.Window > 0 {
		v.Set(pollWindowSetting.key, cfg.Poll.Window.String())
	}
	if cfg.Poll.Slow > 0 {
		v.Set(pollSlowSetting.key, cfg.Poll.Slow.String())
	}

	if cfg.MinCallDuration > 0 {
		v.Set(minCallSetting.key, cfg.MinCallDuration.String())
	}
	if cfg.LogLevel != "" {
		v.Set(logLevelSetting.key, cfg.LogLevel)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return "", fmt.Errorf("failed to save config: %w", err)
	}

	return configPath, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if _, err := os.Stat("funnel.toml"); err == nil {
		return "funnel.toml"
	}

	if dir := configDir(); dir != "" {
		return filepath.Join(dir, "funnel.toml")
	}

	return "funnel.toml"
}
