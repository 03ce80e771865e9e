package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seuros/funnel/internal/numberpool"
	"github.com/seuros/funnel/internal/relay"
)

// PixelIDEnv holds the tracking account identifier. It is read on every
// request, never cached.
const PixelIDEnv = "BIGO_PIXEL_ID"

// DefaultPhoneNumber is the static fallback rendered on landing pages.
const DefaultPhoneNumber = "+18554690274"

// Config holds application configuration
type Config struct {
	Port               string
	TrackingAPIURL     string
	DefaultPhoneNumber string
	NumberPoolTag      string
	TrustedOrigins     []string
	InjectScriptPaths  []string
	Poll               numberpool.Schedule
	// MinCallDuration is how long a visitor must be away after dialing for
	// the return to count as a completed call.
	MinCallDuration time.Duration
	LogLevel        string
}

// setting describes one configuration key: its config file key, the
// environment variable that can supply it, and the default.
type setting struct {
	key string
	env string
	def string
}

var (
	portSetting        = setting{"port", "PORT", "3000"}
	trackingURLSetting = setting{"tracking_api_url", "TRACKING_API_URL", relay.DefaultEndpoint}
	phoneSetting       = setting{"default_phone_number", "DEFAULT_PHONE_NUMBER", DefaultPhoneNumber}
	poolTagSetting     = setting{"number_pool_tag", "NUMBER_POOL_TAG", ""}
	originsSetting     = setting{"trusted_origins", "TRUSTED_ORIGINS", ""}
	injectSetting      = setting{"inject_script_paths", "INJECT_SCRIPT_PATHS", "/dinomedi"}
	pollFastSetting    = setting{"poll.fast_interval", "POLL_FAST_INTERVAL", "500ms"}
	pollWindowSetting  = setting{"poll.window", "POLL_WINDOW", "30s"}
	pollSlowSetting    = setting{"poll.slow_interval", "POLL_SLOW_INTERVAL", "3s"}
	minCallSetting     = setting{"min_call_duration", "MIN_CALL_DURATION", numberpool.DefaultMinCallDuration.String()}
	logLevelSetting    = setting{"log_level", "FUNNEL_LOG_LEVEL", "info"}
)

// Load reads configuration from the config file, then environment, then
// defaults.
func Load() (*Config, error) {
	return LoadWithOverrides("", "")
}

// LoadWithOverrides is Load with command line flags taking priority over
// every other source. Empty overrides are ignored.
func LoadWithOverrides(port, trackingURL string) (*Config, error) {
	v := newBaseViper()
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:               resolve(v, portSetting),
		TrackingAPIURL:     resolve(v, trackingURLSetting),
		DefaultPhoneNumber: resolve(v, phoneSetting),
		NumberPoolTag:      resolve(v, poolTagSetting),
		TrustedOrigins:     parseTrustedOrigins(resolve(v, originsSetting)),
		InjectScriptPaths:  parseList(resolve(v, injectSetting)),
		LogLevel:           strings.ToLower(resolve(v, logLevelSetting)),
	}

	var err error
	if cfg.Poll.Fast, err = resolveDuration(v, pollFastSetting); err != nil {
		return nil, err
	}
	if cfg.Poll.Window, err = resolveDuration(v, pollWindowSetting); err != nil {
		return nil, err
	}
	if cfg.Poll.Slow, err = resolveDuration(v, pollSlowSetting); err != nil {
		return nil, err
	}
	if cfg.MinCallDuration, err = resolveDuration(v, minCallSetting); err != nil {
		return nil, err
	}

	if port != "" {
		cfg.Port = port
	}
	if trackingURL != "" {
		cfg.TrackingAPIURL = trackingURL
	}

	return cfg, nil
}

// PixelID returns the tracking account identifier from the environment.
func PixelID() string {
	return strings.TrimSpace(os.Getenv(PixelIDEnv))
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("funnel")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if dir := configDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	return v
}

// resolve applies config file > environment > default.
func resolve(v *viper.Viper, s setting) string {
	if v.IsSet(s.key) {
		switch val := v.Get(s.key).(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			return strings.Join(parts, ",")
		default:
			return v.GetString(s.key)
		}
	}
	if env, ok := os.LookupEnv(s.env); ok && strings.TrimSpace(env) != "" {
		return strings.TrimSpace(env)
	}
	return s.def
}

func resolveDuration(v *viper.Viper, s setting) (time.Duration, error) {
	raw := resolve(v, s)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", s.key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", s.key, raw)
	}
	return d, nil
}

// parseTrustedOrigins normalizes a comma separated origin list. Schemes are
// preserved, trailing slashes dropped, everything lowercased.
func parseTrustedOrigins(value string) []string {
	origins := []string{}
	for _, part := range strings.Split(value, ",") {
		origin := strings.ToLower(strings.TrimSpace(part))
		origin = strings.TrimRight(origin, "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func parseList(value string) []string {
	items := []string{}
	for _, part := range strings.Split(value, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// configDir returns $XDG_CONFIG_HOME/funnel, falling back to ~/.config/funnel.
func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome == "" {
		return ""
	}
	return filepath.Join(configHome, "funnel")
}
