package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seuros/funnel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and write configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to funnel.toml",
	Long: `Write the current effective configuration (config file, environment and
defaults combined) to funnel.toml in the working directory when one exists,
otherwise to $XDG_CONFIG_HOME/funnel/funnel.toml.

BIGO_PIXEL_ID is never written; it is always read from the environment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

// saveConfig persists configuration (can be replaced in tests)
var saveConfig = config.SaveConfig

func runConfigInit() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path, err := saveConfig(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func runConfigShow() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pixelID := config.PixelID()
	if pixelID == "" {
		pixelID = "(not set)"
	}

	fmt.Printf("Port:                %s\n", cfg.Port)
	fmt.Printf("Tracking API:        %s\n", cfg.TrackingAPIURL)
	fmt.Printf("Pixel ID:            %s\n", pixelID)
	fmt.Printf("Default number:      %s\n", cfg.DefaultPhoneNumber)
	fmt.Printf("Number pool tag:     %s\n", orDash(cfg.NumberPoolTag))
	fmt.Printf("Trusted origins:     %s\n", orDash(strings.Join(cfg.TrustedOrigins, ", ")))
	fmt.Printf("Inject script paths: %s\n", orDash(strings.Join(cfg.InjectScriptPaths, ", ")))
	fmt.Printf("Poll schedule:       every %s for %s, then every %s\n", cfg.Poll.Fast, cfg.Poll.Window, cfg.Poll.Slow)
	fmt.Printf("Min call duration:   %s\n", cfg.MinCallDuration)
	fmt.Printf("Log level:           %s\n", cfg.LogLevel)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	RootCmd.AddCommand(configCmd)
}
