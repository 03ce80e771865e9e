package cli

import (
	"github.com/spf13/cobra"

	"github.com/seuros/funnel/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// RootCmd is the funnel command.
var RootCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Landing page server with server-side pixel relay and call tracking",
	Long: `funnel serves advertorial landing pages, relays browser tracking events
to the pixel vendor's server-to-server API, and reconciles the static phone
number on a page with the one the call-tracking vendor assigns at runtime.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

// Execute runs the root command.
func Execute() error {
	RootCmd.Version = Version
	return RootCmd.Execute()
}
