package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set by ldflags)
	version = "dev"

	debug bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "petalert",
		Short: "Pet health alert engine",
		Long: `petalert evaluates pet health anomalies against owner-defined alert rules
and delivers notifications in-app, by email and by push.

  petalert serve      Run the HTTP API and the scheduled sweep (default)
  petalert sweep      Run one batch sweep over every active rule and exit
  petalert migrate    Apply the database schema and exit`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(),
		newSweepCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
