// Command auditctl runs carbon audits and revenue estimates from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/app"
)

var logger = zap.NewNop()

func newRootCmd() *cobra.Command {
	var (
		verbose  bool
		logLevel string
	)

	root := &cobra.Command{
		Use:   "auditctl",
		Short: "Run carbon audits and landowner revenue estimates",
		Long: `auditctl runs the carbon audit pipeline against a recorded fixture or a
reduction service, estimates landowner revenue and prints the analysis
windows for a date.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				return nil
			}
			l, err := app.NewLogger(logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level when --verbose is set")

	root.AddCommand(newAuditCmd(), newEstimateCmd(), newWindowsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
