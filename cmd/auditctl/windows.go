package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

func newWindowsCmd() *cobra.Command {
	var (
		asOf  string
		years int
	)
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Print the baseline and current analysis windows for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now()
			if asOf != "" {
				var err error
				if t, err = time.Parse("2006-01-02", asOf); err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
			}
			pair, err := window.Derive(t, window.Period{Years: years})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "baseline  %s  (%d days)\n", pair.Baseline, pair.Baseline.Days())
			fmt.Fprintf(out, "current   %s  (%d days)\n", pair.Current, pair.Current.Days())
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "audit date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&years, "years", window.DefaultPeriod.Years, "current window length in years")
	return cmd
}
