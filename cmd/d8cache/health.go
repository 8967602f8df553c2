package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/herbdool/d8cache/health"
)

var errUnhealthy = errors.New("unhealthy")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the configured invalidation backends",
	Long: `Health pings every configured backend and reports the circuit breakers
guarding them. It exits non-zero when any check is unhealthy; degraded
checks are reported but do not fail the command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runHealth)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(ctx context.Context, a *app, out io.Writer) error {
	report := a.health.Run(ctx)
	for _, r := range report.Results {
		fmt.Fprintf(out, "%-10s %-9s %s\n", r.Name, r.Status, r.Message)
	}
	fmt.Fprintf(out, "status: %s\n", report.Status)
	if report.Status == health.StatusUnhealthy {
		return errUnhealthy
	}
	return nil
}
