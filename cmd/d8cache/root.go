package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/herbdool/d8cache/config"
	"github.com/herbdool/d8cache/secret"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "d8cache",
	Short: "Cache tag and max-age tooling",
	Long: `d8cache computes Surrogate-Key and Cache-Control headers and purges
tagged content from Redis and tag-aware reverse proxies.

Configuration is read from D8CACHE_* environment variables and optional
.env files.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil,
		"dotenv files to load before reading the environment")
}

// loadApp reads configuration, resolves secret references and wires the
// engine. Log output goes to the command's error stream.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(cmd.Context(), secret.NewResolver()); err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
}

// withApp runs fn against a freshly wired app and releases it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, out io.Writer) error) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(cmd.Context()))
	return fn(cmd.Context(), a, cmd.OutOrStdout())
}
