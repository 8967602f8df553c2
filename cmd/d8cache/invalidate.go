package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/tags"
)

var excludeTags []string

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <tag>...",
	Short: "Purge content carrying any of the given tags",
	Long: `Invalidate runs the given tags through the invalidation alters and
dispatches the result to every configured backend. Backends are called
concurrently; a failing backend does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, out io.Writer) error {
			return runInvalidate(ctx, a, out, args, excludeTags)
		})
	},
}

func init() {
	invalidateCmd.Flags().StringSliceVar(&excludeTags, "exclude", nil,
		"tags to drop before dispatch, such as list tags")
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(ctx context.Context, a *app, out io.Writer, args, exclude []string) error {
	if len(exclude) > 0 {
		drop := make([]tags.Tag, len(exclude))
		for i, s := range exclude {
			drop[i] = tags.Tag(s)
		}
		if err := a.coord.Registry().InvalidateAlters.Register("cli:exclude", tags.RemoveTags(drop...)); err != nil {
			return err
		}
	}
	if a.coord.Registry().Backends.Len() == 0 {
		a.mw.Logger().Warn(ctx, "no invalidation backends configured")
	}

	input := make([]tags.Tag, len(args))
	for i, s := range args {
		input[i] = tags.Tag(s)
	}
	res, err := a.coord.Invalidate(ctx, input...)
	printResult(out, res)
	return err
}

func printResult(out io.Writer, res invalidate.Result) {
	if res.Skipped {
		fmt.Fprintf(out, "%s: nothing to invalidate\n", res.ID)
		return
	}
	if res.Tags.Len() == 0 {
		// Input validation failed before the alter phase.
		return
	}
	failed := make(map[string]bool, len(res.Failed))
	for _, name := range res.Failed {
		failed[name] = true
	}
	fmt.Fprintf(out, "%s: %s\n", res.ID, tags.Join(res.Tags))
	for _, name := range res.Dispatched {
		status := "ok"
		if failed[name] {
			status = "failed"
		}
		fmt.Fprintf(out, "  %s %s\n", name, status)
	}
}
