package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"github.com/herbdool/d8cache/coordinator"
	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/tags"
)

var (
	headerTags    []string
	headerMaxAges []int64
	headerSession bool
)

var headersCmd = &cobra.Command{
	Use:   "headers",
	Short: "Print the cache headers for a set of tags and max-age proposals",
	Long: `Headers feeds tags and raw max-age values through the same alters and
observers a rendered response uses and prints the resulting headers.

The configured permanent sentinel proposes a permanent max-age, which the
configured maximum age caps.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, out io.Writer) error {
			return runHeaders(ctx, a, out, headerTags, headerMaxAges, headerSession)
		})
	},
}

func init() {
	headersCmd.Flags().StringArrayVar(&headerTags, "tag", nil, "cache tag (repeatable)")
	headersCmd.Flags().Int64SliceVar(&headerMaxAges, "max-age", nil, "raw max-age proposal in seconds (repeatable)")
	headersCmd.Flags().BoolVar(&headerSession, "session", false, "treat the response as session-bound")
	rootCmd.AddCommand(headersCmd)
}

func runHeaders(ctx context.Context, a *app, out io.Writer, rawTags []string, maxAges []int64, session bool) error {
	h := http.Header{}
	detector := maxage.SessionFunc(func(context.Context) bool { return session })
	resp := a.coord.NewResponse(coordinator.WithHeaders(h, detector))

	ts, err := tags.FromStrings(rawTags...)
	if err != nil {
		return err
	}
	if err := resp.MergeTags(ts); err != nil {
		return err
	}
	for _, raw := range maxAges {
		if err := resp.ProposeRaw(raw); err != nil {
			return err
		}
	}
	if _, err := resp.Finalize(ctx); err != nil {
		a.mw.Logger().Warn(ctx, "cache metadata alter failed", observe.Err(err))
	}
	if err := resp.Emit(ctx); err != nil {
		a.mw.Logger().Warn(ctx, "cache metadata observer failed", observe.Err(err))
	}

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %s\n", k, h.Get(k))
	}
	return nil
}
