package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/poller"
	"github.com/spacesedan/feedbot/internal/view"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	interval time.Duration
	once     bool
}

func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <brand>",
		Short: "Poll and chart the analysed posts of a brand",
		Args:  exactlyOneBrand,
		RunE: func(cmd *cobra.Command, args []string) error {
			brand := strings.TrimSpace(args[0])
			if brand == "" {
				return fmt.Errorf("brand is required")
			}
			if opts.interval <= 0 {
				opts.interval = a.cfg.PollInterval
			}
			return runWatch(cmd.Context(), cmd.OutOrStdout(), a, brand, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "poll interval (default POLL_INTERVAL)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "print the first snapshot and exit")
	return cmd
}

// runWatch renders every snapshot until ctx is done, or after the first one
// with once set.
func runWatch(ctx context.Context, out io.Writer, a *app, brand string, opts watchOptions) error {
	composer := view.NewComposer(brand)
	first := make(chan struct{})
	var renderErr error

	sub := poller.Start(ctx, a.backend, brand, poller.Options{
		Interval: opts.interval,
		Limit:    a.cfg.ResultsLimit,
	}, func(posts []models.Post) {
		in := composer.Apply(posts)
		if renderErr == nil {
			renderErr = view.RenderText(out, in)
		}
		select {
		case <-first:
		default:
			close(first)
		}
	})
	defer sub.Stop()

	if opts.once {
		select {
		case <-first:
		case <-ctx.Done():
			return ctx.Err()
		}
		sub.Stop()
		return renderErr
	}

	<-sub.Done()
	return nil
}
