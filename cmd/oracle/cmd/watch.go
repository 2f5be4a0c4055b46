package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/pkg/feed"
)

const (
	flagAt       = "at"
	flagInterval = "interval"
	flagFeedURL  = "feed-url"
	flagKeywords = "keywords"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait for the FOMC statement to appear in the Federal Reserve feed, then attest it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			at, _ := flags.GetString(flagAt)
			target, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at time, expected RFC3339: %w", err)
			}
			interval, _ := flags.GetDuration(flagInterval)
			if interval < time.Second {
				interval = time.Second
			}
			feedURL, _ := flags.GetString(flagFeedURL)
			keywords, _ := flags.GetStringSlice(flagKeywords)

			if err := applyCoordinatorFlags(cmd); err != nil {
				return err
			}
			if err := cfg.Config.ValidateThresholdModeConfig(); err != nil {
				return err
			}

			cmd.SilenceUsage = true

			logger, err := newLogger(cmd.ErrOrStderr(), "watch")
			if err != nil {
				return err
			}

			coord, closeFn, err := newCoordinator(logger, true)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			// Keep participant health gauges current while waiting.
			go coord.HealthChecker().Start(ctx)

			watcher := feed.NewWatcher(logger, feedURL, keywords, interval)
			logger.Info("Watching feed", "target", target.UTC(), "interval", interval)
			item, err := watcher.Watch(ctx, target)
			if err != nil {
				return err
			}

			att, err := coord.Attest(ctx, item.Link)
			if att != nil {
				if werr := writeJSON(cmd.OutOrStdout(), att); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	addCoordinatorFlags(cmd)
	f := cmd.Flags()
	f.String(flagAt, "", "announcement time (RFC3339), i.e. 2025-09-17T14:00:00-04:00")
	_ = cmd.MarkFlagRequired(flagAt)
	f.Duration(flagInterval, feed.DefaultPollInterval, "feed polling interval")
	f.String(flagFeedURL, feed.DefaultURL, "RSS feed to watch")
	f.StringSlice(flagKeywords, feed.DefaultKeywords, "keywords every matching title must contain")
	return cmd
}
