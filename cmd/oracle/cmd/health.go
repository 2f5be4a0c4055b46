package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/pkg/coordinator"
)

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check every configured participant and list them fastest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyCoordinatorFlags(cmd); err != nil {
				return err
			}
			if cfg.Config.ThresholdModeConfig == nil {
				return fmt.Errorf("no participants configured. Provide --servers or run `oracle config init --servers`")
			}
			if err := cfg.Config.ThresholdModeConfig.Participants.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			logger, err := newLogger(cmd.ErrOrStderr(), "health")
			if err != nil {
				return err
			}

			participants := newParticipantClients()
			defer closeParticipantClients(participants)

			hc := coordinator.NewHealthChecker(logger, participants, coordinator.DefaultHealthTimeout)
			healthy := hc.CheckAll(cmd.Context())
			isHealthy := make(map[int]bool, len(healthy))
			for _, p := range healthy {
				isHealthy[p.GetID()] = true
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tSTATUS\tRTT")
			for _, p := range hc.GetFastest() {
				status, rtt := "unhealthy", "-"
				if isHealthy[p.GetID()] {
					status = "healthy"
					if d, ok := hc.RTT(p.GetID()); ok {
						rtt = d.Round(time.Microsecond).String()
					}
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.GetID(), p.GetAddress(), status, rtt)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			threshold := cfg.Config.ThresholdModeConfig.Threshold
			if threshold > 0 && len(healthy) < threshold {
				return fmt.Errorf("only %d of %d participants healthy, threshold is %d",
					len(healthy), len(participants), threshold)
			}
			return nil
		},
	}
	addCoordinatorFlags(cmd)
	return cmd
}
