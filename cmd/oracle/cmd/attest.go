package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/client"
	"github.com/strangelove-ventures/fomc-oracle/pkg/audit"
	"github.com/strangelove-ventures/fomc-oracle/pkg/config"
	"github.com/strangelove-ventures/fomc-oracle/pkg/coordinator"
	"github.com/strangelove-ventures/fomc-oracle/pkg/ledger"
	"github.com/strangelove-ventures/fomc-oracle/pkg/participant"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
)

const flagNoAudit = "no-audit"

func attestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attest [text|url]",
		Short: "Collect a threshold signature over the rate decision in a statement and submit it",
		Long: "Sends the statement text, or a URL to it, to every participant, waits for a threshold\n" +
			"of agreeing partial signatures, combines them and submits the result to the ledger.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyCoordinatorFlags(cmd); err != nil {
				return err
			}
			if err := cfg.Config.ValidateThresholdModeConfig(); err != nil {
				return err
			}

			// silence usage after all input has been validated
			cmd.SilenceUsage = true

			logger, err := newLogger(cmd.ErrOrStderr(), "coordinator")
			if err != nil {
				return err
			}

			noAudit, _ := cmd.Flags().GetBool(flagNoAudit)
			coord, closeFn, err := newCoordinator(logger, !noAudit)
			if err != nil {
				return err
			}
			defer closeFn()

			att, err := coord.Attest(cmd.Context(), strings.Join(args, " "))
			if att != nil {
				if werr := writeJSON(cmd.OutOrStdout(), att); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	addCoordinatorFlags(cmd)
	cmd.Flags().Bool(flagNoAudit, false, "do not record the attempt in the audit log")
	return cmd
}

func addCoordinatorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(flagServers, "", "comma separated participant addresses in id order, overriding the config")
	f.String(flagTransport, string(config.TransportHTTP), "participant transport used with --servers")
	f.IntP(flagThreshold, "t", 0, "threshold used with --servers (default: from the key file)")
	f.Bool(flagDryRun, false, "log the ledger submission instead of sending it")
	f.String(flagTimeout, "", "per participant request timeout, overriding the config")
}

// applyCoordinatorFlags folds command line overrides into the loaded config.
func applyCoordinatorFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	servers, _ := flags.GetString(flagServers)
	if servers != "" {
		transport, _ := flags.GetString(flagTransport)
		threshold, _ := flags.GetInt(flagThreshold)
		addrs, err := client.ParseServerList(servers)
		if err != nil {
			return err
		}
		participants, err := config.ParticipantsFromFlag(addrs, config.Transport(strings.ToLower(transport)))
		if err != nil {
			return err
		}
		tm := cfg.Config.ThresholdModeConfig
		if tm == nil {
			tm = &config.ThresholdModeConfig{}
		}
		tm.Participants = participants
		if threshold != 0 {
			tm.Threshold = threshold
		}
		if tm.Threshold == 0 {
			keys, err := tss.LoadPublicKeySet(cfg.KeyFilePath())
			if err != nil {
				return fmt.Errorf("load public keys for threshold: %w", err)
			}
			tm.Threshold = keys.Threshold
		}
		cfg.Config.ThresholdModeConfig = tm
	}
	if flags.Changed(flagTimeout) && cfg.Config.ThresholdModeConfig != nil {
		timeout, _ := flags.GetString(flagTimeout)
		cfg.Config.ThresholdModeConfig.Timeout = timeout
	}
	if dryRun, _ := flags.GetBool(flagDryRun); dryRun {
		cfg.Config.Ledger.DryRun = true
	}
	return nil
}

func newParticipantClients() []participant.Participant {
	tm := cfg.Config.ThresholdModeConfig
	out := make([]participant.Participant, 0, len(tm.Participants))
	for _, p := range tm.Participants {
		switch p.Transport {
		case config.TransportGRPC:
			out = append(out, participant.NewGRPCClient(p.ID, p.Address))
		default:
			out = append(out, participant.NewHTTPClient(p.ID, p.Address))
		}
	}
	return out
}

func closeParticipantClients(participants []participant.Participant) {
	for _, p := range participants {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func newLedgerClient(logger cometlog.Logger) (ledger.Client, error) {
	lc := cfg.Config.Ledger
	if lc.DryRun {
		return ledger.NewLogClient(logger), nil
	}
	return ledger.NewRESTClient(logger, ledger.RESTConfig{
		Endpoints:     lc.Endpoints,
		ModuleAddress: lc.ModuleAddress,
		Retries:       lc.Retries,
	})
}

// newCoordinator builds a coordinator from the validated threshold mode
// config. The returned func releases connections and the audit store.
func newCoordinator(logger cometlog.Logger, withAudit bool) (*coordinator.Coordinator, func(), error) {
	keys, err := tss.LoadPublicKeySet(cfg.KeyFilePath())
	if err != nil {
		return nil, nil, fmt.Errorf("load public keys: %w", err)
	}
	combiner, err := keys.Combiner()
	if err != nil {
		return nil, nil, err
	}

	tm := cfg.Config.ThresholdModeConfig
	if tm.Threshold != keys.Threshold {
		return nil, nil, fmt.Errorf("configured threshold %d does not match key set threshold %d",
			tm.Threshold, keys.Threshold)
	}
	timeout, err := tm.CallTimeout()
	if err != nil {
		return nil, nil, err
	}

	ledgerClient, err := newLedgerClient(logger)
	if err != nil {
		return nil, nil, err
	}

	var store *audit.Store
	if withAudit {
		store, err = audit.Open(cfg.AuditDBPath())
		if err != nil {
			return nil, nil, err
		}
	}

	participants := newParticipantClients()
	coord, err := coordinator.NewCoordinator(logger, combiner, participants, coordinator.Config{
		Timeout:     timeout,
		HealthCheck: tm.HealthCheck,
	}, ledgerClient, store)
	if err != nil {
		closeParticipantClients(participants)
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	closeFn := func() {
		closeParticipantClients(participants)
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close audit store", "error", err)
			}
		}
	}
	return coord, closeFn, nil
}

func writeJSON(out io.Writer, v any) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(bz))
	return err
}
