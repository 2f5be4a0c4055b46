package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/client"
	"github.com/strangelove-ventures/fomc-oracle/pkg/config"
)

const (
	flagOverwrite       = "overwrite"
	flagParticipantID   = "participant-id"
	flagListen          = "listen"
	flagGRPCListen      = "grpc-listen"
	flagShareFile       = "share-file"
	flagServers         = "servers"
	flagThreshold       = "threshold"
	flagTimeout         = "timeout"
	flagTransport       = "transport"
	flagHealthCheck     = "health-check"
	flagExtractor       = "extractor"
	flagOllamaAddr      = "ollama-addr"
	flagModel           = "model"
	flagLedgerEndpoints = "ledger-endpoints"
	flagModuleAddress   = "module-address"
	flagDryRun          = "dry-run"
	flagDebugAddr       = "debug-addr"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Commands to configure the oracle",
	}
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"i"},
		Short:   "initialize configuration file and home directory if one doesn't already exist",
		Long: "initialize configuration file. A participant section is written when --participant-id is set,\n" +
			"a coordinator (threshold mode) section when --servers is set, i.e.\n" +
			"--servers localhost:8001,localhost:8002,localhost:8003 --threshold 2",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			flags := cmd.Flags()
			overwrite, _ := flags.GetBool(flagOverwrite)

			if _, err := os.Stat(cfg.ConfigFile); !os.IsNotExist(err) && !overwrite {
				return fmt.Errorf("%s already exists. Provide the -o flag to overwrite the existing config",
					cfg.ConfigFile)
			}

			debugAddr, _ := flags.GetString(flagDebugAddr)
			kind, _ := flags.GetString(flagExtractor)
			ollamaAddr, _ := flags.GetString(flagOllamaAddr)
			model, _ := flags.GetString(flagModel)
			endpoints, _ := flags.GetStringSlice(flagLedgerEndpoints)
			module, _ := flags.GetString(flagModuleAddress)
			dryRun, _ := flags.GetBool(flagDryRun)

			c := config.Config{
				KeyFile: config.DefaultKeyFile,
				Extractor: config.ExtractorConfig{
					Kind:       kind,
					OllamaAddr: ollamaAddr,
					Model:      model,
				},
				Ledger: config.LedgerConfig{
					Endpoints:     endpoints,
					ModuleAddress: module,
					DryRun:        dryRun,
				},
				DebugAddr: debugAddr,
			}

			id, _ := flags.GetInt(flagParticipantID)
			servers, _ := flags.GetString(flagServers)
			if id == 0 && servers == "" {
				return fmt.Errorf("provide --participant-id, --servers, or both")
			}

			if id != 0 {
				listen, _ := flags.GetString(flagListen)
				grpcListen, _ := flags.GetString(flagGRPCListen)
				shareFile, _ := flags.GetString(flagShareFile)
				if shareFile == "" {
					shareFile = participantShareFile(id)
				}
				c.Participant = &config.ParticipantConfig{
					ID:         id,
					ListenAddr: listen,
					GRPCAddr:   grpcListen,
					ShareFile:  shareFile,
				}
				if err := c.ValidateParticipantConfig(); err != nil {
					return err
				}
			}

			if servers != "" {
				threshold, _ := flags.GetInt(flagThreshold)
				timeout, _ := flags.GetString(flagTimeout)
				transport, _ := flags.GetString(flagTransport)
				healthCheck, _ := flags.GetBool(flagHealthCheck)

				addrs, err := client.ParseServerList(servers)
				if err != nil {
					return err
				}
				participants, err := config.ParticipantsFromFlag(addrs, config.Transport(strings.ToLower(transport)))
				if err != nil {
					return err
				}
				c.ThresholdModeConfig = &config.ThresholdModeConfig{
					Threshold:    threshold,
					Participants: participants,
					Timeout:      timeout,
					HealthCheck:  healthCheck,
				}
				if err := c.ValidateThresholdModeConfig(); err != nil {
					return err
				}
			}

			// silence usage after all input has been validated
			cmd.SilenceUsage = true

			if err := os.MkdirAll(cfg.HomeDir, 0700); err != nil {
				return err
			}
			cfg.Config = c
			if err := cfg.WriteConfigFile(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Successfully initialized configuration: %s\n", cfg.ConfigFile)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolP(flagOverwrite, "o", false, "overwrite an existing config.yaml")
	f.Int(flagParticipantID, 0, "participant id (1..n) served by this node")
	f.String(flagListen, "0.0.0.0:8001", "participant HTTP listen address")
	f.String(flagGRPCListen, "", "participant gRPC listen address (disabled when empty)")
	f.String(flagShareFile, "", "participant share file (default participant_<id>/share.json)")
	f.String(flagServers, "", "comma separated participant addresses in id order, i.e. localhost:8001,localhost:8002")
	f.IntP(flagThreshold, "t", 0, "number of agreeing partial signatures required")
	f.String(flagTimeout, "30s", "per participant request timeout")
	f.String(flagTransport, string(config.TransportHTTP), "participant transport: http or grpc")
	f.Bool(flagHealthCheck, false, "health check participants before each attestation")
	f.String(flagExtractor, "keyword", "rate decision extractor: keyword or ollama")
	f.String(flagOllamaAddr, "", "ollama server address")
	f.String(flagModel, "", "ollama model")
	f.StringSlice(flagLedgerEndpoints, nil, "ledger relay endpoints")
	f.String(flagModuleAddress, "", "ledger module address")
	f.Bool(flagDryRun, false, "log ledger submissions instead of sending them")
	f.String(flagDebugAddr, config.DefaultDebugAddr, "debug and metrics listen address (disabled when empty)")

	return cmd
}

func participantShareFile(id int) string {
	return fmt.Sprintf("participant_%d/share.json", id)
}
