package cmd

import (
	"fmt"

	cometlog "github.com/cometbft/cometbft/libs/log"
	cometservice "github.com/cometbft/cometbft/libs/service"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fomc-oracle/pkg/config"
	"github.com/strangelove-ventures/fomc-oracle/pkg/extract"
	"github.com/strangelove-ventures/fomc-oracle/pkg/metrics"
	"github.com/strangelove-ventures/fomc-oracle/pkg/node"
	"github.com/strangelove-ventures/fomc-oracle/pkg/participant"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
)

func participantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "participant",
		Aliases: []string{"p"},
		Short:   "Commands for a share holding participant",
	}
	cmd.AddCommand(participantStartCmd())
	return cmd
}

func participantStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "start",
		Short:        "Start a participant signing service",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := node.RequireNotRunning(cometlog.NewNopLogger(), cfg.PidFile); err != nil {
				return err
			}
			if err := cfg.Config.ValidateParticipantConfig(); err != nil {
				return err
			}

			logger, err := newLogger(cmd.OutOrStdout(), "participant")
			if err != nil {
				return err
			}

			services, svc, err := newParticipantServices(logger)
			if err != nil {
				return err
			}

			logger.Info(
				"FOMC Oracle Participant",
				"id", svc.GetID(),
				"extractor", cfg.Config.Extractor.Kind,
				"key_file", cfg.KeyFilePath(),
			)

			node.WaitAndTerminate(logger, services, cfg.PidFile)
			return nil
		},
	}
	return cmd
}

// newParticipantServices loads key material and starts the HTTP, gRPC and
// debug servers. Started services are returned for shutdown.
func newParticipantServices(logger cometlog.Logger) ([]cometservice.Service, *participant.Service, error) {
	pc := cfg.Config.Participant

	keys, err := tss.LoadPublicKeySet(cfg.KeyFilePath())
	if err != nil {
		return nil, nil, fmt.Errorf("load public keys: %w", err)
	}
	share, err := tss.LoadSecretShare(cfg.ShareFilePath())
	if err != nil {
		return nil, nil, fmt.Errorf("load share: %w", err)
	}
	if share.ID != pc.ID {
		return nil, nil, fmt.Errorf("share file is for participant %d, config is for participant %d", share.ID, pc.ID)
	}

	extractor, err := newExtractor(logger)
	if err != nil {
		return nil, nil, err
	}

	svc, err := participant.NewService(logger, keys, share, extractor, pc.ListenAddr)
	if err != nil {
		return nil, nil, err
	}

	var services []cometservice.Service

	httpServer := participant.NewHTTPServer(logger, svc, pc.ListenAddr)
	if err := httpServer.Start(); err != nil {
		return nil, nil, fmt.Errorf("start http server: %w", err)
	}
	services = append(services, httpServer)

	if pc.GRPCAddr != "" {
		grpcServer := participant.NewGRPCServer(logger, svc, pc.GRPCAddr)
		if err := grpcServer.Start(); err != nil {
			stopAll(logger, services)
			return nil, nil, fmt.Errorf("start grpc server: %w", err)
		}
		services = append(services, grpcServer)
	}

	if cfg.Config.DebugAddr != "" {
		debugServer := metrics.NewDebugServer(logger, cfg.Config.DebugAddr)
		if err := debugServer.Start(); err != nil {
			stopAll(logger, services)
			return nil, nil, fmt.Errorf("start debug server: %w", err)
		}
		services = append(services, debugServer)
	}

	return services, svc, nil
}

func newExtractor(logger cometlog.Logger) (extract.Extractor, error) {
	ec := cfg.Config.Extractor
	timeout, err := ec.RequestTimeout()
	if err != nil {
		return nil, err
	}
	var inner extract.Extractor
	switch ec.Kind {
	case "", config.ExtractorKeyword:
		inner = extract.KeywordExtractor{}
	case config.ExtractorOllama:
		inner = extract.NewOllamaExtractor(logger, ec.OllamaAddr, ec.Model, timeout)
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", ec.Kind)
	}
	return extract.NewResolver(logger, extract.NewArticleFetcher(timeout), inner), nil
}

func stopAll(logger cometlog.Logger, services []cometservice.Service) {
	for _, s := range services {
		if err := s.Stop(); err != nil {
			logger.Error("Failed to stop service", "service", s.String(), "error", err)
		}
	}
}
