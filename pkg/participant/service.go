package participant

import (
	"context"
	"fmt"
	"strings"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"

	"github.com/strangelove-ventures/fomc-oracle/pkg/extract"
	"github.com/strangelove-ventures/fomc-oracle/pkg/metrics"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
	"github.com/strangelove-ventures/fomc-oracle/pkg/types"
)

var _ Participant = &Service{}

// Service holds this participant's share and answers extract requests.
type Service struct {
	logger    cometlog.Logger
	cfg       tss.ThresholdConfig
	signer    *tss.PartialSigner
	group     tss.PublicKey
	extractor extract.Extractor
	address   string
}

// NewService checks that share belongs to keys before accepting requests.
func NewService(
	logger cometlog.Logger,
	keys *tss.PublicKeySet,
	share *tss.SecretShare,
	extractor extract.Extractor,
	address string,
) (*Service, error) {
	cfg, err := keys.Config()
	if err != nil {
		return nil, err
	}
	declared, ok := keys.PublicShares[share.ID]
	if !ok {
		return nil, fmt.Errorf("no public share for participant %d", share.ID)
	}
	signer, err := tss.NewPartialSigner(cfg, share, declared)
	if err != nil {
		return nil, err
	}
	return &Service{
		logger:    logger,
		cfg:       cfg,
		signer:    signer,
		group:     keys.GroupPublicKey,
		extractor: extractor,
		address:   address,
	}, nil
}

func (s *Service) GetID() int { return s.signer.ID() }

func (s *Service) GetAddress() string { return s.address }

// Extract resolves text to a rate decision and signs its canonical bytes.
func (s *Service) Extract(ctx context.Context, text string) (*ExtractResponse, error) {
	metrics.TotalExtractRequests.Inc()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	bps, err := s.extractor.Extract(ctx, text)
	metrics.ExtractLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errorCode(err) == ErrCodeNoDecision {
			metrics.TotalNoDecision.Inc()
			s.logger.Info("No rate decision found", "input_length", len(text))
		}
		return nil, err
	}

	decision := types.DecisionFromBasisPoints(bps)
	partial, err := s.signer.Sign(decision.SignBytes())
	if err != nil {
		metrics.TotalPartialSignErrors.Inc()
		s.logger.Error("Failed to sign with share", "value", bps, "error", err)
		return nil, err
	}
	metrics.TotalPartialSignatures.Inc()
	metrics.MetricsTimeKeeper.SetPreviousPartialSign(time.Now())

	s.logger.Info(
		"Signed with share",
		"value", bps,
		"magnitude", decision.Magnitude,
		"is_increase", decision.IsIncrease,
	)

	return &ExtractResponse{
		Value:            bps,
		IsIncrease:       decision.IsIncrease,
		Magnitude:        decision.Magnitude,
		PartialSignature: partial.Signature,
		ParticipantID:    partial.ID,
	}, nil
}

func (s *Service) Health(_ context.Context) (*HealthResponse, error) {
	res := &HealthResponse{
		Status:         StatusUnhealthy,
		Threshold:      s.cfg.T(),
		TotalServers:   s.cfg.N(),
		GroupKeyLoaded: len(s.group) == tss.PublicKeySize,
	}
	if s.signer != nil {
		res.ParticipantID = s.signer.ID()
		res.ShareLoaded = true
	}
	if res.ShareLoaded && res.GroupKeyLoaded {
		res.Status = StatusHealthy
	}
	return res, nil
}
