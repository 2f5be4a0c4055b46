// Package coordinator gathers a quorum of partial signatures from remote
// participants, agrees on a rate decision, and publishes the combined
// threshold signature.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"

	"github.com/strangelove-ventures/fomc-oracle/pkg/audit"
	"github.com/strangelove-ventures/fomc-oracle/pkg/extract"
	"github.com/strangelove-ventures/fomc-oracle/pkg/ledger"
	"github.com/strangelove-ventures/fomc-oracle/pkg/metrics"
	"github.com/strangelove-ventures/fomc-oracle/pkg/participant"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
	"github.com/strangelove-ventures/fomc-oracle/pkg/types"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

type Config struct {
	// Timeout bounds each participant call.
	Timeout time.Duration

	// HealthCheck enables the advisory health prefilter before fan-out.
	HealthCheck   bool
	HealthTimeout time.Duration
}

// Attestation is a threshold signed rate decision.
type Attestation struct {
	RequestID      string             `json:"request_id"`
	Value          int64              `json:"value"`
	Decision       types.RateDecision `json:"decision"`
	Signature      tss.Signature      `json:"signature"`
	GroupPublicKey tss.PublicKey      `json:"group_public_key"`
	SignerIDs      []int              `json:"signer_ids"`
	Responded      []int              `json:"responded"`
	Disagreed      []int              `json:"disagreed,omitempty"`
	TxID           ledger.TxID        `json:"tx_id,omitempty"`
}

type Coordinator struct {
	logger       cometlog.Logger
	combiner     *tss.Combiner
	participants []participant.Participant
	cfg          Config

	ledger *ledger.VerifyingClient
	store  *audit.Store
	health *HealthChecker
}

// NewCoordinator checks that participants are distinct members of the key
// set and that at least threshold of them are configured. ledgerClient and
// store may be nil, in which case nothing is submitted or recorded.
func NewCoordinator(
	logger cometlog.Logger,
	combiner *tss.Combiner,
	participants []participant.Participant,
	cfg Config,
	ledgerClient ledger.Client,
	store *audit.Store,
) (*Coordinator, error) {
	threshold := combiner.Config()
	seen := make(map[int]struct{}, len(participants))
	sorted := make([]participant.Participant, 0, len(participants))
	for _, p := range participants {
		id := p.GetID()
		if !threshold.ValidID(id) {
			return nil, fmt.Errorf("participant id %d outside 1..%d", id, threshold.N())
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate participant id %d", id)
		}
		seen[id] = struct{}{}
		sorted = append(sorted, p)
	}
	if len(sorted) < threshold.T() {
		return nil, &tss.QuorumError{Have: len(sorted), Need: threshold.T()}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GetID() < sorted[j].GetID() })

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}

	c := &Coordinator{
		logger:       logger,
		combiner:     combiner,
		participants: sorted,
		cfg:          cfg,
		store:        store,
		health:       NewHealthChecker(logger, sorted, cfg.HealthTimeout),
	}
	if ledgerClient != nil {
		c.ledger = ledger.NewVerifyingClient(ledgerClient, combiner.GroupPublicKey())
	}
	return c, nil
}

func (c *Coordinator) Participants() []participant.Participant { return c.participants }

func (c *Coordinator) HealthChecker() *HealthChecker { return c.health }

type response struct {
	p       participant.Participant
	res     *participant.ExtractResponse
	err     error
	latency time.Duration
}

// group is the set of valid partial signatures over one decision.
type group struct {
	value    int64
	decision types.RateDecision
	partials []tss.PartialSignature
}

func (g *group) lowestID() int {
	lowest := g.partials[0].ID
	for _, p := range g.partials[1:] {
		if p.ID < lowest {
			lowest = p.ID
		}
	}
	return lowest
}

// Attest asks every participant to sign the decision found in input and
// returns as soon as threshold valid partial signatures agree on one value.
// A failed ledger submission still returns the verified attestation along
// with the error.
func (c *Coordinator) Attest(ctx context.Context, input string) (*Attestation, error) {
	if strings.TrimSpace(input) == "" {
		return nil, participant.ErrEmptyInput
	}

	requestID := uuid.New().String()
	log := c.logger.With("request_id", requestID)
	metrics.TotalAttestationRequests.Inc()

	att, err := c.attest(ctx, log, requestID, input)
	c.record(log, requestID, input, att, err)
	return att, err
}

func (c *Coordinator) attest(
	ctx context.Context,
	log cometlog.Logger,
	requestID string,
	input string,
) (*Attestation, error) {
	threshold := c.combiner.Config().T()

	targets := c.participants
	if c.cfg.HealthCheck {
		targets = c.health.Prefilter(ctx, threshold)
	}

	start := time.Now()

	// Sized so abandoned calls never block on send.
	results := make(chan response, len(targets))
	for _, p := range targets {
		go func(p participant.Participant) {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
			callStart := time.Now()
			res, err := p.Extract(callCtx, input)
			results <- response{p: p, res: res, err: err, latency: time.Since(callStart)}
		}(p)
	}

	groups := make(map[int64]*group)
	var responded []int
	var winner *group
	received := 0

gather:
	for received < len(targets) {
		select {
		case <-ctx.Done():
			break gather
		case r := <-results:
			received++
			metrics.ParticipantLatency.WithLabelValues(strconv.Itoa(r.p.GetID())).Observe(r.latency.Seconds())
			if !c.validate(log, r) {
				continue
			}
			responded = append(responded, r.p.GetID())
			g, ok := groups[r.res.Value]
			if !ok {
				g = &group{value: r.res.Value, decision: r.res.Decision()}
				groups[r.res.Value] = g
			}
			g.partials = append(g.partials, r.res.Partial())
			if len(g.partials) >= threshold {
				winner = g
				break gather
			}
		}
	}

	if remaining := len(targets) - received; remaining > 0 {
		go c.drainLate(log, results, remaining)
	}

	if winner == nil {
		winner = consensus(groups)
	}
	if winner == nil || len(winner.partials) < threshold {
		have := 0
		if winner != nil {
			have = len(winner.partials)
		}
		metrics.TotalInsufficientQuorum.Inc()
		log.Error("Not enough agreeing partial signatures",
			"have", have,
			"need", threshold,
			"responded", len(responded),
		)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", &tss.QuorumError{Have: have, Need: threshold}, err)
		}
		return nil, &tss.QuorumError{Have: have, Need: threshold}
	}
	metrics.QuorumLag.Observe(time.Since(start).Seconds())

	sort.Ints(responded)
	disagreed := disagreeing(responded, winner)
	if len(disagreed) > 0 {
		metrics.TotalDisagreements.Add(float64(len(disagreed)))
		log.Info("Participants disagreed with consensus",
			"value", winner.value,
			"disagreed", disagreed,
		)
	}

	partials := make([]tss.PartialSignature, len(winner.partials))
	copy(partials, winner.partials)
	sort.Slice(partials, func(i, j int) bool { return partials[i].ID < partials[j].ID })
	partials = partials[:threshold]

	msg := winner.decision.SignBytes()
	sig, signers, err := c.combiner.Combine(msg, partials)
	if err != nil {
		metrics.TotalInvalidCombinedSignatures.Inc()
		log.Error("Combined signature is not valid", "error", err)
		return nil, err
	}

	att := &Attestation{
		RequestID:      requestID,
		Value:          winner.value,
		Decision:       winner.decision,
		Signature:      sig,
		GroupPublicKey: c.combiner.GroupPublicKey(),
		SignerIDs:      signers,
		Responded:      responded,
		Disagreed:      disagreed,
	}
	metrics.TotalAttestations.Inc()
	metrics.MetricsTimeKeeper.SetPreviousAttestation(time.Now())

	log.Info("Threshold signature produced",
		"value", att.Value,
		"decision", att.Decision.String(),
		"signers", signers,
		"signature", sig.String(),
	)

	if c.ledger == nil {
		return att, nil
	}
	tx, err := c.ledger.SubmitAttestation(ctx, ledger.Submission{Decision: att.Decision, Signature: sig})
	if err != nil {
		log.Error("Failed to submit attestation", "error", err)
		return att, fmt.Errorf("submit attestation: %w", err)
	}
	att.TxID = tx
	log.Info("Submitted attestation", "tx", tx)
	return att, nil
}

// validate reports whether r carries a partial signature that verifies over
// the decision it reports, from the participant that was asked.
func (c *Coordinator) validate(log cometlog.Logger, r response) bool {
	id := r.p.GetID()
	label := strconv.Itoa(id)
	if r.err != nil {
		if errors.Is(r.err, extract.ErrNoDecision) {
			log.Info("Participant found no rate decision", "participant", id)
		} else {
			log.Error("Participant failed to sign", "participant", id, "error", r.err.Error())
		}
		metrics.TotalParticipantErrors.WithLabelValues(label).Inc()
		return false
	}
	if r.res.ParticipantID != id {
		log.Error("Participant answered with another id",
			"participant", id,
			"reported_id", r.res.ParticipantID,
		)
		metrics.TotalInvalidPartialSignatures.WithLabelValues(label).Inc()
		return false
	}
	if !r.res.Consistent() {
		log.Error("Participant signed a decision that does not match its value",
			"participant", id,
			"value", r.res.Value,
			"magnitude", r.res.Magnitude,
			"is_increase", r.res.IsIncrease,
		)
		metrics.TotalInvalidPartialSignatures.WithLabelValues(label).Inc()
		return false
	}
	msg := types.DecisionFromBasisPoints(r.res.Value).SignBytes()
	if err := c.combiner.VerifyPartial(msg, r.res.Partial()); err != nil {
		log.Error("Invalid partial signature", "participant", id, "error", err)
		metrics.TotalInvalidPartialSignatures.WithLabelValues(label).Inc()
		return false
	}
	return true
}

func (c *Coordinator) drainLate(log cometlog.Logger, results <-chan response, remaining int) {
	for i := 0; i < remaining; i++ {
		r := <-results
		id := r.p.GetID()
		metrics.TotalLateResponses.WithLabelValues(strconv.Itoa(id)).Inc()
		if r.err != nil {
			log.Debug("Late participant error discarded", "participant", id, "error", r.err)
			continue
		}
		log.Debug("Late participant response discarded", "participant", id, "value", r.res.Value)
	}
}

func (c *Coordinator) record(log cometlog.Logger, requestID, input string, att *Attestation, err error) {
	if c.store == nil {
		return
	}
	rec := &audit.Record{
		RequestID: requestID,
		Time:      time.Now().UTC(),
		Input:     input,
	}
	if att != nil {
		rec.Value = att.Value
		rec.Magnitude = att.Decision.Magnitude
		rec.IsIncrease = att.Decision.IsIncrease
		rec.SignerIDs = att.SignerIDs
		rec.Responded = att.Responded
		rec.Disagreed = att.Disagreed
		rec.Signature = att.Signature.String()
		rec.GroupPublicKey = att.GroupPublicKey.String()
		rec.TxID = string(att.TxID)
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if err := c.store.Put(rec); err != nil {
		log.Error("Failed to write audit record", "error", err)
	}
}

// consensus returns the largest group. Ties go to the group holding the
// lowest participant id.
func consensus(groups map[int64]*group) *group {
	var best *group
	for _, g := range groups {
		switch {
		case best == nil:
			best = g
		case len(g.partials) > len(best.partials):
			best = g
		case len(g.partials) == len(best.partials) && g.lowestID() < best.lowestID():
			best = g
		}
	}
	return best
}

func disagreeing(responded []int, winner *group) []int {
	agreed := make(map[int]struct{}, len(winner.partials))
	for _, p := range winner.partials {
		agreed[p.ID] = struct{}{}
	}
	var out []int
	for _, id := range responded {
		if _, ok := agreed[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
