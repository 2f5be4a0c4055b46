package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"

	"github.com/strangelove-ventures/fomc-oracle/pkg/metrics"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
)

var _ Client = &LogClient{}

// LogClient logs submissions instead of sending them. Used for dry runs.
type LogClient struct {
	logger cometlog.Logger
}

func NewLogClient(logger cometlog.Logger) *LogClient {
	return &LogClient{logger: logger}
}

func (c *LogClient) RegisterGroupKey(_ context.Context, groupKey tss.PublicKey) (TxID, error) {
	id := TxID("dry-run-" + uuid.NewString())
	c.logger.Info("Dry run: register group key", "group_public_key", groupKey.String(), "tx", id)
	return id, nil
}

func (c *LogClient) SubmitAttestation(_ context.Context, sub Submission) (TxID, error) {
	id := TxID("dry-run-" + uuid.NewString())
	c.logger.Info(
		"Dry run: submit attestation",
		"magnitude", sub.Decision.Magnitude,
		"is_increase", sub.Decision.IsIncrease,
		"signature", sub.Signature.String(),
		"tx", id,
	)
	return id, nil
}

// ErrUnverified is returned when a submission's signature does not verify
// against the group public key.
var ErrUnverified = errors.New("refusing to submit unverified signature")

var _ Client = &VerifyingClient{}

// VerifyingClient guards a Client: it registers the group key once and
// rejects any submission whose signature does not verify under it.
type VerifyingClient struct {
	inner    Client
	groupKey tss.PublicKey

	mu         sync.Mutex
	registered bool
}

func NewVerifyingClient(inner Client, groupKey tss.PublicKey) *VerifyingClient {
	return &VerifyingClient{inner: inner, groupKey: groupKey}
}

func (c *VerifyingClient) RegisterGroupKey(ctx context.Context, groupKey tss.PublicKey) (TxID, error) {
	if !groupKey.Equal(c.groupKey) {
		return "", fmt.Errorf("group key %s does not match configured key %s", groupKey, c.groupKey)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, err := c.inner.RegisterGroupKey(ctx, groupKey)
	if err != nil {
		return "", fmt.Errorf("register group key: %w", err)
	}
	c.registered = true
	return tx, nil
}

// SubmitAttestation registers the group key first if that has not happened.
func (c *VerifyingClient) SubmitAttestation(ctx context.Context, sub Submission) (TxID, error) {
	if !tss.Verify(c.groupKey, sub.Decision.SignBytes(), sub.Signature) {
		return "", ErrUnverified
	}

	c.mu.Lock()
	if !c.registered {
		if _, err := c.inner.RegisterGroupKey(ctx, c.groupKey); err != nil {
			c.mu.Unlock()
			return "", fmt.Errorf("register group key: %w", err)
		}
		c.registered = true
	}
	c.mu.Unlock()

	tx, err := c.inner.SubmitAttestation(ctx, sub)
	if err != nil {
		metrics.TotalLedgerErrors.Inc()
		return "", err
	}
	metrics.TotalLedgerSubmissions.Inc()
	metrics.MetricsTimeKeeper.SetPreviousLedgerSubmit(time.Now())
	return tx, nil
}

// Registered reports whether the group key registration has succeeded.
func (c *VerifyingClient) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}
