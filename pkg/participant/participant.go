// Package participant is one threshold share holder: it extracts a rate
// decision from statement text and returns a partial signature over it.
package participant

import (
	"context"
	"errors"
	"fmt"

	"github.com/strangelove-ventures/fomc-oracle/pkg/extract"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
	"github.com/strangelove-ventures/fomc-oracle/pkg/types"
)

// Participant is implemented by the local Service and by the remote HTTP and
// gRPC clients the coordinator uses.
type Participant interface {
	// GetID returns the Shamir index: 1, 2, etc...
	GetID() int

	GetAddress() string

	Extract(ctx context.Context, text string) (*ExtractResponse, error)

	Health(ctx context.Context) (*HealthResponse, error)
}

const (
	ErrCodeNoDecision     = "no-decision-found"
	ErrCodeInternal       = "internal-error"
	ErrCodeInvalidRequest = "invalid-request"

	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

var (
	// ErrEmptyInput is returned for an extract request without text.
	ErrEmptyInput = errors.New("text is required")

	// ErrTransport marks a participant that could not be reached.
	ErrTransport = errors.New("participant unreachable")
)

type ExtractRequest struct {
	Text string `json:"text"`
}

type ExtractResponse struct {
	Value            int64         `json:"value"`
	IsIncrease       bool          `json:"is_increase"`
	Magnitude        uint64        `json:"magnitude"`
	PartialSignature tss.Signature `json:"partial_signature"`
	ParticipantID    int           `json:"participant_id"`
}

func (r *ExtractResponse) Decision() types.RateDecision {
	return types.RateDecision{Magnitude: r.Magnitude, IsIncrease: r.IsIncrease}
}

func (r *ExtractResponse) Partial() tss.PartialSignature {
	return tss.PartialSignature{ID: r.ParticipantID, Signature: r.PartialSignature}
}

// Consistent reports whether the signed decision matches the reported value.
func (r *ExtractResponse) Consistent() bool {
	return types.DecisionFromBasisPoints(r.Value) == r.Decision()
}

type HealthRequest struct{}

type HealthResponse struct {
	Status         string `json:"status"`
	ParticipantID  int    `json:"participant_id"`
	Threshold      int    `json:"threshold"`
	TotalServers   int    `json:"total_servers"`
	ShareLoaded    bool   `json:"share_loaded"`
	GroupKeyLoaded bool   `json:"group_key_loaded"`
}

func (h *HealthResponse) Healthy() bool {
	return h.Status == StatusHealthy && h.ShareLoaded && h.GroupKeyLoaded
}

type InfoResponse struct {
	Service       string   `json:"service"`
	Version       string   `json:"version"`
	ParticipantID int      `json:"participant_id"`
	Endpoints     []string `json:"endpoints"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TransportError wraps a failure to reach participant ID.
type TransportError struct {
	ID      int
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("participant %d (%s) unreachable: %v", e.ID, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RemoteError is a structured error returned by a reachable participant.
type RemoteError struct {
	ID      int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("participant %d: %s", e.ID, e.Code)
	}
	return fmt.Sprintf("participant %d: %s: %s", e.ID, e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case ErrCodeNoDecision:
		return target == extract.ErrNoDecision
	case ErrCodeInvalidRequest:
		return target == ErrEmptyInput
	}
	return false
}

// errorCode maps a local error onto the wire error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, extract.ErrNoDecision):
		return ErrCodeNoDecision
	case errors.Is(err, ErrEmptyInput):
		return ErrCodeInvalidRequest
	default:
		return ErrCodeInternal
	}
}
