// Package ledger submits threshold-signed rate decisions to the on-chain
// interest_rate module.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
	"github.com/strangelove-ventures/fomc-oracle/pkg/types"
)

// ErrUnrecognizedResponse is returned when the ledger answers with a body
// that is not a TxResponse.
var ErrUnrecognizedResponse = errors.New("unrecognized ledger response shape")

// TxID is a ledger transaction hash.
type TxID string

// Submission is the ledger payload of one attestation.
type Submission struct {
	Decision  types.RateDecision
	Signature tss.Signature
}

// Client is the ledger collaborator. RegisterGroupKey must succeed once
// before the first SubmitAttestation can verify on-chain.
type Client interface {
	RegisterGroupKey(ctx context.Context, groupKey tss.PublicKey) (TxID, error)
	SubmitAttestation(ctx context.Context, sub Submission) (TxID, error)
}

// TxResponse is the only accepted response body: {"hash": "0x..."}.
type TxResponse struct {
	Hash string `json:"hash"`
}

// ParseTxResponse decodes body strictly.
func ParseTxResponse(body []byte) (TxID, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var res TxResponse
	if err := dec.Decode(&res); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnrecognizedResponse, err)
	}
	if res.Hash == "" {
		return "", fmt.Errorf("%w: empty hash", ErrUnrecognizedResponse)
	}
	return TxID(res.Hash), nil
}
