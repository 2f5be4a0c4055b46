package tss

import (
	"fmt"
	"math/big"
)

// SecretShare is one participant's Shamir share. It never leaves the participant.
type SecretShare struct {
	ID     int
	Scalar *big.Int
}

func (s *SecretShare) PublicKey() PublicKey { return PublicKeyFromScalar(s.Scalar) }

// PartialSigner signs with a single share and checks its own output.
type PartialSigner struct {
	id     int
	share  *big.Int
	pubKey PublicKey
}

// NewPartialSigner binds share to the deployment. If declared is non-empty it
// must equal share·G1, so a participant never runs with a mismatched key.
func NewPartialSigner(cfg ThresholdConfig, share *SecretShare, declared PublicKey) (*PartialSigner, error) {
	if !cfg.valid() {
		return nil, &ConfigError{N: cfg.n, T: cfg.t, msg: "uninitialized"}
	}
	if share == nil || share.Scalar == nil || share.Scalar.Sign() == 0 {
		return nil, fmt.Errorf("empty secret share")
	}
	if !cfg.ValidID(share.ID) {
		return nil, fmt.Errorf("participant id %d outside 1..%d", share.ID, cfg.n)
	}
	pub := share.PublicKey()
	if len(declared) > 0 && !pub.Equal(declared) {
		return nil, fmt.Errorf("share for participant %d does not match its public share", share.ID)
	}
	return &PartialSigner{id: share.ID, share: share.Scalar, pubKey: pub}, nil
}

func (s *PartialSigner) ID() int { return s.id }

func (s *PartialSigner) PublicKey() PublicKey { return s.pubKey }

// Sign signs msg with the unscaled share.
func (s *PartialSigner) Sign(msg []byte) (PartialSignature, error) {
	sig, err := Sign(s.share, msg)
	if err != nil {
		return PartialSignature{}, err
	}
	if err := verify(s.pubKey, msg, sig); err != nil {
		return PartialSignature{}, &VerificationError{ID: s.id, Reason: "self-check: " + err.Error()}
	}
	return PartialSignature{ID: s.id, Signature: sig}, nil
}
