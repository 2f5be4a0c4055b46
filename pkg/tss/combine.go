package tss

import (
	"fmt"
	"sort"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// PartialSignature is one participant's signature with its unscaled share.
type PartialSignature struct {
	ID        int       `json:"participant_id"`
	Signature Signature `json:"signature"`
}

// SelectSigners returns the first t ids of partials in ascending order.
func SelectSigners(cfg ThresholdConfig, partials []PartialSignature) ([]int, error) {
	if !cfg.valid() {
		return nil, &ConfigError{N: cfg.n, T: cfg.t, msg: "uninitialized"}
	}
	ids := make([]int, 0, len(partials))
	seen := make(map[int]struct{}, len(partials))
	for _, p := range partials {
		if !cfg.ValidID(p.ID) {
			return nil, &VerificationError{ID: p.ID, Reason: "unknown participant id"}
		}
		if _, ok := seen[p.ID]; ok {
			return nil, &VerificationError{ID: p.ID, Reason: "duplicate partial signature"}
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	if len(ids) < cfg.t {
		return nil, &QuorumError{Have: len(ids), Need: cfg.t}
	}
	sort.Ints(ids)
	return ids[:cfg.t], nil
}

// CombineSignatures aggregates partial signatures into a threshold signature.
// When more than t partials are given only the t lowest ids are used. The
// returned ids are the signer set. Partials are not verified; see Combiner.
func CombineSignatures(cfg ThresholdConfig, partials []PartialSignature) (Signature, []int, error) {
	signers, err := SelectSigners(cfg, partials)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int]Signature, len(partials))
	for _, p := range partials {
		byID[p.ID] = p.Signature
	}

	var sum bls12381.G2Jac
	for _, id := range signers {
		point, err := byID[id].point()
		if err != nil {
			return nil, nil, &VerificationError{ID: id, Reason: err.Error()}
		}
		lambda, err := LagrangeCoefficient(id, signers)
		if err != nil {
			return nil, nil, err
		}
		var scaled bls12381.G2Affine
		scaled.ScalarMultiplication(&point, lambda)
		sum.AddMixed(&scaled)
	}

	var out bls12381.G2Affine
	out.FromJacobian(&sum)
	b := out.Bytes()
	return b[:], signers, nil
}

// CombinePublicKeys interpolates public shares at zero over ids. For a
// consistent key set any t ids give the group public key.
func CombinePublicKeys(shares map[int]PublicKey, ids []int) (PublicKey, error) {
	var sum bls12381.G1Jac
	for _, id := range ids {
		pk, ok := shares[id]
		if !ok {
			return nil, fmt.Errorf("no public share for participant %d", id)
		}
		point, err := pk.point()
		if err != nil {
			return nil, fmt.Errorf("public share %d: %w", id, err)
		}
		lambda, err := LagrangeCoefficient(id, ids)
		if err != nil {
			return nil, err
		}
		var scaled bls12381.G1Affine
		scaled.ScalarMultiplication(&point, lambda)
		sum.AddMixed(&scaled)
	}
	var out bls12381.G1Affine
	out.FromJacobian(&sum)
	b := out.Bytes()
	return b[:], nil
}

// Combiner verifies and combines partial signatures for one key set.
type Combiner struct {
	cfg    ThresholdConfig
	group  PublicKey
	shares map[int]PublicKey
}

func NewCombiner(cfg ThresholdConfig, group PublicKey, shares map[int]PublicKey) (*Combiner, error) {
	if !cfg.valid() {
		return nil, &ConfigError{N: cfg.n, T: cfg.t, msg: "uninitialized"}
	}
	if _, err := group.point(); err != nil {
		return nil, fmt.Errorf("group public key: %w", err)
	}
	for id := 1; id <= cfg.n; id++ {
		if _, ok := shares[id]; !ok {
			return nil, fmt.Errorf("missing public share for participant %d", id)
		}
	}
	return &Combiner{cfg: cfg, group: group, shares: shares}, nil
}

func (c *Combiner) Config() ThresholdConfig { return c.cfg }

func (c *Combiner) GroupPublicKey() PublicKey { return c.group }

func (c *Combiner) PublicShare(id int) (PublicKey, bool) {
	pk, ok := c.shares[id]
	return pk, ok
}

// VerifyPartial checks p against the declared public share of p.ID.
func (c *Combiner) VerifyPartial(msg []byte, p PartialSignature) error {
	pk, ok := c.shares[p.ID]
	if !ok {
		return &VerificationError{ID: p.ID, Reason: "unknown participant id"}
	}
	if err := verify(pk, msg, p.Signature); err != nil {
		return &VerificationError{ID: p.ID, Reason: err.Error()}
	}
	return nil
}

// Combine verifies every partial, combines the t lowest ids, and checks the
// result against the group public key. Nothing is returned unless all checks
// pass.
func (c *Combiner) Combine(msg []byte, partials []PartialSignature) (Signature, []int, error) {
	if len(partials) < c.cfg.t {
		return nil, nil, &QuorumError{Have: len(partials), Need: c.cfg.t}
	}
	for _, p := range partials {
		if err := c.VerifyPartial(msg, p); err != nil {
			return nil, nil, err
		}
	}
	sig, signers, err := CombineSignatures(c.cfg, partials)
	if err != nil {
		return nil, nil, err
	}
	if err := verify(c.group, msg, sig); err != nil {
		return nil, nil, &VerificationError{Reason: err.Error()}
	}
	return sig, signers, nil
}
