package tss

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// KeySet is the output of a trusted-dealer key generation.
type KeySet struct {
	Config         ThresholdConfig
	GroupPublicKey PublicKey
	PublicShares   map[int]PublicKey
	Shares         map[int]*SecretShare
}

// ErrKeygenSelfCheck means the dealt shares do not interpolate back to the
// master secret. It indicates an arithmetic bug and is not retried.
var ErrKeygenSelfCheck = errors.New("key generation self-check failed")

// GenerateKeys deals cfg.N() shares of a fresh master secret with threshold
// cfg.T(). random defaults to crypto/rand.
func GenerateKeys(random io.Reader, cfg ThresholdConfig) (*KeySet, error) {
	if !cfg.valid() {
		return nil, &ConfigError{N: cfg.n, T: cfg.t, msg: "uninitialized"}
	}
	if random == nil {
		random = rand.Reader
	}
	master, err := randomNonZeroScalar(random)
	if err != nil {
		return nil, err
	}
	defer master.SetInt64(0)
	return dealShares(random, cfg, master)
}

func randomNonZeroScalar(random io.Reader) (*big.Int, error) {
	for {
		s, err := rand.Int(random, fr.Modulus())
		if err != nil {
			return nil, fmt.Errorf("draw scalar: %w", err)
		}
		if s.Sign() != 0 {
			return s, nil
		}
	}
}

func dealShares(random io.Reader, cfg ThresholdConfig, master *big.Int) (*KeySet, error) {
	poly, err := NewRandomPolynomial(random, master, cfg.t-1)
	if err != nil {
		return nil, fmt.Errorf("draw polynomial: %w", err)
	}
	defer poly.zero()

	ks := &KeySet{
		Config:         cfg,
		GroupPublicKey: PublicKeyFromScalar(master),
		PublicShares:   make(map[int]PublicKey, cfg.n),
		Shares:         make(map[int]*SecretShare, cfg.n),
	}
	for id := 1; id <= cfg.n; id++ {
		s := poly.Y(id)
		if s.Sign() == 0 {
			return nil, fmt.Errorf("%w: zero share for participant %d", ErrKeygenSelfCheck, id)
		}
		ks.Shares[id] = &SecretShare{ID: id, Scalar: s}
		ks.PublicShares[id] = PublicKeyFromScalar(s)
	}

	if err := ks.selfCheck(master); err != nil {
		return nil, err
	}
	return ks, nil
}

// selfCheck interpolates ids 1..t and compares against the master secret and
// the group public key.
func (ks *KeySet) selfCheck(master *big.Int) error {
	subset := make(map[int]*big.Int, ks.Config.t)
	ids := make([]int, 0, ks.Config.t)
	for id := 1; id <= ks.Config.t; id++ {
		subset[id] = ks.Shares[id].Scalar
		ids = append(ids, id)
	}
	secret, err := ReconstructSecret(subset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeygenSelfCheck, err)
	}
	if secret.Cmp(master) != 0 {
		return fmt.Errorf("%w: reconstructed secret mismatch", ErrKeygenSelfCheck)
	}
	group, err := CombinePublicKeys(ks.PublicShares, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeygenSelfCheck, err)
	}
	if !group.Equal(ks.GroupPublicKey) {
		return fmt.Errorf("%w: interpolated group key mismatch", ErrKeygenSelfCheck)
	}
	return nil
}

// PublicKeySet returns the shareable part of the key set.
func (ks *KeySet) PublicKeySet() *PublicKeySet {
	shares := make(map[int]PublicKey, len(ks.PublicShares))
	for id, pk := range ks.PublicShares {
		shares[id] = pk
	}
	return &PublicKeySet{
		GroupPublicKey: ks.GroupPublicKey,
		Threshold:      ks.Config.t,
		TotalServers:   ks.Config.n,
		PublicShares:   shares,
	}
}
