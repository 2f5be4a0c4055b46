package tss

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// PublicKeySet is the shared key material, safe to distribute to every
// participant, coordinator and verifier.
type PublicKeySet struct {
	GroupPublicKey PublicKey         `json:"group_public_key"`
	Threshold      int               `json:"threshold"`
	TotalServers   int               `json:"total_servers"`
	PublicShares   map[int]PublicKey `json:"public_shares"`
}

// Config returns the threshold config the set was generated for.
func (s *PublicKeySet) Config() (ThresholdConfig, error) {
	return NewThresholdConfig(s.TotalServers, s.Threshold)
}

// Validate decodes every point and checks that the first t public shares
// interpolate to the group public key.
func (s *PublicKeySet) Validate() error {
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if _, err := s.GroupPublicKey.point(); err != nil {
		return fmt.Errorf("group public key: %w", err)
	}
	if len(s.PublicShares) != cfg.n {
		return fmt.Errorf("expected %d public shares, got %d", cfg.n, len(s.PublicShares))
	}
	ids := make([]int, 0, cfg.t)
	for id := 1; id <= cfg.n; id++ {
		pk, ok := s.PublicShares[id]
		if !ok {
			return fmt.Errorf("missing public share for participant %d", id)
		}
		if _, err := pk.point(); err != nil {
			return fmt.Errorf("public share %d: %w", id, err)
		}
		if id <= cfg.t {
			ids = append(ids, id)
		}
	}
	group, err := CombinePublicKeys(s.PublicShares, ids)
	if err != nil {
		return err
	}
	if !group.Equal(s.GroupPublicKey) {
		return fmt.Errorf("public shares do not interpolate to the group public key")
	}
	return nil
}

// Combiner returns a Combiner for this key set.
func (s *PublicKeySet) Combiner() (*Combiner, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	return NewCombiner(cfg, s.GroupPublicKey, s.PublicShares)
}

func (s *PublicKeySet) WriteFile(file string) error {
	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, jsonBytes, 0644) //nolint:gosec
}

// LoadPublicKeySet reads and validates a public key set from file.
func LoadPublicKeySet(file string) (*PublicKeySet, error) {
	jsonBytes, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var s PublicKeySet
	if err := json.Unmarshal(jsonBytes, &s); err != nil {
		return nil, fmt.Errorf("error unmarshalling public key set %s: %w", file, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid public key set %s: %w", file, err)
	}
	return &s, nil
}

type shareFile struct {
	ID    int    `json:"participant_id"`
	Share string `json:"share"`
}

// WriteFile persists the share with owner-only permissions.
func (s *SecretShare) WriteFile(file string) error {
	jsonBytes, err := json.MarshalIndent(shareFile{ID: s.ID, Share: hex.EncodeToString(scalarBytes(s.Scalar))}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, jsonBytes, 0600)
}

func LoadSecretShare(file string) (*SecretShare, error) {
	jsonBytes, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var sf shareFile
	if err := json.Unmarshal(jsonBytes, &sf); err != nil {
		return nil, fmt.Errorf("error unmarshalling share %s: %w", file, err)
	}
	raw, err := decodeHex([]byte(sf.Share))
	if err != nil {
		return nil, fmt.Errorf("share %s: %w", file, err)
	}
	scalar, err := scalarFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("share %s: %w", file, err)
	}
	if sf.ID < 1 {
		return nil, fmt.Errorf("share %s: invalid participant id %d", file, sf.ID)
	}
	return &SecretShare{ID: sf.ID, Scalar: scalar}, nil
}
