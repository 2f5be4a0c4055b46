package tss

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for an impossible (n, t) pair. Never retried.
	ErrInvalidConfig = errors.New("invalid threshold config")

	// ErrInsufficientQuorum is returned when fewer than t usable partial signatures exist.
	ErrInsufficientQuorum = errors.New("insufficient quorum")

	// ErrVerification is returned when a partial or combined signature fails its pairing check.
	ErrVerification = errors.New("signature verification failed")
)

type ConfigError struct {
	N, T int
	msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid threshold config (n=%d, t=%d): %s", e.N, e.T, e.msg)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

type QuorumError struct {
	Have int
	Need int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("insufficient quorum: have %d, need %d", e.Have, e.Need)
}

func (e *QuorumError) Unwrap() error { return ErrInsufficientQuorum }

// VerificationError names the participant whose signature failed. ID is zero
// for the combined signature.
type VerificationError struct {
	ID     int
	Reason string
}

func (e *VerificationError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("combined signature invalid: %s", e.Reason)
	}
	return fmt.Sprintf("partial signature from participant %d invalid: %s", e.ID, e.Reason)
}

func (e *VerificationError) Unwrap() error { return ErrVerification }
