package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SignBytesSize is the length of a canonical message: u64 magnitude then a bool byte.
const SignBytesSize = 9

var ErrEncoding = errors.New("malformed canonical message")

type EncodingError struct {
	msg string
}

func (e *EncodingError) Error() string { return "malformed canonical message: " + e.msg }

func (e *EncodingError) Unwrap() error { return ErrEncoding }

// RateDecision is an interest-rate movement. A zero magnitude means the rate
// was held; IsIncrease is false in that case.
type RateDecision struct {
	Magnitude  uint64 `json:"magnitude"`
	IsIncrease bool   `json:"is_increase"`
}

// DecisionFromBasisPoints maps a signed basis point change to a decision.
func DecisionFromBasisPoints(bps int64) RateDecision {
	if bps < 0 {
		// -(bps+1)+1 avoids overflow at math.MinInt64
		return RateDecision{Magnitude: uint64(-(bps + 1)) + 1}
	}
	return RateDecision{Magnitude: uint64(bps), IsIncrease: bps > 0}
}

// BasisPoints returns the signed change. Magnitudes beyond int64 saturate.
func (d RateDecision) BasisPoints() int64 {
	const maxInt64 = uint64(1<<63 - 1)
	m := d.Magnitude
	if d.IsIncrease {
		if m > maxInt64 {
			m = maxInt64
		}
		return int64(m)
	}
	if m > maxInt64 {
		return -1 << 63
	}
	return -int64(m)
}

// Direction is "increase", "decrease" or "maintain".
func (d RateDecision) Direction() string {
	switch {
	case d.Magnitude == 0:
		return "maintain"
	case d.IsIncrease:
		return "increase"
	default:
		return "decrease"
	}
}

func (d RateDecision) String() string {
	return fmt.Sprintf("%s %d bps", d.Direction(), d.Magnitude)
}

// SignBytes is the BCS encoding of (u64, bool): 8 little-endian magnitude
// bytes followed by 0x00 or 0x01. Every participant and the on-chain
// verifier derive the same bytes.
func (d RateDecision) SignBytes() []byte {
	b := make([]byte, SignBytesSize)
	binary.LittleEndian.PutUint64(b, d.Magnitude)
	if d.IsIncrease {
		b[8] = 1
	}
	return b
}

// ParseSignBytes is the inverse of SignBytes.
func ParseSignBytes(b []byte) (RateDecision, error) {
	if len(b) != SignBytesSize {
		return RateDecision{}, &EncodingError{msg: fmt.Sprintf("expected %d bytes, got %d", SignBytesSize, len(b))}
	}
	var d RateDecision
	d.Magnitude = binary.LittleEndian.Uint64(b)
	switch b[8] {
	case 0:
	case 1:
		d.IsIncrease = true
	default:
		return RateDecision{}, &EncodingError{msg: fmt.Sprintf("invalid bool byte 0x%02x", b[8])}
	}
	return d, nil
}
