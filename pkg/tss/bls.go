package tss

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// DST is the hash-to-curve domain separation tag of the proof-of-possession
// ciphersuite, shared with the on-chain verifier.
const DST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_"

const (
	PublicKeySize = bls12381.SizeOfG1AffineCompressed
	SignatureSize = bls12381.SizeOfG2AffineCompressed
)

var (
	g1Gen    bls12381.G1Affine
	g1NegGen bls12381.G1Affine
)

func init() {
	_, _, g1Gen, _ = bls12381.Generators()
	g1NegGen.Neg(&g1Gen)
}

// PublicKey is a compressed G1 point. It marshals to hex.
type PublicKey []byte

// Signature is a compressed G2 point. It marshals to hex.
type Signature []byte

func (pk PublicKey) String() string { return hex.EncodeToString(pk) }

func (pk PublicKey) MarshalText() ([]byte, error) { return []byte(hex.EncodeToString(pk)), nil }

func (pk *PublicKey) UnmarshalText(text []byte) error {
	b, err := decodeHex(text)
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	*pk = b
	return nil
}

func (pk PublicKey) Equal(other PublicKey) bool { return string(pk) == string(other) }

func (pk PublicKey) point() (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if len(pk) != PublicKeySize {
		return p, fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(pk))
	}
	if _, err := p.SetBytes(pk); err != nil {
		return p, fmt.Errorf("decode public key: %w", err)
	}
	if p.IsInfinity() {
		return p, errors.New("public key is the identity")
	}
	return p, nil
}

func (sig Signature) String() string { return hex.EncodeToString(sig) }

func (sig Signature) MarshalText() ([]byte, error) { return []byte(hex.EncodeToString(sig)), nil }

func (sig *Signature) UnmarshalText(text []byte) error {
	b, err := decodeHex(text)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	*sig = b
	return nil
}

func (sig Signature) Equal(other Signature) bool { return string(sig) == string(other) }

func (sig Signature) point() (bls12381.G2Affine, error) {
	var p bls12381.G2Affine
	if len(sig) != SignatureSize {
		return p, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	if _, err := p.SetBytes(sig); err != nil {
		return p, fmt.Errorf("decode signature: %w", err)
	}
	if p.IsInfinity() {
		return p, errors.New("signature is the identity")
	}
	return p, nil
}

// ParsePublicKey decodes a hex public key and checks it is a valid G1 point.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if err := pk.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	if _, err := pk.point(); err != nil {
		return nil, err
	}
	return pk, nil
}

// ParseSignature decodes a hex signature and checks it is a valid G2 point.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	if err := sig.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	if _, err := sig.point(); err != nil {
		return nil, err
	}
	return sig, nil
}

func decodeHex(text []byte) ([]byte, error) {
	if len(text) >= 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		text = text[2:]
	}
	out := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(out, text); err != nil {
		return nil, err
	}
	return out, nil
}

// PublicKeyFromScalar returns sk·G1.
func PublicKeyFromScalar(sk *big.Int) PublicKey {
	var p bls12381.G1Affine
	p.ScalarMultiplication(&g1Gen, sk)
	b := p.Bytes()
	return b[:]
}

func hashToG2(msg []byte) (bls12381.G2Affine, error) {
	return bls12381.HashToG2(msg, []byte(DST))
}

// Sign returns H(msg)·sk where H hashes to G2 under DST.
func Sign(sk *big.Int, msg []byte) (Signature, error) {
	if sk == nil || sk.Sign() == 0 {
		return nil, errors.New("empty signing key")
	}
	h, err := hashToG2(msg)
	if err != nil {
		return nil, fmt.Errorf("hash to G2: %w", err)
	}
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&h, sk)
	b := sig.Bytes()
	return b[:], nil
}

// Verify checks e(pk, H(msg)) == e(G1, sig). Malformed inputs verify false.
func Verify(pk PublicKey, msg []byte, sig Signature) bool {
	return verify(pk, msg, sig) == nil
}

func verify(pk PublicKey, msg []byte, sig Signature) error {
	pkPoint, err := pk.point()
	if err != nil {
		return err
	}
	sigPoint, err := sig.point()
	if err != nil {
		return err
	}
	h, err := hashToG2(msg)
	if err != nil {
		return fmt.Errorf("hash to G2: %w", err)
	}
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{g1NegGen, pkPoint},
		[]bls12381.G2Affine{sigPoint, h},
	)
	if err != nil {
		return fmt.Errorf("pairing check: %w", err)
	}
	if !ok {
		return errors.New("pairing mismatch")
	}
	return nil
}
