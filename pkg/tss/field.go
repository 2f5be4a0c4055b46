package tss

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Order returns the order r of the BLS12-381 scalar field.
func Order() *big.Int { return fr.Modulus() }

// ModInverse returns a^-1 mod r.
func ModInverse(a *big.Int) (*big.Int, error) {
	r := fr.Modulus()
	v := new(big.Int).Mod(a, r)
	if v.Sign() == 0 {
		return nil, fmt.Errorf("no inverse of zero")
	}
	return v.ModInverse(v, r), nil
}

// LagrangeCoefficient returns λ_i = Π_{j∈ids, j≠i} j/(j−i) mod r, the weight of
// participant i when interpolating at zero over ids.
func LagrangeCoefficient(i int, ids []int) (*big.Int, error) {
	r := fr.Modulus()
	num := big.NewInt(1)
	den := big.NewInt(1)
	found := false
	seen := make(map[int]struct{}, len(ids))
	for _, j := range ids {
		if _, ok := seen[j]; ok {
			return nil, fmt.Errorf("duplicate id %d in signer set %v", j, ids)
		}
		seen[j] = struct{}{}
		if j == i {
			found = true
			continue
		}
		num.Mul(num, big.NewInt(int64(j)))
		num.Mod(num, r)
		den.Mul(den, big.NewInt(int64(j-i)))
		den.Mod(den, r)
	}
	if !found {
		return nil, fmt.Errorf("participant %d not in signer set %v", i, ids)
	}
	inv, err := ModInverse(den)
	if err != nil {
		return nil, err
	}
	return num.Mul(num, inv).Mod(num, r), nil
}

// ReconstructSecret interpolates shares (id -> scalar) at zero.
func ReconstructSecret(shares map[int]*big.Int) (*big.Int, error) {
	ids := sortedIDs(shares)
	sum := new(big.Int)
	for _, id := range ids {
		lambda, err := LagrangeCoefficient(id, ids)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, lambda.Mul(lambda, shares[id]))
	}
	return sum.Mod(sum, fr.Modulus()), nil
}

// scalarBytes is the fixed-width big-endian encoding used for shares at rest.
func scalarBytes(s *big.Int) []byte {
	return s.FillBytes(make([]byte, fr.Bytes))
}

func scalarFromBytes(b []byte) (*big.Int, error) {
	if len(b) != fr.Bytes {
		return nil, fmt.Errorf("scalar must be %d bytes, got %d", fr.Bytes, len(b))
	}
	s := new(big.Int).SetBytes(b)
	if s.Sign() == 0 || s.Cmp(fr.Modulus()) >= 0 {
		return nil, fmt.Errorf("scalar out of range")
	}
	return s, nil
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
