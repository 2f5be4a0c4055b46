package tss

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Polynomial holds coefficients [a0, a1, ..., a_{t-1}] over the scalar field.
// a0 is the shared secret.
type Polynomial []*big.Int

// NewRandomPolynomial returns a polynomial of the given degree with secret as
// its constant term and uniformly random remaining coefficients.
func NewRandomPolynomial(random io.Reader, secret *big.Int, degree int) (Polynomial, error) {
	if random == nil {
		random = rand.Reader
	}
	p := make(Polynomial, degree+1)
	p[0] = new(big.Int).Mod(secret, fr.Modulus())
	for i := 1; i <= degree; i++ {
		c, err := rand.Int(random, fr.Modulus())
		if err != nil {
			return nil, err
		}
		p[i] = c
	}
	return p, nil
}

// Y evaluates the polynomial at x with Horner's rule.
func (p Polynomial) Y(x int) *big.Int {
	r := fr.Modulus()
	bx := big.NewInt(int64(x))
	sum := new(big.Int)
	for i := len(p) - 1; i >= 0; i-- {
		sum.Mul(sum, bx)
		sum.Add(sum, p[i])
		sum.Mod(sum, r)
	}
	return sum
}

// zero overwrites the coefficients once shares are dealt.
func (p Polynomial) zero() {
	for _, c := range p {
		c.SetInt64(0)
	}
}
