// Package tss implements T-of-N threshold BLS signatures over BLS12-381.
//
// Public keys live in G1 (48 bytes compressed) and signatures in G2 (96 bytes
// compressed). Shares are generated with Shamir's scheme over the scalar field,
// every participant signs with its unscaled share, and the Lagrange weights are
// applied to the partial signatures when they are combined.
package tss
