// Package otcurve implements the 1-of-2 oblivious transfer cryptography
// over NIST P-256: point arithmetic, SEC1 point compression, the
// GreetSent/GreetReceived exchange state machine, and the AES-256-CBC
// message envelope.
//
// Grounded on the source's net/crypto.rs (p256::ProjectivePoint arithmetic,
// the MessageState exchange, and the AES envelope) and on
// _examples/other_examples' spake2p.go, which solves the same
// "crypto/ecdh has no raw point add/subtract" problem by dropping to
// crypto/elliptic's affine *big.Int API.
package otcurve

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

func curve() elliptic.Curve { return elliptic.P256() }

// Point is an affine point on the P-256 curve. The zero value is not a
// valid point; use Generator, ScalarBaseMult, or Decompress.
type Point struct {
	X, Y *big.Int
}

// Generator returns the P-256 base point.
func Generator() Point {
	p := curve().Params()
	return Point{X: p.Gx, Y: p.Gy}
}

// ScalarBaseMult returns Generator() * s.
func ScalarBaseMult(s *big.Int) Point {
	x, y := curve().ScalarBaseMult(s.Bytes())
	return Point{X: x, Y: y}
}

// ScalarMult returns p * s.
func (p Point) ScalarMult(s *big.Int) Point {
	x, y := curve().ScalarMult(p.X, p.Y, s.Bytes())
	return Point{X: x, Y: y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	x, y := curve().Add(p.X, p.Y, q.X, q.Y)
	return Point{X: x, Y: y}
}

// Negate returns -p.
func (p Point) Negate() Point {
	params := curve().Params()
	ny := new(big.Int).Sub(params.P, p.Y)
	ny.Mod(ny, params.P)
	return Point{X: new(big.Int).Set(p.X), Y: ny}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return p.Add(q.Negate())
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// RandomScalar returns a uniformly random scalar in [1, N-1], matching the
// source's Scalar::random(thread_rng()).
func RandomScalar() (*big.Int, error) {
	n := curve().Params().N
	// crypto/rand.Int returns a value in [0, max), so sample from [0, N-1)
	// and add 1 to exclude zero, matching the near-uniform distribution
	// p256::Scalar::random produces (zero scalars are vanishingly rare and
	// harmless even if sampled, but excluding them avoids a degenerate
	// identity-point greeting).
	max := new(big.Int).Sub(n, big.NewInt(1))
	k, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, err
	}
	return k.Add(k, big.NewInt(1)), nil
}

// Compress returns the 33-byte SEC1 compressed encoding of p.
func (p Point) Compress() [33]byte {
	var out [33]byte
	if p.Y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	p.X.FillBytes(out[1:])
	return out
}

// Decompress parses a 33-byte SEC1 compressed point, validating that it
// lies on the P-256 curve.
func Decompress(b [33]byte) (Point, error) {
	if b[0] != 0x02 && b[0] != 0x03 {
		return Point{}, ErrInvalidPoint
	}
	params := curve().Params()
	x := new(big.Int).SetBytes(b[1:])
	if x.Cmp(params.P) >= 0 {
		return Point{}, ErrInvalidPoint
	}

	// y^2 = x^3 - 3x + b (mod p)
	y2 := new(big.Int).Exp(x, big.NewInt(3), params.P)
	threeX := new(big.Int).Mul(x, big.NewInt(3))
	y2.Sub(y2, threeX)
	y2.Add(y2, params.B)
	y2.Mod(y2, params.P)

	y := modSqrt(y2, params.P)
	if y == nil || new(big.Int).Exp(y, big.NewInt(2), params.P).Cmp(y2) != 0 {
		return Point{}, ErrInvalidPoint
	}

	wantOdd := b[0] == 0x03
	if y.Bit(0) == 1 != wantOdd {
		y.Sub(params.P, y)
	}

	pt := Point{X: x, Y: y}
	if !curve().IsOnCurve(pt.X, pt.Y) {
		return Point{}, ErrInvalidPoint
	}
	return pt, nil
}

// modSqrt computes a square root of a modulo p, where p ≡ 3 (mod 4), as is
// the case for the P-256 field prime: sqrt(a) = a^((p+1)/4) mod p.
func modSqrt(a, p *big.Int) *big.Int {
	e := new(big.Int).Add(p, big.NewInt(1))
	e.Rsh(e, 2)
	return new(big.Int).Exp(a, e, p)
}

// KeyFromPoint derives a 32-byte key from p by SHA-256 hashing its
// uncompressed SEC1 encoding, matching the source's into_key helper.
func KeyFromPoint(p Point) [32]byte {
	uncompressed := make([]byte, 65)
	uncompressed[0] = 0x04
	p.X.FillBytes(uncompressed[1:33])
	p.Y.FillBytes(uncompressed[33:65])
	return sha256.Sum256(uncompressed)
}
