package core

import "math/big"

// CountDigits returns the number of digits of v in the given base, 0 for a
// zero value.
func CountDigits(v *big.Int, base int) int {
	if v.Sign() <= 0 {
		return 0
	}
	b := big.NewInt(int64(base))
	n := new(big.Int).Set(v)
	d := 0
	for n.Sign() > 0 {
		n.Quo(n, b)
		d++
	}
	return d
}

// PowerCache memoizes powers of a base. Left appends need base^length for
// the place value of the new most significant digit; deep left-truncatable
// trees hit the same exponents on every sibling, so the cache grows once
// per depth and is then read-only.
type PowerCache struct {
	base *big.Int
	pows []*big.Int
}

// NewPowerCache returns a cache for powers of base, seeded with base^0.
func NewPowerCache(base int) *PowerCache {
	return &PowerCache{
		base: big.NewInt(int64(base)),
		pows: []*big.Int{big.NewInt(1)},
	}
}

// Pow returns base^i. The returned value is shared and must not be mutated.
func (p *PowerCache) Pow(i int) *big.Int {
	for len(p.pows) <= i {
		next := new(big.Int).Mul(p.pows[len(p.pows)-1], p.base)
		p.pows = append(p.pows, next)
	}
	return p.pows[i]
}
