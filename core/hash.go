package core

import (
	"math/big"
	"math/bits"
)

// Structural hash of a prime tree. The hash of a node folds the node's own
// value with the key and hash of each child, in append order, so identical
// (value, subtree) pairs always hash identically across independent runs.
// The exact mixing below is part of the on-disk contract: stats files written
// by older runs must keep verifying.

var maskUint64 = new(big.Int).SetUint64(^uint64(0))

// Low64 returns the low 64 bits of v.
func Low64(v *big.Int) uint64 {
	if v.IsUint64() {
		return v.Uint64()
	}
	return new(big.Int).And(v, maskUint64).Uint64()
}

// HashInit seeds a node's hash from its own value.
func HashInit(v *big.Int) uint64 {
	return Low64(v) >> 1
}

// SwapHalves exchanges the high and low 32 bits of x.
func SwapHalves(x uint64) uint64 {
	return bits.RotateLeft64(x, 32)
}

// HashUpdate folds one child into a node hash: h is the running hash, key
// the child's path number, childHash the child's subtree hash. All
// arithmetic wraps modulo 2^64.
func HashUpdate(h uint64, key ChildKey, childHash uint64) uint64 {
	return h ^ SwapHalves(8191*(127*h-uint64(key))+childHash)
}
