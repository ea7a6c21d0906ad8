// Package oracle provides the probable-prime test the tree generator prunes
// with. The contract is one-sided: a false answer means definitely composite,
// a true answer means prime with overwhelming probability. Residual
// pseudoprimes are filtered downstream by an exact test; nothing in this
// module may discard a true prime.
package oracle

import "math/big"

// Oracle answers probable-primality queries. Implementations must be
// deterministic for a given input so that independent re-runs of the
// generator stay byte-identical.
type Oracle interface {
	IsProbablePrime(n *big.Int) bool
}

// Func adapts a plain function to the Oracle interface.
type Func func(n *big.Int) bool

func (f Func) IsProbablePrime(n *big.Int) bool { return f(n) }

// BPSW is the default oracle, a Baillie-PSW test. math/big's
// ProbablyPrime(0) runs one base-2 Miller-Rabin round followed by an
// extra-strong Lucas test and is deterministic, so trees built on different
// machines agree.
type BPSW struct{}

var _ Oracle = BPSW{}

func (BPSW) IsProbablePrime(n *big.Int) bool {
	if n.Sign() <= 0 {
		return false
	}
	return n.ProbablyPrime(0)
}

// Counting wraps an oracle and counts queries. The generator's oracle
// queries dominate run time, so the count is the natural cost metric for
// sizing job splits.
type Counting struct {
	Inner   Oracle
	Queries uint64
}

var _ Oracle = (*Counting)(nil)

func (c *Counting) IsProbablePrime(n *big.Int) bool {
	c.Queries++
	return c.Inner.IsProbablePrime(n)
}
