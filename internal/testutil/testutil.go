// Package testutil holds shared test fixtures: a deterministic oracle over
// a fixed prime set and assertions on partition directories.
package testutil

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/INLOpen/primetree/oracle"
)

// FixedOracle answers primality from an explicit set, so tests can carve
// arbitrary tree shapes without depending on real number theory. Values
// outside the set are composite.
type FixedOracle struct {
	primes map[string]bool
}

var _ oracle.Oracle = (*FixedOracle)(nil)

// NewFixedOracle builds an oracle that deems exactly the given decimal
// values prime.
func NewFixedOracle(primes ...string) *FixedOracle {
	set := make(map[string]bool, len(primes))
	for _, p := range primes {
		set[p] = true
	}
	return &FixedOracle{primes: set}
}

func (f *FixedOracle) IsProbablePrime(v *big.Int) bool {
	return f.primes[v.String()]
}

// Big parses a decimal string into a big.Int, failing the test on bad input.
func Big(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad decimal value %q", s)
	}
	return v
}

// RequireFile asserts that a file exists under dir and is non-empty.
func RequireFile(t *testing.T, dir, name string) {
	t.Helper()
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("expected %s in %s: %v", name, dir, err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected %s in %s to be non-empty", name, dir)
	}
}
