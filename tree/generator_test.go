package tree

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/internal/testutil"
)

// preOrderValues flattens a tree into decimal value strings, parent first,
// children in stream order.
func preOrderValues(n *core.Node) []string {
	out := []string{n.Value.String()}
	for _, c := range n.Children {
		out = append(out, preOrderValues(c.Node)...)
	}
	return out
}

func childKeys(n *core.Node) []core.ChildKey {
	keys := make([]core.ChildKey, 0, len(n.Children))
	for _, c := range n.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

func TestGenerateRightBase3(t *testing.T) {
	// Base 3 has one single-digit prime (2) and one two-digit right
	// extension of it (2*3+1 = 7).
	res, err := Generate(GenerateOptions{Base: 3, Discipline: core.Right, MaxLength: 2})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xFF, 0x02, 0x01, 0xFF, 0xFF, 0xFF}, res.Stream)
	assert.Equal(t, uint64(0xFFFFC003000FBF84), res.Hash)
	assert.Equal(t, res.Root.Hash, res.Hash)
	assert.Equal(t, []string{"0", "2", "7"}, preOrderValues(res.Root))
	assert.Equal(t, 3, res.Root.CountNodes())
}

func TestGenerateRightBase10TwoDigits(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.Right, MaxLength: 2})
	require.NoError(t, err)

	wantStream := []byte{
		0xFF,
		0x02, 0x03, 0xFF, 0x09, 0xFF, 0xFF,
		0x03, 0x01, 0xFF, 0x07, 0xFF, 0xFF,
		0x05, 0x03, 0xFF, 0x09, 0xFF, 0xFF,
		0x07, 0x01, 0xFF, 0x03, 0xFF, 0x09, 0xFF, 0xFF,
		0xFF,
	}
	assert.Equal(t, wantStream, res.Stream)
	assert.Equal(t, []string{
		"0", "2", "23", "29", "3", "31", "37", "5", "53", "59", "7", "71", "73", "79",
	}, preOrderValues(res.Root))

	// Nine candidates are tested under the root and under each single digit
	// prime; the two-digit leaves sit at the length bound and test none.
	assert.Equal(t, uint64(45), res.OracleQueries)
}

func TestGenerateLeftBase10TwoDigits(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.Left, MaxLength: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"0", "2", "3", "13", "23", "43", "53", "73", "83", "5", "7", "17", "37", "47", "67", "97",
	}, preOrderValues(res.Root))

	// Every left extension of 2 is even and of 5 divisible by five.
	two, err := res.Root.ChildByKey(2)
	require.NoError(t, err)
	assert.True(t, two.IsLeaf())
	five, err := res.Root.ChildByKey(5)
	require.NoError(t, err)
	assert.True(t, five.IsLeaf())
}

func TestGenerateLeftOrRight(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.LeftOrRight, MaxLength: 2})
	require.NoError(t, err)

	// Single digit primes appear exactly once, as left appends to the root.
	assert.Equal(t, []core.ChildKey{2, 3, 5, 7}, childKeys(res.Root))

	three, err := res.Root.ChildByKey(3)
	require.NoError(t, err)
	vals := make([]string, 0, len(three.Children))
	for _, c := range three.Children {
		vals = append(vals, c.Node.Value.String())
	}
	// Left appends enumerate first, then right appends keyed base+digit.
	assert.Equal(t, []string{"13", "23", "43", "53", "73", "83", "31", "37"}, vals)
	assert.Equal(t, []core.ChildKey{1, 2, 4, 5, 7, 8, 11, 17}, childKeys(three))
}

func TestGenerateLeftAndRightSingleDigits(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.LeftAndRight, MaxLength: 1})
	require.NoError(t, err)

	// At length bound 1 only the zero left digit survives, carrying the
	// single digit primes.
	assert.Equal(t, []byte{
		0xFF, 0xFF,
		0x00, 0x02, 0xFF,
		0x00, 0x03, 0xFF,
		0x00, 0x05, 0xFF,
		0x00, 0x07, 0xFF,
		0xFF,
	}, res.Stream)
	assert.Equal(t, []core.ChildKey{2, 3, 5, 7}, childKeys(res.Root))
}

func TestGenerateLeftAndRightTwoDigits(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.LeftAndRight, MaxLength: 2})
	require.NoError(t, err)

	// The root admits the single digit primes via dl=0 plus every two-digit
	// prime via (dl, dr); for both, the child key equals the value.
	twoDigit := []string{
		"11", "13", "17", "19", "23", "29", "31", "37", "41", "43", "47",
		"53", "59", "61", "67", "71", "73", "79", "83", "89", "97",
	}
	want := append([]string{"2", "3", "5", "7"}, twoDigit...)
	vals := make([]string, 0, len(res.Root.Children))
	for _, c := range res.Root.Children {
		vals = append(vals, c.Node.Value.String())
		assert.Equal(t, c.Node.Value.String(), big.NewInt(int64(c.Key)).String())
	}
	assert.ElementsMatch(t, want, vals)

	// dl enumerates before dr, so singles come first, then 11, 13, ...
	assert.Equal(t, "2", vals[0])
	assert.Equal(t, "11", vals[4])

	n23, err := res.Root.ChildByKey(23)
	require.NoError(t, err)
	assert.Equal(t, 2, n23.Length)
	assert.True(t, n23.IsLeaf())
}

func TestGenerateFromJobRoot(t *testing.T) {
	res, err := Generate(GenerateOptions{
		Base:       10,
		Discipline: core.Right,
		Root:       big.NewInt(23),
		MaxLength:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xFF, 0x03, 0xFF, 0x09, 0xFF, 0xFF}, res.Stream)
	assert.Equal(t, []string{"23", "233", "239"}, preOrderValues(res.Root))
	assert.Equal(t, 2, res.Root.Length)
}

func TestGenerateMaxLengthZero(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.Right, MaxLength: 0})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, res.Stream)
	assert.Equal(t, uint64(0), res.Hash)
	assert.True(t, res.Root.IsLeaf())
}

func TestGenerateDeterministic(t *testing.T) {
	opts := GenerateOptions{Base: 10, Discipline: core.Left, MaxLength: 4}
	a, err := Generate(opts)
	require.NoError(t, err)
	b, err := Generate(opts)
	require.NoError(t, err)
	assert.Equal(t, a.Stream, b.Stream)
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.Digest, b.Digest)
}

func TestGenerateWithFixedOracle(t *testing.T) {
	// A fixed-set oracle carves an arbitrary shape regardless of actual
	// primality.
	orc := testutil.NewFixedOracle("4", "42")
	res, err := Generate(GenerateOptions{
		Base:       10,
		Discipline: core.Right,
		MaxLength:  3,
		Oracle:     orc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "4", "42"}, preOrderValues(res.Root))
	// Nine candidates under each of the three nodes above the length bound.
	assert.Equal(t, uint64(27), res.OracleQueries)
}

func TestGenerateRejectsBadInputs(t *testing.T) {
	_, err := Generate(GenerateOptions{Base: 1, Discipline: core.Right, MaxLength: 2})
	assert.ErrorIs(t, err, core.ErrInvalidBase)

	_, err = Generate(GenerateOptions{Base: 10, Discipline: core.Discipline(9), MaxLength: 2})
	assert.ErrorIs(t, err, core.ErrInvalidDiscipline)
}
