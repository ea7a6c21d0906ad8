package stats

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/tree"
)

func TestCollectRightBase10(t *testing.T) {
	res, err := tree.Generate(tree.GenerateOptions{Base: 10, Discipline: core.Right, MaxLength: 2})
	require.NoError(t, err)

	table := Collect(res.Root, core.Right, 10, new(big.Int), 2)
	assert.Equal(t, res.Hash, table.Hash)
	assert.Equal(t, 10, table.MaxChildren)

	r1 := table.Rows[1]
	require.NotNil(t, r1)
	assert.Equal(t, uint64(4), r1.Count)
	assert.Equal(t, "2", r1.Min.String())
	assert.Equal(t, "7", r1.Max.String())
	// 2, 3 and 5 each have two extensions; 7 has three.
	assert.Equal(t, uint64(3), r1.CountBy[2])
	assert.Equal(t, uint64(1), r1.CountBy[3])
	assert.Equal(t, "2", r1.MinBy[2].String())
	assert.Equal(t, "5", r1.MaxBy[2].String())
	assert.Equal(t, "7", r1.MinBy[3].String())

	r2 := table.Rows[2]
	require.NotNil(t, r2)
	assert.Equal(t, uint64(9), r2.Count)
	assert.Equal(t, "23", r2.Min.String())
	assert.Equal(t, "79", r2.Max.String())
	assert.Equal(t, uint64(9), r2.CountBy[0])

	// The root itself lands in the length-0 row the writer later omits.
	require.NotNil(t, table.Rows[0])
	assert.Equal(t, uint64(1), table.Rows[0].Count)
}

func TestObserveOutOfRangeBucket(t *testing.T) {
	table := NewTable(core.Right, 10, new(big.Int), 2)
	table.Observe(big.NewInt(7), 1, 12)
	r := table.Rows[1]
	assert.Equal(t, uint64(1), r.Count)
	// Out-of-range child counts update the aggregate only.
	for _, c := range r.CountBy {
		assert.Zero(t, c)
	}
}

func TestLengthOrder(t *testing.T) {
	mk := func(d core.Discipline, lengths ...int) *Table {
		table := NewTable(d, 10, new(big.Int), UnlimitedLength)
		for _, l := range lengths {
			table.row(l)
		}
		return table
	}

	assert.Equal(t, []int{1, 2, 3, 4}, mk(core.Right, 3, 1, 4, 2).LengthOrder())
	// The both-sided search splits by parity at the root and reports odd
	// lengths first.
	assert.Equal(t, []int{1, 3, 5, 2, 4}, mk(core.LeftAndRight, 2, 5, 1, 4, 3).LengthOrder())
}

func TestMaxChildrenPerDiscipline(t *testing.T) {
	assert.Equal(t, 10, NewTable(core.Right, 10, nil, 1).MaxChildren)
	assert.Equal(t, 10, NewTable(core.Left, 10, nil, 1).MaxChildren)
	assert.Equal(t, 20, NewTable(core.LeftOrRight, 10, nil, 1).MaxChildren)
	assert.Equal(t, 100, NewTable(core.LeftAndRight, 10, nil, 1).MaxChildren)
}
