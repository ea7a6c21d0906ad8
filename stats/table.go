// Package stats collects, formats and recombines the per-run statistics
// tables that accompany every binary tree file: for each digit length, the
// prime count, minimum and maximum, bucketed by child count, plus the
// tree's structural hash for verification.
package stats

import (
	"math/big"
	"sort"

	"github.com/INLOpen/primetree/core"
)

// UnlimitedLength is the max_length header value for unbounded runs.
const UnlimitedLength = core.UnlimitedLength

// Row holds one digit length's statistics. The zero value of a min/max slot
// is the "no data yet" sentinel; a true prime value of 0 never occurs, so 0
// is unambiguous. The all-bucket aggregate is stored explicitly because
// combined tables merge it independently of the per-bucket columns.
type Row struct {
	Count uint64
	Min   *big.Int
	Max   *big.Int
	// Per child-count bucket, 0..MaxChildren-1.
	CountBy []uint64
	MinBy   []*big.Int
	MaxBy   []*big.Int
}

func newRow(buckets int) *Row {
	r := &Row{
		Min:     new(big.Int),
		Max:     new(big.Int),
		CountBy: make([]uint64, buckets),
		MinBy:   make([]*big.Int, buckets),
		MaxBy:   make([]*big.Int, buckets),
	}
	for i := range r.MinBy {
		r.MinBy[i] = new(big.Int)
		r.MaxBy[i] = new(big.Int)
	}
	return r
}

// Table is one stats file in memory: header properties, rows keyed by digit
// length, and the structural hash of the tree the stats were taken from.
type Table struct {
	PrimeType core.Discipline
	Base      int
	Root      *big.Int
	MaxLength uint32
	Hash      uint64
	// MaxChildren is the bucket column count, fixed by PrimeType and Base.
	MaxChildren int
	Rows        map[int]*Row
}

// NewTable returns an empty table with the bucket width implied by the
// discipline and base.
func NewTable(d core.Discipline, base int, root *big.Int, maxLength uint32) *Table {
	if root == nil {
		root = new(big.Int)
	}
	return &Table{
		PrimeType:   d,
		Base:        base,
		Root:        root,
		MaxLength:   maxLength,
		MaxChildren: d.MaxChildren(base),
		Rows:        make(map[int]*Row),
	}
}

// row returns the Row for a length, creating it on first use.
func (t *Table) row(length int) *Row {
	r, ok := t.Rows[length]
	if !ok {
		r = newRow(t.MaxChildren)
		t.Rows[length] = r
	}
	return r
}

// LengthOrder returns the digit lengths in output order: ascending, except
// that the both-sided discipline lists odd lengths before even ones (its
// search space splits by parity at the root).
func (t *Table) LengthOrder() []int {
	lengths := make([]int, 0, len(t.Rows))
	for l := range t.Rows {
		lengths = append(lengths, l)
	}
	if t.PrimeType == core.LeftAndRight {
		sort.Slice(lengths, func(i, j int) bool {
			oi, oj := lengths[i]%2 == 1, lengths[j]%2 == 1
			if oi != oj {
				return oi
			}
			return lengths[i] < lengths[j]
		})
	} else {
		sort.Ints(lengths)
	}
	return lengths
}

// Observe records one node: its value, digit length and child count.
func (t *Table) Observe(value *big.Int, length, children int) {
	r := t.row(length)
	r.Count++
	updateMin(r.Min, value)
	updateMax(r.Max, value)
	if children >= 0 && children < t.MaxChildren {
		r.CountBy[children]++
		updateMin(r.MinBy[children], value)
		updateMax(r.MaxBy[children], value)
	}
}

// Collect walks a generated tree and produces its stats table. The root
// node itself is observed too; the writer skips the length-0 row.
func Collect(root *core.Node, d core.Discipline, base int, tableRoot *big.Int, maxLength uint32) *Table {
	t := NewTable(d, base, tableRoot, maxLength)
	t.Hash = root.Hash
	var walk func(n *core.Node)
	walk = func(n *core.Node) {
		t.Observe(n.Value, n.Length, len(n.Children))
		for _, c := range n.Children {
			walk(c.Node)
		}
	}
	walk(root)
	return t
}

// updateMin lowers dst to v, treating a zero dst as "no data yet".
func updateMin(dst, v *big.Int) {
	if dst.Sign() == 0 || v.Cmp(dst) < 0 {
		dst.Set(v)
	}
}

func updateMax(dst, v *big.Int) {
	if v.Cmp(dst) > 0 {
		dst.Set(v)
	}
}
