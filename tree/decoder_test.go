package tree

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/primetree/core"
)

// requireSameShape compares two trees node by node: lengths, values, child
// keys and child order. Hashes are ignored since decoded trees carry none.
func requireSameShape(t *testing.T, want, got *core.Node) {
	t.Helper()
	require.Equal(t, want.Length, got.Length)
	require.Zero(t, want.Value.Cmp(got.Value), "want value %s, got %s", want.Value, got.Value)
	require.Len(t, got.Children, len(want.Children))
	for i := range want.Children {
		require.Equal(t, want.Children[i].Key, got.Children[i].Key)
		requireSameShape(t, want.Children[i].Node, got.Children[i].Node)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		disc core.Discipline
		base int
	}{
		{"right", core.Right, 10},
		{"left", core.Left, 10},
		{"left or right", core.LeftOrRight, 10},
		{"left and right", core.LeftAndRight, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Generate(GenerateOptions{Base: tt.base, Discipline: tt.disc, MaxLength: 3})
			require.NoError(t, err)

			got, err := Decode(bytes.NewReader(res.Stream), tt.disc, tt.base, nil)
			require.NoError(t, err)
			requireSameShape(t, res.Root, got)
		})
	}
}

func TestDecodeJobRootRoundTrip(t *testing.T) {
	root := big.NewInt(23)
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.Right, Root: root, MaxLength: 4})
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(res.Stream), core.Right, 10, root)
	require.NoError(t, err)
	requireSameShape(t, res.Root, got)
}

func TestPreOrder(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.Right, MaxLength: 2})
	require.NoError(t, err)

	it, err := NewPreOrder(bytes.NewReader(res.Stream), core.Right, 10, nil)
	require.NoError(t, err)

	var vals []string
	var lengths []int
	for it.Next() {
		l, v := it.At()
		lengths = append(lengths, l)
		vals = append(vals, v.String())
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{
		"0", "2", "23", "29", "3", "31", "37", "5", "53", "59", "7", "71", "73", "79",
	}, vals)
	assert.Equal(t, []int{0, 1, 2, 2, 1, 2, 2, 1, 2, 2, 1, 2, 2, 2}, lengths)
}

func TestPostOrder(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 10, Discipline: core.Right, MaxLength: 2})
	require.NoError(t, err)

	it, err := NewPostOrder(bytes.NewReader(res.Stream), core.Right, 10, nil)
	require.NoError(t, err)

	type rec struct {
		value    string
		children int
	}
	var got []rec
	for it.Next() {
		_, v, c := it.At()
		got = append(got, rec{v.String(), c})
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []rec{
		{"23", 0}, {"29", 0}, {"2", 2},
		{"31", 0}, {"37", 0}, {"3", 2},
		{"53", 0}, {"59", 0}, {"5", 2},
		{"71", 0}, {"73", 0}, {"79", 0}, {"7", 3},
		{"0", 4},
	}, got)
}

// Left appends are reconstructed in radix 10 whatever the configured base,
// so a base 8 stream decodes to the digit string read as decimal: the tree
// holds 1*8+3 = 11, the decoder reports 13.
func TestDecodeLeftAppendRadixQuirk(t *testing.T) {
	res, err := Generate(GenerateOptions{Base: 8, Discipline: core.Left, MaxLength: 2})
	require.NoError(t, err)

	three, err := res.Root.ChildByKey(3)
	require.NoError(t, err)
	gen11, err := three.ChildByKey(1)
	require.NoError(t, err)
	assert.Equal(t, "11", gen11.Value.String())

	got, err := Decode(bytes.NewReader(res.Stream), core.Left, 8, nil)
	require.NoError(t, err)
	dThree, err := got.ChildByKey(3)
	require.NoError(t, err)
	dec13, err := dThree.ChildByKey(1)
	require.NoError(t, err)
	assert.Equal(t, "13", dec13.Value.String())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		disc   core.Discipline
		stream []byte
		want   error
	}{
		{"empty stream", core.Right, nil, core.ErrTruncatedStream},
		{"placeholder cut short", core.LeftAndRight, []byte{0xFF}, core.ErrTruncatedStream},
		{"bad placeholder", core.Right, []byte{0x01, 0xFF}, core.ErrInvalidTag},
		{"missing terminator", core.Right, []byte{0xFF, 0x02}, core.ErrTruncatedStream},
		{"subtree cut short", core.Right, []byte{0xFF, 0x02, 0x03, 0xFF}, core.ErrTruncatedStream},
		{"digit zero", core.Right, []byte{0xFF, 0x00, 0xFF, 0xFF}, core.ErrInvalidTag},
		{"digit out of base", core.Right, []byte{0xFF, 0x0A, 0xFF, 0xFF}, core.ErrInvalidTag},
		{"trailing data", core.Right, []byte{0xFF, 0x02, 0xFF, 0xFF, 0x00}, core.ErrTrailingData},
		{"tag cut short", core.LeftOrRight, []byte{0xFF, 0xFF, 0x00}, core.ErrTruncatedStream},
		{"bad side byte", core.LeftOrRight, []byte{0xFF, 0xFF, 0x02, 0x03, 0xFF, 0xFF}, core.ErrInvalidTag},
		{"root both digits zero", core.LeftAndRight, []byte{0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF}, core.ErrInvalidTag},
		// The zero left digit is a root-only allowance.
		{"zero left digit below root", core.LeftAndRight, []byte{0xFF, 0xFF, 0x00, 0x02, 0x00, 0x03, 0xFF, 0xFF, 0xFF}, core.ErrInvalidTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.stream), tt.disc, 10, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPreOrderReportsTruncation(t *testing.T) {
	it, err := NewPreOrder(bytes.NewReader([]byte{0xFF, 0x02}), core.Right, 10, nil)
	require.NoError(t, err)
	require.True(t, it.Next()) // the root
	require.True(t, it.Next()) // value 2
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Error(), core.ErrTruncatedStream)
}

func TestDecodeRejectsBadParameters(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xFF, 0xFF}), core.Right, 300, nil)
	assert.ErrorIs(t, err, core.ErrInvalidBase)
}
