package stats

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/tree"
)

func TestWriteParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		disc core.Discipline
	}{
		{"right", core.Right},
		{"left", core.Left},
		{"left or right", core.LeftOrRight},
		{"left and right", core.LeftAndRight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tree.Generate(tree.GenerateOptions{Base: 10, Discipline: tt.disc, MaxLength: 3})
			require.NoError(t, err)
			table := Collect(res.Root, tt.disc, 10, new(big.Int), 3)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, table))

			got, err := Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, table.PrimeType, got.PrimeType)
			assert.Equal(t, table.Base, got.Base)
			assert.Zero(t, table.Root.Cmp(got.Root))
			assert.Equal(t, table.MaxLength, got.MaxLength)
			assert.Equal(t, table.Hash, got.Hash)
			assert.Equal(t, table.MaxChildren, got.MaxChildren)

			// The length-0 row is a write-side omission, not data loss.
			for l, row := range table.Rows {
				if l == 0 {
					assert.NotContains(t, got.Rows, l)
					continue
				}
				require.Contains(t, got.Rows, l)
				assert.Equal(t, row, got.Rows[l])
			}
		})
	}
}

func TestWriteLayout(t *testing.T) {
	res, err := tree.Generate(tree.GenerateOptions{Base: 10, Discipline: core.Right, MaxLength: 2})
	require.NoError(t, err)
	table := Collect(res.Root, core.Right, 10, new(big.Int), 2)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	assert.Equal(t, "# prime_type = r", lines[0])
	assert.Equal(t, "# base = 10", lines[1])
	assert.Equal(t, "# root = 0", lines[2])
	assert.Equal(t, "# max_length = 2", lines[3])
	assert.Equal(t, "digits,all,0,1,2,3,4,5,6,7,8,9", lines[4])
	assert.Equal(t, "1,4,0,0,3,1,0,0,0,0,0,0", lines[5])
	assert.Equal(t, ",2,0,0,2,7,0,0,0,0,0,0", lines[6])
	assert.Equal(t, ",7,0,0,5,7,0,0,0,0,0,0", lines[7])
	assert.Equal(t, "2,9,9,0,0,0,0,0,0,0,0,0", lines[8])
	assert.Equal(t, ",23,23,0,0,0,0,0,0,0,0,0", lines[9])
	assert.Equal(t, ",79,79,0,0,0,0,0,0,0,0,0", lines[10])
	// The hash is always the final line.
	assert.Contains(t, lines[len(lines)-1], "# hash = ")
}

func TestWriteLeftOrRightNote(t *testing.T) {
	table := NewTable(core.LeftOrRight, 10, new(big.Int), UnlimitedLength)
	table.Observe(big.NewInt(2), 1, 0)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))
	assert.Contains(t, buf.String(), "# NOTE")

	// The note line must not confuse the parser.
	_, err := Parse(&buf)
	require.NoError(t, err)
}

func TestParseErrors(t *testing.T) {
	valid := "# prime_type = r\n# base = 10\n# root = 0\n# max_length = 2\n" +
		"digits,all,0,1,2,3,4,5,6,7,8,9\n" +
		"1,4,0,0,3,1,0,0,0,0,0,0\n" +
		",2,0,0,2,7,0,0,0,0,0,0\n" +
		",7,0,0,5,7,0,0,0,0,0,0\n" +
		"# hash = 42\n"
	if _, err := Parse(strings.NewReader(valid)); err != nil {
		t.Fatalf("fixture must parse: %v", err)
	}

	tests := []struct {
		name  string
		input string
	}{
		{"missing hash", strings.Replace(valid, "# hash = 42\n", "", 1)},
		{"missing prime_type", strings.Replace(valid, "# prime_type = r\n", "", 1)},
		{"bad prime_type", strings.Replace(valid, "= r", "= x", 1)},
		{"bad header row", strings.Replace(valid, "digits,all", "length,all", 1)},
		{"dangling row", valid[:len(valid)-len("# hash = 42\n")] + "2,9\n# hash = 42\n"},
		{"wrong column count", strings.Replace(valid, "1,4,0,0,3,1,0,0,0,0,0,0", "1,4,0", 1)},
		{"non numeric count", strings.Replace(valid, "1,4,", "1,x,", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, core.ErrMalformedStats)
		})
	}
}
