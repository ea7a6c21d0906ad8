package stats

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/INLOpen/primetree/core"
)

// Text format of a stats file:
//
//	# prime_type = lar
//	# base = 10
//	# root = 0
//	# max_length = 4294967295
//	digits,all,0,1,...,<maxChildren-1>
//	<len>,<count>,<countPerBucket>...
//	,<min>,<minPerBucket>...
//	,<max>,<maxPerBucket>...
//	# hash = <hash>
//
// Comment lines carry `# key = value` properties; the table has one header
// row and three rows per digit length. Rows for length 0 and for lengths
// with no primes are omitted. The left-or-right table carries an extra note
// because a value reachable from both sides is counted once per path.

// Write renders a table in the text format.
func Write(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# prime_type = %s\n", t.PrimeType)
	fmt.Fprintf(bw, "# base = %d\n", t.Base)
	fmt.Fprintf(bw, "# root = %s\n", t.Root)
	fmt.Fprintf(bw, "# max_length = %d\n", t.MaxLength)
	if t.PrimeType == core.LeftOrRight {
		fmt.Fprintln(bw, "# NOTE: counts are not applicable")
	}

	bw.WriteString("digits,all")
	for k := 0; k < t.MaxChildren; k++ {
		fmt.Fprintf(bw, ",%d", k)
	}
	bw.WriteByte('\n')

	for _, l := range t.LengthOrder() {
		r := t.Rows[l]
		if l == 0 || r.Count == 0 {
			continue
		}
		fmt.Fprintf(bw, "%d,%d", l, r.Count)
		for _, c := range r.CountBy {
			fmt.Fprintf(bw, ",%d", c)
		}
		bw.WriteByte('\n')
		fmt.Fprintf(bw, ",%s", r.Min)
		for _, m := range r.MinBy {
			fmt.Fprintf(bw, ",%s", m)
		}
		bw.WriteByte('\n')
		fmt.Fprintf(bw, ",%s", r.Max)
		for _, m := range r.MaxBy {
			fmt.Fprintf(bw, ",%s", m)
		}
		bw.WriteByte('\n')
	}

	fmt.Fprintf(bw, "# hash = %d\n", t.Hash)
	return bw.Flush()
}

// Parse reads a table from the text format. The bucket column count is
// validated against the prime_type and base declared in the header.
func Parse(r io.Reader) (*Table, error) {
	props := make(map[string]string)
	var tableLines []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			// Properties look like "# key = value"; other comments are
			// free-form notes.
			fields := strings.Fields(line)
			if len(fields) == 4 && fields[2] == "=" {
				props[fields[1]] = fields[3]
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		tableLines = append(tableLines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	for _, key := range []string{"prime_type", "base", "root", "max_length", "hash"} {
		if _, ok := props[key]; !ok {
			return nil, fmt.Errorf("%w: missing property %q", core.ErrMalformedStats, key)
		}
	}
	disc, err := core.ParseDiscipline(props["prime_type"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedStats, err)
	}
	base, err := strconv.Atoi(props["base"])
	if err != nil {
		return nil, fmt.Errorf("%w: base %q", core.ErrMalformedStats, props["base"])
	}
	if err := core.ValidateBase(base); err != nil {
		return nil, err
	}
	root, ok := new(big.Int).SetString(props["root"], 10)
	if !ok {
		return nil, fmt.Errorf("%w: root %q", core.ErrMalformedStats, props["root"])
	}
	maxLength, err := strconv.ParseUint(props["max_length"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: max_length %q", core.ErrMalformedStats, props["max_length"])
	}
	hash, err := strconv.ParseUint(props["hash"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: hash %q", core.ErrMalformedStats, props["hash"])
	}

	t := NewTable(disc, base, root, uint32(maxLength))
	t.Hash = hash

	if len(tableLines) == 0 || len(tableLines)%3 != 1 {
		return nil, fmt.Errorf("%w: %d table lines", core.ErrMalformedStats, len(tableLines))
	}
	if !strings.HasPrefix(tableLines[0], "digits,all") {
		return nil, fmt.Errorf("%w: bad header row %q", core.ErrMalformedStats, tableLines[0])
	}
	tableLines = tableLines[1:]

	for i := 0; i < len(tableLines); i += 3 {
		countCols := strings.Split(tableLines[i], ",")
		minCols := strings.Split(tableLines[i+1], ",")
		maxCols := strings.Split(tableLines[i+2], ",")
		if len(countCols) != t.MaxChildren+2 || len(minCols) != t.MaxChildren+2 || len(maxCols) != t.MaxChildren+2 {
			return nil, fmt.Errorf("%w: row group at line %d has wrong column count", core.ErrMalformedStats, i)
		}
		length, err := strconv.Atoi(countCols[0])
		if err != nil {
			return nil, fmt.Errorf("%w: digits column %q", core.ErrMalformedStats, countCols[0])
		}
		row := t.row(length)
		if row.Count, err = strconv.ParseUint(countCols[1], 10, 64); err != nil {
			return nil, fmt.Errorf("%w: count %q", core.ErrMalformedStats, countCols[1])
		}
		if err := setBig(row.Min, minCols[1]); err != nil {
			return nil, err
		}
		if err := setBig(row.Max, maxCols[1]); err != nil {
			return nil, err
		}
		for k := 0; k < t.MaxChildren; k++ {
			if row.CountBy[k], err = strconv.ParseUint(countCols[k+2], 10, 64); err != nil {
				return nil, fmt.Errorf("%w: bucket count %q", core.ErrMalformedStats, countCols[k+2])
			}
			if err := setBig(row.MinBy[k], minCols[k+2]); err != nil {
				return nil, err
			}
			if err := setBig(row.MaxBy[k], maxCols[k+2]); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func setBig(dst *big.Int, s string) error {
	if _, ok := dst.SetString(s, 10); !ok {
		return fmt.Errorf("%w: numeric column %q", core.ErrMalformedStats, s)
	}
	return nil
}
