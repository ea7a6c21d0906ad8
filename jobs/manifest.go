package jobs

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadManifest parses a newline-delimited list of frontier values. Blank
// lines are skipped; duplicates are preserved in order, since a value the
// search explores from two directions owns two manifest entries on purpose.
func ReadManifest(r io.Reader) ([]string, error) {
	var roots []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, c := range line {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("manifest entry %q is not a decimal value", line)
			}
		}
		roots = append(roots, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return roots, nil
}

// WriteManifest writes one value per line.
func WriteManifest(w io.Writer, roots []string) error {
	bw := bufio.NewWriter(w)
	for _, r := range roots {
		if _, err := fmt.Fprintln(bw, r); err != nil {
			return err
		}
	}
	return bw.Flush()
}
