package stats

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/oracle"
	"github.com/INLOpen/primetree/tree"
)

// JobStats pairs a manifest entry with its parsed stats table. The same
// root may legitimately appear more than once: the left-or-right discipline
// can reach one value from two directions, and the manifest keeps both
// entries so the duplicated subtree rows are summed twice, matching the
// duplicated counts in the merged tree.
type JobStats struct {
	Root  string
	Table *Table
}

// CombineOptions configures a stats aggregation pass.
type CombineOptions struct {
	// Root is the root pass table; its rows at or below SplitLength are
	// final and are copied, never re-summed.
	Root *Table
	// Jobs holds every manifest entry's table, in manifest order. All job
	// files must be present; partial aggregation is not a supported mode.
	Jobs []JobStats
	// SplitLength is the digit length the search space was split at. Rows
	// above it are summed across job tables.
	SplitLength int
	// Oracle drives the shape regeneration for hash verification. Defaults
	// to BPSW.
	Oracle oracle.Oracle
	// ExpectedHash, when set, is checked against the recomputed whole-tree
	// hash; disagreement is fatal.
	ExpectedHash *uint64
	Logger       *slog.Logger
}

// Combine merges a root table with the job tables and recomputes the
// whole-tree structural hash to cross-check the split. The returned table
// describes the full, unbounded tree (root 0, unlimited max length), with
// Hash set to the recomputed value.
func Combine(opts CombineOptions) (*Table, error) {
	if opts.Root == nil {
		return nil, fmt.Errorf("%w: no root table", core.ErrMalformedStats)
	}
	if opts.SplitLength < 2 {
		return nil, fmt.Errorf("split length %d too small", opts.SplitLength)
	}
	if opts.Oracle == nil {
		opts.Oracle = oracle.BPSW{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	disc, base := opts.Root.PrimeType, opts.Root.Base

	out := NewTable(disc, base, new(big.Int), UnlimitedLength)
	mergeRows(out, opts.Root, func(l int) bool { return l <= opts.SplitLength })

	// Duplicate manifest roots must report identical hashes; two jobs for
	// the same value that disagree mean at least one output is corrupted.
	jobHashes := make(map[string]uint64)
	for _, js := range opts.Jobs {
		if js.Table == nil {
			return nil, fmt.Errorf("%w: root %s", core.ErrMissingJobStats, js.Root)
		}
		if js.Table.PrimeType != disc || js.Table.Base != base {
			return nil, fmt.Errorf("%w: job %s is %s base %d, root table is %s base %d",
				core.ErrMalformedStats, js.Root, js.Table.PrimeType, js.Table.Base, disc, base)
		}
		if prev, ok := jobHashes[js.Root]; ok && prev != js.Table.Hash {
			return nil, fmt.Errorf("%w: job %s reported %d and %d", core.ErrHashMismatch, js.Root, prev, js.Table.Hash)
		}
		jobHashes[js.Root] = js.Table.Hash
		mergeRows(out, js.Table, func(l int) bool { return l > opts.SplitLength })
	}

	hash, err := recomputeHash(disc, base, opts.SplitLength, opts.Oracle, jobHashes, opts.Logger)
	if err != nil {
		return nil, err
	}
	out.Hash = hash
	if opts.ExpectedHash != nil && *opts.ExpectedHash != hash {
		return nil, fmt.Errorf("%w: recomputed %d, expected %d", core.ErrHashMismatch, hash, *opts.ExpectedHash)
	}
	opts.Logger.Info("combined stats",
		"prime_type", disc.String(), "base", base,
		"split_length", opts.SplitLength, "jobs", len(opts.Jobs), "hash", hash)
	return out, nil
}

// mergeRows folds src rows passing the length filter into dst: counts add,
// minima and maxima merge with the zero slot treated as "no data yet".
func mergeRows(dst, src *Table, keep func(length int) bool) {
	for l, sr := range src.Rows {
		if !keep(l) {
			continue
		}
		dr := dst.row(l)
		dr.Count += sr.Count
		mergeMin(dr.Min, sr.Min)
		mergeMax(dr.Max, sr.Max)
		for k := 0; k < dst.MaxChildren && k < src.MaxChildren; k++ {
			dr.CountBy[k] += sr.CountBy[k]
			mergeMin(dr.MinBy[k], sr.MinBy[k])
			mergeMax(dr.MaxBy[k], sr.MaxBy[k])
		}
	}
}

// mergeMin takes the smaller of two values, ignoring zero sentinels. With
// one side zero it keeps the nonzero side; with both zero it stays zero.
func mergeMin(acc, v *big.Int) {
	if acc.Sign() != 0 && v.Sign() != 0 {
		if v.Cmp(acc) < 0 {
			acc.Set(v)
		}
	} else if v.Cmp(acc) > 0 {
		acc.Set(v)
	}
}

func mergeMax(acc, v *big.Int) {
	if v.Cmp(acc) > 0 {
		acc.Set(v)
	}
}

// recomputeHash rebuilds the root-level tree shape down to the split depth
// with the same generation algorithm as the root pass, then folds hashes
// bottom-up, substituting each frontier node's hash with the hash its job
// reported instead of descending further.
func recomputeHash(disc core.Discipline, base, splitLength int, orc oracle.Oracle, jobHashes map[string]uint64, logger *slog.Logger) (uint64, error) {
	depth := splitLength + 1
	if disc == core.LeftAndRight {
		// Lengths step by two below a both-sided root.
		depth = splitLength + 2
	}
	res, err := tree.Generate(tree.GenerateOptions{
		Base:       base,
		Discipline: disc,
		MaxLength:  depth,
		Oracle:     orc,
		Logger:     logger,
	})
	if err != nil {
		return 0, fmt.Errorf("regenerating split shape: %w", err)
	}
	seen := make(map[string]bool, len(jobHashes))
	h := FoldHash(res.Root, jobHashes, seen)
	for root := range jobHashes {
		if !seen[root] {
			logger.Warn("job root not present in regenerated split shape", "root", root)
		}
	}
	return h, nil
}

// FoldHash computes a subtree's structural hash, taking any node whose
// value has a precomputed job hash from the map rather than folding its
// children. seen, if non-nil, records which map entries were consumed.
func FoldHash(n *core.Node, jobHashes map[string]uint64, seen map[string]bool) uint64 {
	key := n.Value.String()
	if h, ok := jobHashes[key]; ok {
		if seen != nil {
			seen[key] = true
		}
		return h
	}
	h := core.HashInit(n.Value)
	for _, c := range n.Children {
		h = core.HashUpdate(h, c.Key, FoldHash(c.Node, jobHashes, seen))
	}
	return h
}
