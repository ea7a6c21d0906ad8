package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/oracle"
	"github.com/INLOpen/primetree/stats"
	"github.com/INLOpen/primetree/tree"
)

// Runner drives a full split/generate cycle on one machine: a root pass to
// the split depth, a manifest of frontier values, and one generator run per
// frontier value. The core pipeline itself is single-threaded by design;
// the runner is the scheduler layer on top, and each job it launches shares
// nothing with the others beyond the read-only configuration.
type Runner struct {
	Base        int
	Discipline  core.Discipline
	MaxLength   int
	SplitLength int
	// Workers bounds concurrent jobs; values below 1 mean one at a time.
	Workers int
	Store   *Store
	// NewOracle supplies one oracle per job so implementations need not be
	// safe for concurrent use. Defaults to BPSW, which is stateless.
	NewOracle func() oracle.Oracle
	Logger    *slog.Logger
}

// frontierDepth is the root pass depth: one digit beyond the split length,
// two for the both-sided discipline whose lengths step by two.
func (r *Runner) frontierDepth() int {
	if r.Discipline == core.LeftAndRight {
		return r.SplitLength + 2
	}
	return r.SplitLength + 1
}

// Run executes the root pass and all jobs, leaving root.bin, root.csv, the
// manifest and every job partition in the store. It returns the frontier
// values scheduled.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("runner requires a store")
	}
	if r.SplitLength < 2 {
		return nil, fmt.Errorf("split length %d too small", r.SplitLength)
	}
	if r.SplitLength >= r.MaxLength {
		return nil, fmt.Errorf("split length %d must be below max length %d", r.SplitLength, r.MaxLength)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newOracle := r.NewOracle
	if newOracle == nil {
		newOracle = func() oracle.Oracle { return oracle.BPSW{} }
	}

	// Root pass: compute the shallow tree whose leaves are the frontier.
	rootRes, err := tree.Generate(tree.GenerateOptions{
		Base:       r.Base,
		Discipline: r.Discipline,
		MaxLength:  r.frontierDepth(),
		Oracle:     newOracle(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("root pass: %w", err)
	}
	if err := writeRootPass(r.Store, rootRes, r); err != nil {
		return nil, err
	}

	frontier := frontierValues(rootRes.Root, r.SplitLength)
	if err := r.Store.WriteManifest(frontier); err != nil {
		return nil, err
	}
	logger.Info("root pass complete",
		"frontier_jobs", len(frontier), "split_length", r.SplitLength)

	g, ctx := errgroup.WithContext(ctx)
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	// A duplicated frontier value keeps both manifest entries but runs as
	// one job: the subtree is identical either way, and two writers on the
	// same partition files could tear the metadata sidecar.
	launched := make(map[string]bool, len(frontier))
	for _, root := range frontier {
		if launched[root] {
			continue
		}
		launched[root] = true
		root := root
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.runJob(root, newOracle(), logger)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frontier, nil
}

// runJob generates one frontier subtree and stores its partition.
func (r *Runner) runJob(root string, orc oracle.Oracle, logger *slog.Logger) error {
	rootVal, ok := new(big.Int).SetString(root, 10)
	if !ok {
		return fmt.Errorf("bad frontier value %q", root)
	}
	res, err := tree.Generate(tree.GenerateOptions{
		Base:       r.Base,
		Discipline: r.Discipline,
		Root:       rootVal,
		MaxLength:  r.MaxLength,
		Oracle:     orc,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", root, err)
	}
	if err := r.Store.WriteTree(root, res.Stream, Metadata{
		PrimeType: r.Discipline.String(),
		Base:      r.Base,
		MaxLength: uint32(r.MaxLength),
	}); err != nil {
		return err
	}
	table := stats.Collect(res.Root, r.Discipline, r.Base, rootVal, uint32(r.MaxLength))
	if err := r.Store.WriteStats(root, table); err != nil {
		return err
	}
	logger.Debug("job complete", "root", root,
		"nodes", res.Root.CountNodes(), "oracle_queries", res.OracleQueries)
	return nil
}

func writeRootPass(s *Store, res *tree.Result, r *Runner) error {
	if err := s.writeFile(RootTreeFile, res.Stream); err != nil {
		return err
	}
	table := stats.Collect(res.Root, r.Discipline, r.Base, new(big.Int), uint32(r.frontierDepth()))
	return s.WriteStats("", table)
}

// frontierValues collects the root pass leaves past the split length: the
// nodes whose subtrees were deferred to jobs. Leaves at or below the split
// length are genuine dead ends, not frontier. Duplicate values stay duplicated; a
// value reached from two directions owns two manifest entries.
func frontierValues(root *core.Node, splitLength int) []string {
	var out []string
	var walk func(n *core.Node)
	walk = func(n *core.Node) {
		if n.IsLeaf() {
			if n.Length > splitLength {
				out = append(out, n.Value.String())
			}
			return
		}
		for _, c := range n.Children {
			walk(c.Node)
		}
	}
	walk(root)
	return out
}
