// Package jobs manages job partitions on disk: the naming convention tying
// a frontier value to its tree and stats files, the manifest enumerating
// jobs, the compressed partition store with its metadata sidecars, and a
// local runner that drives a whole split/generate/collect cycle on one
// machine.
package jobs

import (
	"fmt"
	"regexp"
)

// File names inside a partition directory. Every job-partition file is
// associated with exactly one frontier node's decimal value.
const (
	// RootTreeFile holds the root pass tree, computed to the split depth
	// with empty placeholders at the frontier.
	RootTreeFile = "root.bin"
	// RootStatsFile holds the root pass stats.
	RootStatsFile = "root.csv"
	// MergedTreeFile is the combined stream the merger writes.
	MergedTreeFile = "tree.bin"
	// ManifestFile lists the frontier values with job files, one decimal
	// value per line, duplicates legal.
	ManifestFile = "job_roots_all.txt"
)

// treeFilePattern matches job tree files, with an optional compression
// suffix appended by the store.
var treeFilePattern = regexp.MustCompile(`^root_(\d+)\.bin(?:\.(sz|lz4|zst))?$`)

// TreeFileName returns the bare (uncompressed) tree file name for a
// frontier value.
func TreeFileName(root string) string {
	return fmt.Sprintf("root_%s.bin", root)
}

// StatsFileName returns the stats file name for a frontier value.
func StatsFileName(root string) string {
	return fmt.Sprintf("root_%s.csv", root)
}

// MetaFileName returns the metadata sidecar name for a frontier value.
func MetaFileName(root string) string {
	return fmt.Sprintf("root_%s.meta", root)
}
