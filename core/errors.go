package core

import "errors"

// Sentinel errors shared across the tree, merge and stats packages. Callers
// match them with errors.Is after unwrapping.
var (
	// ErrInvalidDiscipline reports an unknown prime-type name or tag.
	ErrInvalidDiscipline = errors.New("invalid truncation discipline")
	// ErrInvalidBase reports a base outside [MinBase, MaxBase].
	ErrInvalidBase = errors.New("base out of range")
	// ErrTruncatedStream reports a tree stream that ended mid-record. This
	// is distinct from a clean end-of-children terminator.
	ErrTruncatedStream = errors.New("tree stream truncated")
	// ErrInvalidTag reports a child tag whose digits are out of range for
	// the configured base and discipline.
	ErrInvalidTag = errors.New("invalid child tag")
	// ErrTrailingData reports bytes left over after a complete tree.
	ErrTrailingData = errors.New("trailing data after tree")
	// ErrHashMismatch reports that a recomputed structural hash disagrees
	// with a job's reported hash. Always fatal.
	ErrHashMismatch = errors.New("structural hash mismatch")
	// ErrMissingJobStats reports a manifest entry with no stats file.
	// Partial aggregation is not a supported mode.
	ErrMissingJobStats = errors.New("missing job stats file")
	// ErrMalformedStats reports a stats file that does not parse.
	ErrMalformedStats = errors.New("malformed stats file")
)
