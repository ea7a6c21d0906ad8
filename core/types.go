package core

import (
	"errors"
	"fmt"
	"math/big"
)

// Discipline selects how digits may be appended to (equivalently, truncated
// from) a prime. The set is closed; every package in this module dispatches
// on it with a switch.
type Discipline uint8

const (
	// Right appends a single digit on the right (OEIS A024770 for base 10).
	Right Discipline = iota
	// Left appends a single digit on the left (A024785).
	Left
	// LeftOrRight appends a single digit on either side (A137812).
	LeftOrRight
	// LeftAndRight appends a digit on both sides at once (A077390).
	LeftAndRight
)

// Base bounds. Bases are digit values stored in single bytes, with 0xFF
// reserved as the stream terminator.
const (
	MinBase = 2
	MaxBase = 254
)

// Terminator ends a node's child list in the binary tree encoding.
const Terminator = 0xFF

// UnlimitedLength is the max_length value for unbounded runs, in stats
// headers and in configuration.
const UnlimitedLength = uint32(4294967295)

// ParseDiscipline maps the short prime-type names used in file headers and
// on the command line ("r", "l", "lor", "lar") to a Discipline.
func ParseDiscipline(s string) (Discipline, error) {
	switch s {
	case "r":
		return Right, nil
	case "l":
		return Left, nil
	case "lor":
		return LeftOrRight, nil
	case "lar":
		return LeftAndRight, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDiscipline, s)
}

// String returns the short prime-type name.
func (d Discipline) String() string {
	switch d {
	case Right:
		return "r"
	case Left:
		return "l"
	case LeftOrRight:
		return "lor"
	case LeftAndRight:
		return "lar"
	}
	return fmt.Sprintf("Discipline(%d)", uint8(d))
}

// TagSize returns the number of bytes used for one child tag in the binary
// encoding: 1 for single-sided disciplines, 2 for the two-sided ones. The
// leading root placeholder of a stream has the same width.
func (d Discipline) TagSize() int {
	if d == LeftOrRight || d == LeftAndRight {
		return 2
	}
	return 1
}

// MaxChildren returns the number of child-count buckets used by the stats
// table for this discipline and base.
func (d Discipline) MaxChildren(base int) int {
	switch d {
	case LeftOrRight:
		return 2 * base
	case LeftAndRight:
		return base * base
	}
	return base
}

// ValidateBase checks that base is usable as a digit radix.
func ValidateBase(base int) error {
	if base < MinBase || base > MaxBase {
		return fmt.Errorf("%w: %d", ErrInvalidBase, base)
	}
	return nil
}

// ChildKey is the path number for a digit append, as folded into the
// structural hash and used as the ordered child map key:
//   - Right, Left: the digit
//   - LeftOrRight: the digit for a left append, base+digit for a right append
//   - LeftAndRight: leftDigit*base + rightDigit
type ChildKey uint32

// Node is one vertex of a truncatable prime tree. Children are kept as an
// ordered association list in append (stream) order; keys are not sorted.
type Node struct {
	// Length is the digit count of Value in the tree's base. The root of a
	// full tree has Length 0 and Value 0, a sentinel for "no root value".
	Length int
	Value  *big.Int
	// Hash is the structural hash of the subtree rooted here. Decoded trees
	// leave it zero; only the generator fills it in.
	Hash     uint64
	Children []Child
}

// Child is one edge of a Node's ordered child list.
type Child struct {
	Key  ChildKey
	Node *Node
}

// IsLeaf reports whether the node has no children (a frontier node or a
// genuine dead end).
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// CountNodes returns the number of nodes in the subtree, including n.
func (n *Node) CountNodes() int {
	total := 1
	for _, c := range n.Children {
		total += c.Node.CountNodes()
	}
	return total
}

var errNoChild = errors.New("no such child")

// ChildByKey returns the child reached over the given key.
func (n *Node) ChildByKey(key ChildKey) (*Node, error) {
	for _, c := range n.Children {
		if c.Key == key {
			return c.Node, nil
		}
	}
	return nil, fmt.Errorf("%w: key %d under value %s", errNoChild, key, n.Value)
}
