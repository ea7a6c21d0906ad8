// Package tree implements the truncatable prime tree generator and the
// binary tree codec. The generator grows a tree from a root value by
// appending digits per the truncation discipline, pruning with the probable
// prime oracle, and emits the canonical byte encoding alongside the
// in-memory tree and its structural hash. The decoders in decoder.go read
// the same encoding back.
//
// Encoding grammar, parameterized by the discipline's tag size:
//
//	stream  -> placeholder subtrees terminator
//	subtree -> tag subtrees terminator
//	tag     -> 1 or 2 bytes naming the digit append taken
//
// The placeholder is tag-size bytes of 0xFF standing in for the root value;
// the terminator is a single 0xFF. Base, discipline and root value are not
// stored in the stream and travel out-of-band.
package tree

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cespare/xxhash/v2"

	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/oracle"
)

// GenerateOptions configures one generator run.
type GenerateOptions struct {
	Base       int
	Discipline core.Discipline
	// Root is the value to grow from; nil or zero grows the full tree.
	// The root is not checked to actually be a truncatable prime; jobs
	// pass frontier values whose primality the root pass already proved.
	Root *big.Int
	// MaxLength bounds the digit count of generated values. It is the sole
	// mechanism keeping recursion finite.
	MaxLength int
	Oracle    oracle.Oracle
	Logger    *slog.Logger
}

// Result is the output of one generator run.
type Result struct {
	// Root is the in-memory tree, hashes filled in.
	Root *core.Node
	// Stream is the canonical byte encoding of the tree.
	Stream []byte
	// Hash is the structural hash of Root, equal to Root.Hash.
	Hash uint64
	// Digest is the xxhash of Stream, a cheap byte-level fingerprint for
	// comparing two streams without a byte-by-byte diff.
	Digest uint64
	// OracleQueries counts primality tests performed.
	OracleQueries uint64
}

type generator struct {
	base    int
	bigBase *big.Int
	disc    core.Discipline
	maxLen  int
	oracle  *oracle.Counting
	pows    *core.PowerCache
	buf     bytes.Buffer
}

// Generate grows a truncatable prime tree. Output order is fully
// deterministic: children appear in the digit enumeration order of the
// discipline, so two runs with identical inputs and an identical oracle
// produce byte-identical streams and equal hashes.
func Generate(opts GenerateOptions) (*Result, error) {
	if err := core.ValidateBase(opts.Base); err != nil {
		return nil, err
	}
	if opts.Discipline > core.LeftAndRight {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidDiscipline, opts.Discipline)
	}
	if opts.Oracle == nil {
		opts.Oracle = oracle.BPSW{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	root := opts.Root
	if root == nil {
		root = new(big.Int)
	}

	g := &generator{
		base:    opts.Base,
		bigBase: big.NewInt(int64(opts.Base)),
		disc:    opts.Discipline,
		maxLen:  opts.MaxLength,
		oracle:  &oracle.Counting{Inner: opts.Oracle},
		pows:    core.NewPowerCache(opts.Base),
	}

	rootLen := core.CountDigits(root, opts.Base)
	placeholder := bytes.Repeat([]byte{core.Terminator}, opts.Discipline.TagSize())
	node := g.grow(rootLen, root, placeholder)

	stream := g.buf.Bytes()
	res := &Result{
		Root:          node,
		Stream:        stream,
		Hash:          node.Hash,
		Digest:        xxhash.Sum64(stream),
		OracleQueries: g.oracle.Queries,
	}
	opts.Logger.Debug("generated prime tree",
		"prime_type", opts.Discipline.String(),
		"base", opts.Base,
		"root", root.String(),
		"max_length", opts.MaxLength,
		"nodes", node.CountNodes(),
		"stream_bytes", len(stream),
		"oracle_queries", g.oracle.Queries,
		"hash", node.Hash)
	return res, nil
}

// grow emits prefix, then each surviving child subtree in enumeration
// order, then the terminator, and returns the node with its hash. The byte
// stream accumulates in g.buf; concatenation order equals recursion order.
func (g *generator) grow(length int, value *big.Int, prefix []byte) *core.Node {
	node := &core.Node{Length: length, Value: value}
	g.buf.Write(prefix)
	h := core.HashInit(value)

	switch g.disc {
	case core.Right:
		if length+1 <= g.maxLen {
			for d := 1; d < g.base; d++ {
				cand := new(big.Int).Mul(value, g.bigBase)
				cand.Add(cand, big.NewInt(int64(d)))
				h = g.tryChild(node, h, length+1, cand, core.ChildKey(d), []byte{byte(d)})
			}
		}
	case core.Left:
		if length+1 <= g.maxLen {
			for d := 1; d < g.base; d++ {
				cand := new(big.Int).Mul(big.NewInt(int64(d)), g.pows.Pow(length))
				cand.Add(cand, value)
				h = g.tryChild(node, h, length+1, cand, core.ChildKey(d), []byte{byte(d)})
			}
		}
	case core.LeftOrRight:
		if length+1 <= g.maxLen {
			for d := 1; d < g.base; d++ {
				cand := new(big.Int).Mul(big.NewInt(int64(d)), g.pows.Pow(length))
				cand.Add(cand, value)
				h = g.tryChild(node, h, length+1, cand, core.ChildKey(d), []byte{0, byte(d)})
			}
			// Right appends are suppressed at the zero root so single-digit
			// primes are not derived a second time.
			if value.Sign() != 0 {
				for d := 1; d < g.base; d++ {
					cand := new(big.Int).Mul(value, g.bigBase)
					cand.Add(cand, big.NewInt(int64(d)))
					h = g.tryChild(node, h, length+1, cand, core.ChildKey(g.base+d), []byte{1, byte(d)})
				}
			}
		}
	case core.LeftAndRight:
		// The zero left digit is allowed only at the zero root, where it
		// stands for candidates that are purely right-extended (the single
		// digit primes). A zero right digit is likewise a root-only case;
		// it admits the value base itself ("10") in prime bases.
		dlStart := 1
		if value.Sign() == 0 {
			dlStart = 0
		}
		for dl := dlStart; dl < g.base; dl++ {
			drStart := 0
			if value.Sign() != 0 || dl == 0 {
				drStart = 1
			}
			for dr := drStart; dr < g.base; dr++ {
				childLen := length + 2
				if value.Sign() == 0 && dl == 0 {
					childLen = length + 1
				}
				if childLen > g.maxLen {
					continue
				}
				cand := new(big.Int).Mul(big.NewInt(int64(dl)), g.pows.Pow(length+1))
				cand.Add(cand, new(big.Int).Mul(g.bigBase, value))
				cand.Add(cand, big.NewInt(int64(dr)))
				h = g.tryChild(node, h, childLen, cand, core.ChildKey(dl*g.base+dr), []byte{byte(dl), byte(dr)})
			}
		}
	}

	g.buf.WriteByte(core.Terminator)
	node.Hash = h
	return node
}

// tryChild queries the oracle for cand and, if it passes, recurses and
// folds the child into the running hash.
func (g *generator) tryChild(parent *core.Node, h uint64, childLen int, cand *big.Int, key core.ChildKey, tag []byte) uint64 {
	if !g.oracle.IsProbablePrime(cand) {
		return h
	}
	child := g.grow(childLen, cand, tag)
	parent.Children = append(parent.Children, core.Child{Key: key, Node: child})
	return core.HashUpdate(h, key, child.Hash)
}
