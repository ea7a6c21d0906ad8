// Package merge stitches per-job subtree files back into one binary tree
// stream. The root pass computes a shallow tree whose leaves are the
// frontier the search space was split at; each frontier value may own a job
// partition file holding the subtree computed for it elsewhere. The merger
// re-emits the root stream byte for byte and, at every leaf terminator,
// splices in that leaf's job subtree if one exists.
package merge

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/cespare/xxhash/v2"

	"github.com/INLOpen/primetree/core"
)

// PartitionSet resolves frontier values to job subtree streams. Lookups are
// keyed by the frontier node's integer value in decimal text; how values
// map to files (naming convention, compression, directories) is the
// provider's concern, not the merger's.
type PartitionSet interface {
	// Tree returns the job stream for a frontier value, or ok=false if no
	// partition exists for it.
	Tree(root string) (data []byte, ok bool, err error)
	// Roots enumerates every partition present, used to report partitions
	// the root tree shape never referenced.
	Roots() ([]string, error)
}

// MapPartitions is an in-memory PartitionSet.
type MapPartitions map[string][]byte

var _ PartitionSet = MapPartitions(nil)

func (m MapPartitions) Tree(root string) ([]byte, bool, error) {
	data, ok := m[root]
	return data, ok, nil
}

func (m MapPartitions) Roots() ([]string, error) {
	roots := make([]string, 0, len(m))
	for r := range m {
		roots = append(roots, r)
	}
	return roots, nil
}

// Options configures a merge pass.
type Options struct {
	Base       int
	Discipline core.Discipline
	// Root is the value the root stream was generated from, zero for a
	// full tree.
	Root       *big.Int
	Partitions PartitionSet
	Logger     *slog.Logger
}

// Result is the output of a merge pass.
type Result struct {
	// Data is the combined stream.
	Data []byte
	// Digest is the xxhash of Data.
	Digest uint64
	// Unused lists partitions that exist but were never referenced by the
	// root tree shape: stale or extra data, not lost data. Never fatal,
	// never silently dropped.
	Unused []string
}

// merger tracks the walk. The value at each level is maintained with the
// same update rule the generator uses (configured base throughout), since
// the spliced job files are looked up by exact value.
type merger struct {
	r       *byteReader
	out     bytes.Buffer
	base    int
	bigBase *big.Int
	disc    core.Discipline
	pows    *core.PowerCache
	parts   PartitionSet
	used    map[string]bool
}

// byteReader is a minimal forward-only reader over a slice; the merger
// operates on whole buffers, not streams.
type byteReader struct {
	data []byte
	pos  int
}

func (b *byteReader) readByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, fmt.Errorf("%w: at offset %d", core.ErrTruncatedStream, b.pos)
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

func (b *byteReader) eof() bool { return b.pos == len(b.data) }

type level struct {
	length   int
	value    *big.Int
	children int
}

// Merge combines a root stream with a set of job partitions. Missing
// partitions are indistinguishable from legitimately pruned frontier nodes
// at merge time, so a bare terminator is emitted for them rather than
// failing.
func Merge(rootStream []byte, opts Options) (*Result, error) {
	if err := core.ValidateBase(opts.Base); err != nil {
		return nil, err
	}
	if opts.Discipline > core.LeftAndRight {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidDiscipline, opts.Discipline)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Partitions == nil {
		opts.Partitions = MapPartitions(nil)
	}
	root := opts.Root
	if root == nil {
		root = new(big.Int)
	}

	m := &merger{
		r:       &byteReader{data: rootStream},
		base:    opts.Base,
		bigBase: big.NewInt(int64(opts.Base)),
		disc:    opts.Discipline,
		pows:    core.NewPowerCache(opts.Base),
		parts:   opts.Partitions,
		used:    make(map[string]bool),
	}

	// The stream-leading placeholder markers pass through unchanged.
	vsize := opts.Discipline.TagSize()
	for i := 0; i < vsize; i++ {
		b, err := m.r.readByte()
		if err != nil {
			return nil, err
		}
		if b != core.Terminator {
			return nil, fmt.Errorf("%w: root placeholder byte %#02x, want 0xff", core.ErrInvalidTag, b)
		}
		m.out.WriteByte(b)
	}

	stack := []level{{length: core.CountDigits(root, opts.Base), value: root}}
	for len(stack) > 0 {
		tag, end, err := m.readTag()
		if err != nil {
			return nil, err
		}
		top := &stack[len(stack)-1]
		if end {
			if top.children == 0 {
				if err := m.spliceLeaf(top.value); err != nil {
					return nil, err
				}
			} else {
				m.out.WriteByte(core.Terminator)
			}
			stack = stack[:len(stack)-1]
			continue
		}
		top.children++
		m.out.Write(tag)
		child, err := m.child(*top, tag)
		if err != nil {
			return nil, err
		}
		stack = append(stack, child)
	}
	if !m.r.eof() {
		return nil, core.ErrTrailingData
	}

	var unused []string
	roots, err := m.parts.Roots()
	if err != nil {
		return nil, fmt.Errorf("enumerating partitions: %w", err)
	}
	for _, r := range roots {
		if !m.used[r] {
			unused = append(unused, r)
			opts.Logger.Warn("job partition never referenced by root tree", "root", r)
		}
	}

	data := m.out.Bytes()
	return &Result{Data: data, Digest: xxhash.Sum64(data), Unused: unused}, nil
}

// spliceLeaf substitutes a frontier node's terminator with its job subtree,
// skipping the job file's own leading placeholder so the subtree nests
// where the node's child list would have been. The job stream is already
// terminated, so no extra terminator is written.
func (m *merger) spliceLeaf(value *big.Int) error {
	key := value.String()
	data, ok, err := m.parts.Tree(key)
	if err != nil {
		return fmt.Errorf("partition %s: %w", key, err)
	}
	if !ok {
		// Pruned frontier, or a job not yet computed; emit a dead end.
		m.out.WriteByte(core.Terminator)
		return nil
	}
	vsize := m.disc.TagSize()
	if len(data) < vsize+1 {
		return fmt.Errorf("partition %s: %w", key, core.ErrTruncatedStream)
	}
	for i := 0; i < vsize; i++ {
		if data[i] != core.Terminator {
			return fmt.Errorf("partition %s: %w: placeholder byte %#02x", key, core.ErrInvalidTag, data[i])
		}
	}
	m.out.Write(data[vsize:])
	m.used[key] = true
	return nil
}

func (m *merger) readTag() ([]byte, bool, error) {
	b, err := m.r.readByte()
	if err != nil {
		return nil, false, err
	}
	if b == core.Terminator {
		return nil, true, nil
	}
	tag := make([]byte, m.disc.TagSize())
	tag[0] = b
	for i := 1; i < len(tag); i++ {
		if tag[i], err = m.r.readByte(); err != nil {
			return nil, false, err
		}
	}
	return tag, false, nil
}

func (m *merger) digitInRange(b byte) bool {
	return b > 0 && int(b) < m.base
}

// child applies the generator's value-update rule for the tag taken. Unlike
// the decoders, the merger's left appends use the configured base; it must
// land on the exact frontier values the job files are named by.
func (m *merger) child(parent level, tag []byte) (level, error) {
	switch m.disc {
	case core.Right:
		if !m.digitInRange(tag[0]) {
			return level{}, fmt.Errorf("%w: right digit %d in base %d", core.ErrInvalidTag, tag[0], m.base)
		}
		return m.rightChild(parent, tag[0]), nil
	case core.Left:
		if !m.digitInRange(tag[0]) {
			return level{}, fmt.Errorf("%w: left digit %d in base %d", core.ErrInvalidTag, tag[0], m.base)
		}
		return m.leftChild(parent, tag[0]), nil
	case core.LeftOrRight:
		if !m.digitInRange(tag[1]) {
			return level{}, fmt.Errorf("%w: digit %d in base %d", core.ErrInvalidTag, tag[1], m.base)
		}
		switch tag[0] {
		case 0:
			return m.leftChild(parent, tag[1]), nil
		case 1:
			return m.rightChild(parent, tag[1]), nil
		}
		return level{}, fmt.Errorf("%w: side byte %d", core.ErrInvalidTag, tag[0])
	case core.LeftAndRight:
		dl, dr := tag[0], tag[1]
		if parent.length == 0 && parent.value.Sign() == 0 {
			// Root of the entire tree allows zero digits.
			if int(dl) >= m.base || int(dr) >= m.base || (dl == 0 && dr == 0) {
				return level{}, fmt.Errorf("%w: digits (%d,%d) at root", core.ErrInvalidTag, dl, dr)
			}
		} else if !m.digitInRange(dl) || !m.digitInRange(dr) {
			return level{}, fmt.Errorf("%w: digits (%d,%d) in base %d", core.ErrInvalidTag, dl, dr, m.base)
		}
		childLen := parent.length + 2
		if dl == 0 {
			childLen = parent.length + 1
		}
		v := new(big.Int).Mul(big.NewInt(int64(dl)), m.pows.Pow(parent.length+1))
		v.Add(v, new(big.Int).Mul(m.bigBase, parent.value))
		v.Add(v, big.NewInt(int64(dr)))
		return level{length: childLen, value: v}, nil
	}
	return level{}, core.ErrInvalidDiscipline
}

func (m *merger) rightChild(parent level, digit byte) level {
	v := new(big.Int).Mul(parent.value, m.bigBase)
	v.Add(v, big.NewInt(int64(digit)))
	return level{length: parent.length + 1, value: v}
}

func (m *merger) leftChild(parent level, digit byte) level {
	v := new(big.Int).Mul(big.NewInt(int64(digit)), m.pows.Pow(parent.length))
	v.Add(v, parent.value)
	return level{length: parent.length + 1, value: v}
}
