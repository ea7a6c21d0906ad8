package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/INLOpen/primetree/core"
)

// The decoders below share one reading primitive: read a single byte, and
// either it is the 0xFF terminator ("no more children at this level") or it
// is the first byte of a full tag whose remaining bytes must follow.
// Decoding is forward-only and read-once; a stream that ends mid-record
// fails with core.ErrTruncatedStream, which is distinct from a clean
// end-of-children.

// decoder holds the shared stream state and value-update rules.
type decoder struct {
	r       *bufio.Reader
	base    int
	bigBase *big.Int
	disc    core.Discipline
	// TODO: left-append reconstruction uses radix 10 regardless of the
	// configured base, so decoded values are only correct for base 10
	// trees of the l/lor/lar disciplines. Existing tree files were all
	// produced and decoded this way; changing it invalidates none of the
	// byte streams but shifts every decoded left-append value.
	pow10 *core.PowerCache
}

// frame is one level of the explicit traversal stack. An explicit stack is
// used instead of recursion because deep trees (left-truncatable trees in
// large bases especially) can exceed any fixed recursion budget.
type frame struct {
	length   int
	value    *big.Int
	children int
}

func newDecoder(r io.Reader, disc core.Discipline, base int) (*decoder, error) {
	if err := core.ValidateBase(base); err != nil {
		return nil, err
	}
	if disc > core.LeftAndRight {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidDiscipline, disc)
	}
	return &decoder{
		r:       bufio.NewReader(r),
		base:    base,
		bigBase: big.NewInt(int64(base)),
		disc:    disc,
		pow10:   core.NewPowerCache(10),
	}, nil
}

// skipPlaceholder consumes and validates the stream-leading root
// placeholder bytes.
func (d *decoder) skipPlaceholder() error {
	for i := 0; i < d.disc.TagSize(); i++ {
		b, err := d.r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: missing root placeholder", core.ErrTruncatedStream)
		}
		if b != core.Terminator {
			return fmt.Errorf("%w: root placeholder byte %#02x, want 0xff", core.ErrInvalidTag, b)
		}
	}
	return nil
}

// readTag returns (nil, true, nil) on a terminator, or the full tag bytes.
func (d *decoder) readTag() ([]byte, bool, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return nil, false, fmt.Errorf("%w: expected tag or terminator", core.ErrTruncatedStream)
	}
	if b == core.Terminator {
		return nil, true, nil
	}
	tag := make([]byte, d.disc.TagSize())
	tag[0] = b
	for i := 1; i < len(tag); i++ {
		tag[i], err = d.r.ReadByte()
		if err != nil {
			return nil, false, fmt.Errorf("%w: tag cut short", core.ErrTruncatedStream)
		}
	}
	return tag, false, nil
}

// expectEOF fails with ErrTrailingData if any byte follows the tree.
func (d *decoder) expectEOF() error {
	if _, err := d.r.ReadByte(); err == nil {
		return core.ErrTrailingData
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (d *decoder) digitInRange(b byte) bool {
	return b > 0 && int(b) < d.base
}

// child applies the discipline's value-update rule to derive a child's
// (length, value, key) from its parent and the tag taken.
func (d *decoder) child(parent frame, tag []byte) (frame, core.ChildKey, error) {
	switch d.disc {
	case core.Right:
		if !d.digitInRange(tag[0]) {
			return frame{}, 0, fmt.Errorf("%w: right digit %d in base %d", core.ErrInvalidTag, tag[0], d.base)
		}
		return d.rightChild(parent, tag[0]), core.ChildKey(tag[0]), nil
	case core.Left:
		if !d.digitInRange(tag[0]) {
			return frame{}, 0, fmt.Errorf("%w: left digit %d in base %d", core.ErrInvalidTag, tag[0], d.base)
		}
		return d.leftChild(parent, tag[0]), core.ChildKey(tag[0]), nil
	case core.LeftOrRight:
		if !d.digitInRange(tag[1]) {
			return frame{}, 0, fmt.Errorf("%w: digit %d in base %d", core.ErrInvalidTag, tag[1], d.base)
		}
		switch tag[0] {
		case 0:
			return d.leftChild(parent, tag[1]), core.ChildKey(tag[1]), nil
		case 1:
			return d.rightChild(parent, tag[1]), core.ChildKey(d.base + int(tag[1])), nil
		}
		return frame{}, 0, fmt.Errorf("%w: side byte %d", core.ErrInvalidTag, tag[0])
	case core.LeftAndRight:
		return d.bothChild(parent, tag)
	}
	return frame{}, 0, core.ErrInvalidDiscipline
}

func (d *decoder) rightChild(parent frame, digit byte) frame {
	v := new(big.Int).Mul(parent.value, d.bigBase)
	v.Add(v, big.NewInt(int64(digit)))
	return frame{length: parent.length + 1, value: v}
}

func (d *decoder) leftChild(parent frame, digit byte) frame {
	v := new(big.Int).Mul(big.NewInt(int64(digit)), d.pow10.Pow(parent.length))
	v.Add(v, parent.value)
	return frame{length: parent.length + 1, value: v}
}

func (d *decoder) bothChild(parent frame, tag []byte) (frame, core.ChildKey, error) {
	dl, dr := tag[0], tag[1]
	key := core.ChildKey(int(dl)*d.base + int(dr))
	if parent.length == 0 {
		// The full-tree root admits zero digits: dl=0 carries the single
		// digit primes, dr=0 the value of the base itself. Both zero would
		// be the empty append and is invalid.
		if dl == 0 && dr == 0 {
			return frame{}, 0, fmt.Errorf("%w: both digits zero at root", core.ErrInvalidTag)
		}
		if int(dl) >= d.base || int(dr) >= d.base {
			return frame{}, 0, fmt.Errorf("%w: digits (%d,%d) in base %d", core.ErrInvalidTag, dl, dr, d.base)
		}
		length := 1
		if dl != 0 {
			length = 2
		}
		v := big.NewInt(int64(d.base)*int64(dl) + int64(dr))
		return frame{length: length, value: v}, key, nil
	}
	if !d.digitInRange(dl) || !d.digitInRange(dr) {
		return frame{}, 0, fmt.Errorf("%w: digits (%d,%d) in base %d", core.ErrInvalidTag, dl, dr, d.base)
	}
	v := new(big.Int).Mul(parent.value, d.bigBase)
	v.Add(v, big.NewInt(int64(dr)))
	v.Add(v, new(big.Int).Mul(big.NewInt(int64(dl)), d.pow10.Pow(parent.length+1)))
	return frame{length: parent.length + 2, value: v}, key, nil
}

// PreOrder iterates a tree stream depth-first, parent before children, in
// the order children were written. It is lazy and single-pass.
type PreOrder struct {
	d       *decoder
	stack   []frame
	cur     frame
	started bool
	done    bool
	err     error
}

// NewPreOrder positions a pre-order iterator on the stream. root is the
// value the stream was generated from (zero for a full tree); it becomes
// the first element.
func NewPreOrder(r io.Reader, disc core.Discipline, base int, root *big.Int) (*PreOrder, error) {
	d, err := newDecoder(r, disc, base)
	if err != nil {
		return nil, err
	}
	if err := d.skipPlaceholder(); err != nil {
		return nil, err
	}
	if root == nil {
		root = new(big.Int)
	}
	return &PreOrder{
		d:     d,
		stack: []frame{{length: core.CountDigits(root, base), value: root}},
	}, nil
}

// Next advances to the next node. It returns false at the end of the
// stream or on error; check Error afterwards.
func (it *PreOrder) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if !it.started {
		it.started = true
		it.cur = it.stack[0]
		return true
	}
	for {
		tag, end, err := it.d.readTag()
		if err != nil {
			it.err = err
			return false
		}
		if end {
			it.stack = it.stack[:len(it.stack)-1]
			if len(it.stack) == 0 {
				it.err = it.d.expectEOF()
				it.done = true
				return false
			}
			continue
		}
		child, _, err := it.d.child(it.stack[len(it.stack)-1], tag)
		if err != nil {
			it.err = err
			return false
		}
		it.stack = append(it.stack, child)
		it.cur = child
		return true
	}
}

// At returns the current node's digit length and value. The value is owned
// by the iterator's current node and must not be mutated.
func (it *PreOrder) At() (int, *big.Int) { return it.cur.length, it.cur.value }

// Error returns the first error encountered, nil after a clean end.
func (it *PreOrder) Error() error { return it.err }

// PostOrder iterates a tree stream emitting each node only after all of
// its children, together with its child count.
type PostOrder struct {
	d     *decoder
	stack []frame
	cur   frame
	done  bool
	err   error
}

// NewPostOrder positions a post-order iterator on the stream.
func NewPostOrder(r io.Reader, disc core.Discipline, base int, root *big.Int) (*PostOrder, error) {
	d, err := newDecoder(r, disc, base)
	if err != nil {
		return nil, err
	}
	if err := d.skipPlaceholder(); err != nil {
		return nil, err
	}
	if root == nil {
		root = new(big.Int)
	}
	return &PostOrder{
		d:     d,
		stack: []frame{{length: core.CountDigits(root, base), value: root}},
	}, nil
}

// Next advances to the next node in post order.
func (it *PostOrder) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	for {
		tag, end, err := it.d.readTag()
		if err != nil {
			it.err = err
			return false
		}
		if end {
			it.cur = it.stack[len(it.stack)-1]
			it.stack = it.stack[:len(it.stack)-1]
			if len(it.stack) == 0 {
				it.err = it.d.expectEOF()
				it.done = true
			}
			return true
		}
		parent := &it.stack[len(it.stack)-1]
		parent.children++
		child, _, err := it.d.child(*parent, tag)
		if err != nil {
			it.err = err
			return false
		}
		it.stack = append(it.stack, child)
	}
}

// At returns the current node's digit length, value and child count.
func (it *PostOrder) At() (int, *big.Int, int) {
	return it.cur.length, it.cur.value, it.cur.children
}

// Error returns the first error encountered, nil after a clean end.
func (it *PostOrder) Error() error { return it.err }

// Decode materializes the complete tree eagerly. Hashes are not stored;
// only values, lengths and the ordered child lists.
func Decode(r io.Reader, disc core.Discipline, base int, root *big.Int) (*core.Node, error) {
	d, err := newDecoder(r, disc, base)
	if err != nil {
		return nil, err
	}
	if err := d.skipPlaceholder(); err != nil {
		return nil, err
	}
	if root == nil {
		root = new(big.Int)
	}
	rootNode := &core.Node{Length: core.CountDigits(root, base), Value: root}
	nodes := []*core.Node{rootNode}
	frames := []frame{{length: rootNode.Length, value: root}}
	for len(nodes) > 0 {
		tag, end, err := d.readTag()
		if err != nil {
			return nil, err
		}
		if end {
			nodes = nodes[:len(nodes)-1]
			frames = frames[:len(frames)-1]
			continue
		}
		child, key, err := d.child(frames[len(frames)-1], tag)
		if err != nil {
			return nil, err
		}
		childNode := &core.Node{Length: child.length, Value: child.value}
		top := nodes[len(nodes)-1]
		top.Children = append(top.Children, core.Child{Key: key, Node: childNode})
		nodes = append(nodes, childNode)
		frames = append(frames, child)
	}
	if err := d.expectEOF(); err != nil {
		return nil, err
	}
	return rootNode, nil
}
