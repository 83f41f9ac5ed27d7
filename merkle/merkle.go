// Package merkle maintains the fixed-depth commitment tree in two
// equivalent construction modes: a full rebuild from the ordered leaf list
// and an O(depth) frontier that extends the tree by one leaf. Both must
// produce byte-identical roots for every leaf count; that equivalence is
// the primary correctness property of the accumulator.
package merkle

import (
	"errors"
	"fmt"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/hasher"
)

var (
	// ErrIndexOutOfRange is returned for a leaf index >= the leaf count
	ErrIndexOutOfRange = errors.New("leaf index out of range")
	// ErrTreeOverflow is returned when more than 2^depth leaves are given
	ErrTreeOverflow = errors.New("tree overflow: too many leaves")
)

// Tree is an arena of per-level node slices built from a complete leaf
// list. Level 0 holds the leaves; absent right siblings resolve to the
// precomputed empty-subtree hash of their level. Used for verification,
// audits and path extraction.
type Tree struct {
	levels     [][]hasher.Digest
	zeroHashes []hasher.Digest
	depth      int
	engine     hasher.Engine
}

// Build constructs the full tree for the given leaves, in insertion order
func Build(leaves []hasher.Digest, cfg config.TreeConfig) (*Tree, error) {
	if len(leaves) > 1<<cfg.Depth {
		return nil, fmt.Errorf("%w: %d leaves exceed capacity %d", ErrTreeOverflow, len(leaves), 1<<cfg.Depth)
	}
	t := &Tree{
		levels:     make([][]hasher.Digest, cfg.Depth+1),
		zeroHashes: cfg.ZeroHashes,
		depth:      cfg.Depth,
		engine:     cfg.Engine,
	}
	t.levels[0] = append([]hasher.Digest(nil), leaves...)

	current := t.levels[0]
	for level := 0; level < t.depth; level++ {
		next := make([]hasher.Digest, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := t.zeroHashes[level]
			if i+1 < len(current) {
				right = current[i+1]
			}
			h, err := t.engine.HashPair(left, right)
			if err != nil {
				return nil, fmt.Errorf("failed to hash level %d: %w", level, err)
			}
			next[i/2] = h
		}
		t.levels[level+1] = next
		current = next
	}
	return t, nil
}

// Root returns the tree root; for an empty tree this is the empty-subtree
// hash at the top level
func (t *Tree) Root() hasher.Digest {
	if len(t.levels[t.depth]) == 0 {
		return t.zeroHashes[t.depth]
	}
	return t.levels[t.depth][0]
}

// LeafCount returns the number of inserted leaves
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Path is an authentication path: one sibling per level plus a flag
// telling whether the authenticated node was the right child at that level
type Path struct {
	Siblings []hasher.Digest
	IsRight  []bool
}

// Path extracts the authentication path for the leaf at index. Missing
// siblings resolve to the zero-subtree hash of their level, never to an
// error.
func (t *Tree) Path(index int) (*Path, error) {
	if index < 0 || index >= t.LeafCount() {
		return nil, fmt.Errorf("%w: index %d with %d leaves", ErrIndexOutOfRange, index, t.LeafCount())
	}
	p := &Path{
		Siblings: make([]hasher.Digest, t.depth),
		IsRight:  make([]bool, t.depth),
	}
	idx := index
	for level := 0; level < t.depth; level++ {
		sibIdx := idx ^ 1
		sib := t.zeroHashes[level]
		if sibIdx < len(t.levels[level]) {
			sib = t.levels[level][sibIdx]
		}
		p.Siblings[level] = sib
		p.IsRight[level] = idx&1 == 1
		idx >>= 1
	}
	return p, nil
}

// VerifyPath recomputes the root from a leaf and its path and compares it
// to the claimed root
func VerifyPath(leaf hasher.Digest, path *Path, root hasher.Digest, engine hasher.Engine) (bool, error) {
	if len(path.Siblings) != len(path.IsRight) {
		return false, fmt.Errorf("malformed path: %d siblings, %d flags", len(path.Siblings), len(path.IsRight))
	}
	current := leaf
	for i, sib := range path.Siblings {
		var err error
		if path.IsRight[i] {
			current, err = engine.HashPair(sib, current)
		} else {
			current, err = engine.HashPair(current, sib)
		}
		if err != nil {
			return false, fmt.Errorf("failed to hash path level %d: %w", i, err)
		}
	}
	return current == root, nil
}

// Frontier holds, per level, the most recently completed left-sibling
// subtree root, enough to append one leaf in O(depth). It is mutated in
// place; a long-lived holder must serialize appends.
type Frontier struct {
	slots      []hasher.Digest
	zeroHashes []hasher.Digest
	depth      int
	engine     hasher.Engine
	count      int
	root       hasher.Digest
}

// NewFrontier returns an empty frontier for the configured tree
func NewFrontier(cfg config.TreeConfig) *Frontier {
	return &Frontier{
		slots:      make([]hasher.Digest, cfg.Depth),
		zeroHashes: cfg.ZeroHashes,
		depth:      cfg.Depth,
		engine:     cfg.Engine,
		root:       cfg.ZeroHashes[cfg.Depth],
	}
}

// Append inserts the next leaf and returns the new root. At each level,
// an even index stores the running node as the future left sibling and
// pairs it with the empty subtree on its right; an odd index completes a
// pair with the stored left sibling.
func (f *Frontier) Append(leaf hasher.Digest) (hasher.Digest, error) {
	if f.count >= 1<<f.depth {
		return hasher.Digest{}, fmt.Errorf("%w: capacity %d reached", ErrTreeOverflow, 1<<f.depth)
	}
	current := leaf
	idx := f.count
	for level := 0; level < f.depth; level++ {
		var left, right hasher.Digest
		if idx&1 == 0 {
			f.slots[level] = current
			left, right = current, f.zeroHashes[level]
		} else {
			left, right = f.slots[level], current
		}
		h, err := f.engine.HashPair(left, right)
		if err != nil {
			return hasher.Digest{}, fmt.Errorf("failed to hash level %d: %w", level, err)
		}
		current = h
		idx >>= 1
	}
	f.count++
	f.root = current
	return current, nil
}

// Root returns the root after the last append
func (f *Frontier) Root() hasher.Digest {
	return f.root
}

// Count returns the number of appended leaves
func (f *Frontier) Count() int {
	return f.count
}
