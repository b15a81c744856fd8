package mdtree

// Tree is the result of one parse: the source text and its top-level blocks.
//
// Block hashes are computed once in NewTree, so a Tree can be shared with
// any goroutine and diffed repeatedly without rehashing.
type Tree struct {
	source string
	blocks []Node
	hashes []Hash
}

// NewTree builds a Tree over blocks and hashes every block
func NewTree(source string, blocks []Node) *Tree {
	t := &Tree{
		source: source,
		blocks: make([]Node, len(blocks)),
		hashes: make([]Hash, len(blocks)),
	}
	copy(t.blocks, blocks)
	for i, b := range t.blocks {
		t.hashes[i] = HashNode(b)
	}
	return t
}

// NewTreeWithHashes builds a Tree from blocks and hashes the caller already
// holds. The hashes are trusted as given; a length mismatch panics.
func NewTreeWithHashes(source string, blocks []Node, hashes []Hash) *Tree {
	if len(blocks) != len(hashes) {
		panic("mdtree: block and hash counts differ")
	}
	t := &Tree{
		source: source,
		blocks: make([]Node, len(blocks)),
		hashes: make([]Hash, len(hashes)),
	}
	copy(t.blocks, blocks)
	copy(t.hashes, hashes)
	return t
}

// Hashes returns a copy of the block hashes in document order
func (t *Tree) Hashes() []Hash {
	if t == nil {
		return nil
	}
	out := make([]Hash, len(t.hashes))
	copy(out, t.hashes)
	return out
}

// Source returns the text the tree was parsed from
func (t *Tree) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// Len returns the number of top-level blocks; a nil tree has none
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.blocks)
}

// Block returns the i-th top-level block
func (t *Tree) Block(i int) Node {
	return t.blocks[i]
}

// BlockHash returns the cached structural hash of the i-th block
func (t *Tree) BlockHash(i int) Hash {
	return t.hashes[i]
}

// Blocks returns a copy of the top-level blocks
func (t *Tree) Blocks() []Node {
	if t == nil {
		return nil
	}
	out := make([]Node, len(t.blocks))
	copy(out, t.blocks)
	return out
}

// Hash folds the block hashes into one value identifying the whole document
func (t *Tree) Hash() Hash {
	var acc accumulator
	acc.d.Reset()
	acc.tag("document")
	acc.integer(t.Len())
	for i := 0; i < t.Len(); i++ {
		acc.child(t.hashes[i])
	}
	return Hash(acc.d.Sum64())
}
