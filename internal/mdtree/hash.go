package mdtree

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hash is the structural identity of a node: a function of its kind, its
// attributes and the hashes of its children, never of its position.
type Hash uint64

// String renders the hash as fixed width hex, suitable as a map or DOM key
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// HashNode computes the structural hash of n bottom-up. The result is
// deterministic across processes. Callers hashing the same node repeatedly
// should keep the value; Tree does this for its top-level blocks.
func HashNode(n Node) Hash {
	var acc accumulator
	acc.d.Reset()

	if n == nil {
		acc.tag(KindUnknown.String())
		acc.integer(0)
		return Hash(acc.d.Sum64())
	}

	acc.tag(n.Kind().String())

	switch v := n.(type) {
	case *Heading:
		acc.integer(v.Level)
	case *Paragraph, *ThematicBreak, *Blockquote, *ListItem, *Strikethrough:
	case *CodeBlock:
		acc.str(v.Language)
		acc.flag(v.Fenced)
		acc.str(v.Code)
	case *List:
		acc.flag(v.Ordered)
		acc.integer(v.Start)
		acc.integer(int(v.Marker))
		acc.flag(v.Tight)
	case *Table:
		acc.integer(len(v.Alignments))
		for _, a := range v.Alignments {
			acc.integer(int(a))
		}
	case *TableRow:
		acc.flag(v.Header)
	case *TableCell:
		acc.integer(int(v.Alignment))
	case *HTMLBlock:
		acc.str(v.Raw)
	case *Text:
		acc.str(v.Value)
		acc.integer(int(v.Break))
	case *Emphasis:
		acc.integer(v.Level)
	case *CodeSpan:
		acc.str(v.Code)
	case *Link:
		acc.str(v.Destination)
		acc.str(v.Title)
	case *Image:
		acc.str(v.Source)
		acc.str(v.Title)
	case *AutoLink:
		acc.str(v.URL)
		acc.flag(v.Email)
	case *RawHTML:
		acc.str(v.Raw)
	case *TaskCheckBox:
		acc.flag(v.Checked)
	case *Unknown:
		acc.str(v.Name)
	}

	children := n.Children()
	acc.integer(len(children))
	for _, child := range children {
		acc.child(HashNode(child))
	}
	return Hash(acc.d.Sum64())
}

// accumulator folds fields into the digest with a length prefixed encoding so
// that adjacent fields can never run into each other.
type accumulator struct {
	d   xxhash.Digest
	buf [8]byte
}

func (a *accumulator) tag(name string) {
	a.str(name)
}

func (a *accumulator) u64(v uint64) {
	binary.LittleEndian.PutUint64(a.buf[:], v)
	_, _ = a.d.Write(a.buf[:])
}

func (a *accumulator) integer(v int) {
	a.u64(uint64(int64(v)))
}

func (a *accumulator) flag(v bool) {
	if v {
		a.u64(1)
		return
	}
	a.u64(0)
}

func (a *accumulator) str(s string) {
	a.u64(uint64(len(s)))
	_, _ = a.d.WriteString(s)
}

func (a *accumulator) child(h Hash) {
	a.u64(uint64(h))
}
