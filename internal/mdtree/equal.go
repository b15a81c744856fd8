package mdtree

import "slices"

// Equal reports whether a and b are structurally identical: same kind, same
// attributes and pairwise equal children. It never consults hashes, so it is
// the authority when two hashes collide.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !sameAttributes(a, b) {
		return false
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// sameAttributes compares kind specific fields; callers guarantee a and b
// share a kind.
func sameAttributes(a, b Node) bool {
	switch x := a.(type) {
	case *Heading:
		return x.Level == b.(*Heading).Level
	case *Paragraph, *ThematicBreak, *Blockquote, *ListItem, *Strikethrough:
		return true
	case *CodeBlock:
		y := b.(*CodeBlock)
		return x.Language == y.Language && x.Fenced == y.Fenced && x.Code == y.Code
	case *List:
		return x.ListAttrs == b.(*List).ListAttrs
	case *Table:
		return slices.Equal(x.Alignments, b.(*Table).Alignments)
	case *TableRow:
		return x.Header == b.(*TableRow).Header
	case *TableCell:
		return x.Alignment == b.(*TableCell).Alignment
	case *HTMLBlock:
		return x.Raw == b.(*HTMLBlock).Raw
	case *Text:
		y := b.(*Text)
		return x.Value == y.Value && x.Break == y.Break
	case *Emphasis:
		return x.Level == b.(*Emphasis).Level
	case *CodeSpan:
		return x.Code == b.(*CodeSpan).Code
	case *Link:
		y := b.(*Link)
		return x.Destination == y.Destination && x.Title == y.Title
	case *Image:
		y := b.(*Image)
		return x.Source == y.Source && x.Title == y.Title
	case *AutoLink:
		y := b.(*AutoLink)
		return x.URL == y.URL && x.Email == y.Email
	case *RawHTML:
		return x.Raw == b.(*RawHTML).Raw
	case *TaskCheckBox:
		return x.Checked == b.(*TaskCheckBox).Checked
	case *Unknown:
		return x.Name == b.(*Unknown).Name
	default:
		return false
	}
}
