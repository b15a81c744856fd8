// Package mdtree holds the immutable Markdown node model shared by the
// parser, the differ and the renderers, together with the structural hash
// that gives every node a position independent content identity.
package mdtree

// Kind identifies the concrete type of a Node
type Kind uint8

const (
	KindUnknown Kind = iota
	KindHeading
	KindParagraph
	KindThematicBreak
	KindCodeBlock
	KindBlockquote
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindHTMLBlock
	KindText
	KindEmphasis
	KindStrikethrough
	KindCodeSpan
	KindLink
	KindImage
	KindAutoLink
	KindRawHTML
	KindTaskCheckBox
)

var kindNames = [...]string{
	KindUnknown:       "unknown",
	KindHeading:       "heading",
	KindParagraph:     "paragraph",
	KindThematicBreak: "thematic_break",
	KindCodeBlock:     "code_block",
	KindBlockquote:    "blockquote",
	KindList:          "list",
	KindListItem:      "list_item",
	KindTable:         "table",
	KindTableRow:      "table_row",
	KindTableCell:     "table_cell",
	KindHTMLBlock:     "html_block",
	KindText:          "text",
	KindEmphasis:      "emphasis",
	KindStrikethrough: "strikethrough",
	KindCodeSpan:      "code_span",
	KindLink:          "link",
	KindImage:         "image",
	KindAutoLink:      "autolink",
	KindRawHTML:       "raw_html",
	KindTaskCheckBox:  "task_checkbox",
}

// String returns the discriminant name of the kind
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsBlock reports whether nodes of this kind appear at block level
func (k Kind) IsBlock() bool {
	switch k {
	case KindHeading, KindParagraph, KindThematicBreak, KindCodeBlock,
		KindBlockquote, KindList, KindListItem, KindTable, KindTableRow,
		KindTableCell, KindHTMLBlock:
		return true
	}
	return false
}

// Node is one syntactic unit of a parsed document.
//
// The set of implementations is closed: only the types declared in this
// package satisfy it. Nodes are immutable once constructed; the slice
// returned by Children must be treated as read-only.
type Node interface {
	Kind() Kind
	Children() []Node
	sealed()
}

type container struct {
	children []Node
}

func (c *container) Children() []Node { return c.children }
func (c *container) sealed()          {}

type leaf struct{}

func (leaf) Children() []Node { return nil }
func (leaf) sealed()          {}

func nodes(children []Node) container {
	if len(children) == 0 {
		return container{}
	}
	out := make([]Node, len(children))
	copy(out, children)
	return container{children: out}
}

// Heading is an ATX or setext heading
type Heading struct {
	container
	Level int
}

func NewHeading(level int, children ...Node) *Heading {
	return &Heading{container: nodes(children), Level: level}
}

func (*Heading) Kind() Kind { return KindHeading }

// Paragraph is a run of inline content
type Paragraph struct {
	container
}

func NewParagraph(children ...Node) *Paragraph {
	return &Paragraph{container: nodes(children)}
}

func (*Paragraph) Kind() Kind { return KindParagraph }

// ThematicBreak is a horizontal rule
type ThematicBreak struct {
	leaf
}

func NewThematicBreak() *ThematicBreak { return &ThematicBreak{} }

func (*ThematicBreak) Kind() Kind { return KindThematicBreak }

// CodeBlock is a fenced or indented code block
type CodeBlock struct {
	leaf
	Language string
	Fenced   bool
	Code     string
}

func NewCodeBlock(language string, fenced bool, code string) *CodeBlock {
	return &CodeBlock{Language: language, Fenced: fenced, Code: code}
}

func (*CodeBlock) Kind() Kind { return KindCodeBlock }

// Blockquote wraps nested blocks
type Blockquote struct {
	container
}

func NewBlockquote(children ...Node) *Blockquote {
	return &Blockquote{container: nodes(children)}
}

func (*Blockquote) Kind() Kind { return KindBlockquote }

// ListAttrs carries the attributes of a List
type ListAttrs struct {
	Ordered bool
	Start   int
	Marker  byte
	Tight   bool
}

// List is an ordered or bullet list; its children are ListItems
type List struct {
	container
	ListAttrs
}

func NewList(attrs ListAttrs, items ...Node) *List {
	return &List{container: nodes(items), ListAttrs: attrs}
}

func (*List) Kind() Kind { return KindList }

// ListItem holds the blocks of one list entry
type ListItem struct {
	container
}

func NewListItem(children ...Node) *ListItem {
	return &ListItem{container: nodes(children)}
}

func (*ListItem) Kind() Kind { return KindListItem }

// Alignment is a table column alignment
type Alignment uint8

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "none"
	}
}

// Table is a GFM table; its children are TableRows, header first
type Table struct {
	container
	Alignments []Alignment
}

func NewTable(alignments []Alignment, rows ...Node) *Table {
	aligns := make([]Alignment, len(alignments))
	copy(aligns, alignments)
	return &Table{container: nodes(rows), Alignments: aligns}
}

func (*Table) Kind() Kind { return KindTable }

// TableRow is one row of cells
type TableRow struct {
	container
	Header bool
}

func NewTableRow(header bool, cells ...Node) *TableRow {
	return &TableRow{container: nodes(cells), Header: header}
}

func (*TableRow) Kind() Kind { return KindTableRow }

// TableCell holds inline content of a single cell
type TableCell struct {
	container
	Alignment Alignment
}

func NewTableCell(alignment Alignment, children ...Node) *TableCell {
	return &TableCell{container: nodes(children), Alignment: alignment}
}

func (*TableCell) Kind() Kind { return KindTableCell }

// HTMLBlock is raw block-level HTML
type HTMLBlock struct {
	leaf
	Raw string
}

func NewHTMLBlock(raw string) *HTMLBlock { return &HTMLBlock{Raw: raw} }

func (*HTMLBlock) Kind() Kind { return KindHTMLBlock }

// LineBreak describes how a text run ends
type LineBreak uint8

const (
	BreakNone LineBreak = iota
	BreakSoft
	BreakHard
)

// Text is a literal text run
type Text struct {
	leaf
	Value string
	Break LineBreak
}

func NewText(value string, brk LineBreak) *Text {
	return &Text{Value: value, Break: brk}
}

func (*Text) Kind() Kind { return KindText }

// Emphasis is *em* (level 1) or **strong** (level 2)
type Emphasis struct {
	container
	Level int
}

func NewEmphasis(level int, children ...Node) *Emphasis {
	return &Emphasis{container: nodes(children), Level: level}
}

func (*Emphasis) Kind() Kind { return KindEmphasis }

// Strikethrough is ~~struck~~ text
type Strikethrough struct {
	container
}

func NewStrikethrough(children ...Node) *Strikethrough {
	return &Strikethrough{container: nodes(children)}
}

func (*Strikethrough) Kind() Kind { return KindStrikethrough }

// CodeSpan is `inline code`
type CodeSpan struct {
	leaf
	Code string
}

func NewCodeSpan(code string) *CodeSpan { return &CodeSpan{Code: code} }

func (*CodeSpan) Kind() Kind { return KindCodeSpan }

// Link is an inline link; children are the link text
type Link struct {
	container
	Destination string
	Title       string
}

func NewLink(destination, title string, children ...Node) *Link {
	return &Link{container: nodes(children), Destination: destination, Title: title}
}

func (*Link) Kind() Kind { return KindLink }

// Image is an inline image; children are the alt text
type Image struct {
	container
	Source string
	Title  string
}

func NewImage(source, title string, children ...Node) *Image {
	return &Image{container: nodes(children), Source: source, Title: title}
}

func (*Image) Kind() Kind { return KindImage }

// AutoLink is a <url> or bare linkified address
type AutoLink struct {
	leaf
	URL   string
	Email bool
}

func NewAutoLink(url string, email bool) *AutoLink {
	return &AutoLink{URL: url, Email: email}
}

func (*AutoLink) Kind() Kind { return KindAutoLink }

// RawHTML is inline raw HTML
type RawHTML struct {
	leaf
	Raw string
}

func NewRawHTML(raw string) *RawHTML { return &RawHTML{Raw: raw} }

func (*RawHTML) Kind() Kind { return KindRawHTML }

// TaskCheckBox is the [ ] / [x] marker of a task list item
type TaskCheckBox struct {
	leaf
	Checked bool
}

func NewTaskCheckBox(checked bool) *TaskCheckBox {
	return &TaskCheckBox{Checked: checked}
}

func (*TaskCheckBox) Kind() Kind { return KindTaskCheckBox }

// Unknown carries any parser node kind this package does not model.
// Name is the parser's own kind name.
type Unknown struct {
	container
	Name string
}

func NewUnknown(name string, children ...Node) *Unknown {
	return &Unknown{container: nodes(children), Name: name}
}

func (*Unknown) Kind() Kind { return KindUnknown }

// Walk visits n and its descendants depth-first, stopping a branch when fn
// returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, fn)
	}
}

// PlainText concatenates the literal text found under n
func PlainText(n Node) string {
	var buf []byte
	Walk(n, func(node Node) bool {
		switch v := node.(type) {
		case *Text:
			buf = append(buf, v.Value...)
			if v.Break != BreakNone {
				buf = append(buf, ' ')
			}
		case *CodeSpan:
			buf = append(buf, v.Code...)
		case *CodeBlock:
			buf = append(buf, v.Code...)
		case *AutoLink:
			buf = append(buf, v.URL...)
		}
		return true
	})
	return string(buf)
}
