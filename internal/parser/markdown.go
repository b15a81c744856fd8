// Package parser adapts goldmark to the mdtree node model.
package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/livefir/livemark/internal/mdtree"
)

// Config controls which Markdown dialect is parsed
type Config struct {
	// GFM enables tables, strikethrough, task lists and linkify
	GFM bool
}

// DefaultConfig returns a configuration with GitHub Flavored Markdown enabled
func DefaultConfig() Config {
	return Config{GFM: true}
}

// Option customizes a Markdown parser
type Option func(*Config)

// WithGFM toggles GitHub Flavored Markdown extensions
func WithGFM(enabled bool) Option {
	return func(c *Config) {
		c.GFM = enabled
	}
}

// Markdown parses text into an mdtree.Tree. It is safe for concurrent use.
type Markdown struct {
	md     goldmark.Markdown
	config Config
}

// New creates a Markdown parser
func New(opts ...Option) *Markdown {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var gopts []goldmark.Option
	if cfg.GFM {
		gopts = append(gopts, goldmark.WithExtensions(extension.GFM))
	}

	return &Markdown{
		md:     goldmark.New(gopts...),
		config: cfg,
	}
}

// Config returns the parser configuration
func (m *Markdown) Config() Config {
	return m.config
}

// Parse converts input into a tree of immutable nodes. The context is
// checked before parsing and between top-level blocks; a cancelled context
// yields ctx.Err().
func (m *Markdown) Parse(ctx context.Context, input string) (*mdtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := []byte(input)
	doc := m.md.Parser().Parse(text.NewReader(src))

	c := converter{src: src}
	var blocks []mdtree.Node
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blocks = append(blocks, c.convert(n))
	}

	return mdtree.NewTree(input, blocks), nil
}

// converter walks a goldmark AST over its source buffer
type converter struct {
	src []byte
}

func (c *converter) children(n ast.Node) []mdtree.Node {
	if n.ChildCount() == 0 {
		return nil
	}
	out := make([]mdtree.Node, 0, n.ChildCount())
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, c.convert(child))
	}
	return out
}

func (c *converter) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(c.src))
	}
	return buf.String()
}

func (c *converter) inlineText(n ast.Node) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch v := child.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(c.src))
		case *ast.String:
			buf.Write(v.Value)
		default:
			buf.WriteString(c.inlineText(child))
		}
	}
	return buf.String()
}

func (c *converter) convert(n ast.Node) mdtree.Node {
	switch v := n.(type) {
	case *ast.Heading:
		return mdtree.NewHeading(v.Level, c.children(v)...)
	case *ast.Paragraph:
		return mdtree.NewParagraph(c.children(v)...)
	case *ast.TextBlock:
		// tight list items carry a text block in place of a paragraph
		return mdtree.NewParagraph(c.children(v)...)
	case *ast.ThematicBreak:
		return mdtree.NewThematicBreak()
	case *ast.FencedCodeBlock:
		return mdtree.NewCodeBlock(string(v.Language(c.src)), true, c.lines(v))
	case *ast.CodeBlock:
		return mdtree.NewCodeBlock("", false, c.lines(v))
	case *ast.Blockquote:
		return mdtree.NewBlockquote(c.children(v)...)
	case *ast.List:
		attrs := mdtree.ListAttrs{
			Ordered: v.IsOrdered(),
			Marker:  v.Marker,
			Tight:   v.IsTight,
		}
		if attrs.Ordered {
			attrs.Start = v.Start
		}
		return mdtree.NewList(attrs, c.children(v)...)
	case *ast.ListItem:
		return mdtree.NewListItem(c.children(v)...)
	case *ast.HTMLBlock:
		raw := c.lines(v)
		if v.HasClosure() {
			raw += string(v.ClosureLine.Value(c.src))
		}
		return mdtree.NewHTMLBlock(raw)
	case *ast.Text:
		brk := mdtree.BreakNone
		switch {
		case v.HardLineBreak():
			brk = mdtree.BreakHard
		case v.SoftLineBreak():
			brk = mdtree.BreakSoft
		}
		return mdtree.NewText(string(v.Segment.Value(c.src)), brk)
	case *ast.String:
		return mdtree.NewText(string(v.Value), mdtree.BreakNone)
	case *ast.Emphasis:
		return mdtree.NewEmphasis(v.Level, c.children(v)...)
	case *ast.CodeSpan:
		return mdtree.NewCodeSpan(c.inlineText(v))
	case *ast.Link:
		return mdtree.NewLink(string(v.Destination), string(v.Title), c.children(v)...)
	case *ast.Image:
		return mdtree.NewImage(string(v.Destination), string(v.Title), c.children(v)...)
	case *ast.AutoLink:
		return mdtree.NewAutoLink(string(v.URL(c.src)), v.AutoLinkType == ast.AutoLinkEmail)
	case *ast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			buf.Write(seg.Value(c.src))
		}
		return mdtree.NewRawHTML(buf.String())
	case *east.Table:
		aligns := make([]mdtree.Alignment, len(v.Alignments))
		for i, a := range v.Alignments {
			aligns[i] = alignment(a)
		}
		return mdtree.NewTable(aligns, c.children(v)...)
	case *east.TableHeader:
		return mdtree.NewTableRow(true, c.children(v)...)
	case *east.TableRow:
		return mdtree.NewTableRow(false, c.children(v)...)
	case *east.TableCell:
		return mdtree.NewTableCell(alignment(v.Alignment), c.children(v)...)
	case *east.Strikethrough:
		return mdtree.NewStrikethrough(c.children(v)...)
	case *east.TaskCheckBox:
		return mdtree.NewTaskCheckBox(v.IsChecked)
	default:
		return mdtree.NewUnknown(n.Kind().String(), c.children(n)...)
	}
}

func alignment(a east.Alignment) mdtree.Alignment {
	switch a {
	case east.AlignLeft:
		return mdtree.AlignLeft
	case east.AlignCenter:
		return mdtree.AlignCenter
	case east.AlignRight:
		return mdtree.AlignRight
	default:
		return mdtree.AlignNone
	}
}

// Must panics on error; handy for tests and fixed documents
func Must(tree *mdtree.Tree, err error) *mdtree.Tree {
	if err != nil {
		panic(fmt.Sprintf("parser: %v", err))
	}
	return tree
}
