package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"github.com/livefir/livemark/internal/mdtree"
)

// HTML renders blocks to HTML fragments. It is safe for concurrent use.
type HTML struct {
	policy *bluemonday.Policy
}

// NewHTML creates an HTML renderer sanitizing raw HTML with the bluemonday
// user generated content policy.
func NewHTML() *HTML {
	return &HTML{policy: bluemonday.UGCPolicy()}
}

// Render returns the HTML fragment of one block
func (r *HTML) Render(node mdtree.Node, cfg Config) (string, error) {
	if node == nil {
		return "", ErrNilNode
	}

	w := htmlWriter{cfg: cfg, policy: r.policy}
	if err := w.block(node, false); err != nil {
		return "", err
	}

	out := w.String()
	if cfg.Minify {
		out = minifyHTML(out)
	}
	return out, nil
}

type htmlWriter struct {
	strings.Builder
	cfg    Config
	policy *bluemonday.Policy
}

func (w *htmlWriter) raw(s string) string {
	if w.cfg.SanitizeHTML {
		return w.policy.Sanitize(s)
	}
	return s
}

// url escapes a link or image destination. Script and data destinations
// become empty when sanitizing.
func (w *htmlWriter) url(dest string) string {
	if w.cfg.SanitizeHTML && gmhtml.IsDangerousURL([]byte(strings.TrimSpace(dest))) {
		return ""
	}
	return html.EscapeString(dest)
}

func (w *htmlWriter) blocks(children []mdtree.Node, tight bool) error {
	for _, child := range children {
		if err := w.block(child, tight); err != nil {
			return err
		}
	}
	return nil
}

// block writes a block level node; tight drops paragraph tags inside list items
func (w *htmlWriter) block(node mdtree.Node, tight bool) error {
	switch v := node.(type) {
	case *mdtree.Heading:
		if err := checkHeading(v); err != nil {
			return err
		}
		fmt.Fprintf(w, "<h%d>", v.Level)
		w.inlines(v.Children())
		fmt.Fprintf(w, "</h%d>\n", v.Level)
	case *mdtree.Paragraph:
		if tight {
			w.inlines(v.Children())
			return nil
		}
		w.WriteString("<p>")
		w.inlines(v.Children())
		w.WriteString("</p>\n")
	case *mdtree.ThematicBreak:
		w.WriteString("<hr>\n")
	case *mdtree.CodeBlock:
		w.WriteString("<pre><code")
		if v.Language != "" {
			w.WriteString(` class="language-`)
			w.WriteString(html.EscapeString(v.Language))
			w.WriteString(`"`)
		}
		w.WriteString(">")
		w.WriteString(html.EscapeString(v.Code))
		w.WriteString("</code></pre>\n")
	case *mdtree.Blockquote:
		w.WriteString("<blockquote>\n")
		if err := w.blocks(v.Children(), false); err != nil {
			return err
		}
		w.WriteString("</blockquote>\n")
	case *mdtree.List:
		return w.list(v)
	case *mdtree.ListItem:
		w.WriteString("<li>")
		if err := w.blocks(v.Children(), tight); err != nil {
			return err
		}
		w.WriteString("</li>\n")
	case *mdtree.Table:
		return w.table(v)
	case *mdtree.HTMLBlock:
		w.WriteString(w.raw(v.Raw))
	case *mdtree.Unknown:
		return w.blocks(v.Children(), tight)
	default:
		// inline content at block level, e.g. a bare text run
		w.inline(node)
	}
	return nil
}

func (w *htmlWriter) list(l *mdtree.List) error {
	tag := "ul"
	if l.Ordered {
		tag = "ol"
	}
	w.WriteString("<")
	w.WriteString(tag)
	if l.Ordered && l.Start != 1 {
		w.WriteString(` start="`)
		w.WriteString(strconv.Itoa(l.Start))
		w.WriteString(`"`)
	}
	w.WriteString(">\n")
	if err := w.blocks(l.Children(), l.Tight); err != nil {
		return err
	}
	w.WriteString("</")
	w.WriteString(tag)
	w.WriteString(">\n")
	return nil
}

func (w *htmlWriter) table(t *mdtree.Table) error {
	w.WriteString("<table>\n")
	inBody := false
	for _, child := range t.Children() {
		row, ok := child.(*mdtree.TableRow)
		if !ok {
			return fmt.Errorf("render: unexpected %s in table", child.Kind())
		}
		if row.Header {
			w.WriteString("<thead>\n")
		} else if !inBody {
			w.WriteString("<tbody>\n")
			inBody = true
		}

		cellTag := "td"
		if row.Header {
			cellTag = "th"
		}
		w.WriteString("<tr>\n")
		for _, c := range row.Children() {
			cell, ok := c.(*mdtree.TableCell)
			if !ok {
				return fmt.Errorf("render: unexpected %s in table row", c.Kind())
			}
			w.WriteString("<")
			w.WriteString(cellTag)
			if cell.Alignment != mdtree.AlignNone {
				w.WriteString(` style="text-align:`)
				w.WriteString(cell.Alignment.String())
				w.WriteString(`"`)
			}
			w.WriteString(">")
			w.inlines(cell.Children())
			w.WriteString("</")
			w.WriteString(cellTag)
			w.WriteString(">\n")
		}
		w.WriteString("</tr>\n")

		if row.Header {
			w.WriteString("</thead>\n")
		}
	}
	if inBody {
		w.WriteString("</tbody>\n")
	}
	w.WriteString("</table>\n")
	return nil
}

func (w *htmlWriter) inlines(children []mdtree.Node) {
	for _, child := range children {
		w.inline(child)
	}
}

func (w *htmlWriter) inline(node mdtree.Node) {
	switch v := node.(type) {
	case *mdtree.Text:
		w.WriteString(html.EscapeString(v.Value))
		switch v.Break {
		case mdtree.BreakSoft:
			w.WriteString("\n")
		case mdtree.BreakHard:
			w.WriteString("<br>\n")
		}
	case *mdtree.Emphasis:
		tag := "em"
		if v.Level >= 2 {
			tag = "strong"
		}
		w.WriteString("<" + tag + ">")
		w.inlines(v.Children())
		w.WriteString("</" + tag + ">")
	case *mdtree.Strikethrough:
		w.WriteString("<del>")
		w.inlines(v.Children())
		w.WriteString("</del>")
	case *mdtree.CodeSpan:
		w.WriteString("<code>")
		w.WriteString(html.EscapeString(v.Code))
		w.WriteString("</code>")
	case *mdtree.Link:
		w.WriteString(`<a href="`)
		w.WriteString(w.url(v.Destination))
		w.WriteString(`"`)
		if v.Title != "" {
			w.WriteString(` title="`)
			w.WriteString(html.EscapeString(v.Title))
			w.WriteString(`"`)
		}
		w.WriteString(">")
		w.inlines(v.Children())
		w.WriteString("</a>")
	case *mdtree.Image:
		w.WriteString(`<img src="`)
		w.WriteString(w.url(v.Source))
		w.WriteString(`" alt="`)
		w.WriteString(html.EscapeString(mdtree.PlainText(v)))
		w.WriteString(`"`)
		if v.Title != "" {
			w.WriteString(` title="`)
			w.WriteString(html.EscapeString(v.Title))
			w.WriteString(`"`)
		}
		w.WriteString(">")
	case *mdtree.AutoLink:
		href := v.URL
		if v.Email && !strings.HasPrefix(href, "mailto:") {
			href = "mailto:" + href
		}
		w.WriteString(`<a href="`)
		w.WriteString(w.url(href))
		w.WriteString(`">`)
		w.WriteString(html.EscapeString(v.URL))
		w.WriteString("</a>")
	case *mdtree.RawHTML:
		w.WriteString(w.raw(v.Raw))
	case *mdtree.TaskCheckBox:
		if v.Checked {
			w.WriteString(`<input type="checkbox" checked disabled> `)
		} else {
			w.WriteString(`<input type="checkbox" disabled> `)
		}
	default:
		w.inlines(node.Children())
	}
}
