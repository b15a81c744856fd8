package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/livefir/livemark/internal/mdtree"
)

// ANSI renders blocks as styled terminal text
type ANSI struct{}

// NewANSI creates a terminal renderer
func NewANSI() *ANSI {
	return &ANSI{}
}

type styles struct {
	heading lipgloss.Style
	text    lipgloss.Style
	code    lipgloss.Style
	link    lipgloss.Style
	quote   lipgloss.Style
	muted   lipgloss.Style
	strong  lipgloss.Style
	em      lipgloss.Style
	strike  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Heading)),
		text:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		code:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Code)),
		link:    lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color(t.Link)),
		quote: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Quote)).
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color(t.Quote)).
			PaddingLeft(1),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		strong: lipgloss.NewStyle().Bold(true),
		em:     lipgloss.NewStyle().Italic(true),
		strike: lipgloss.NewStyle().Strikethrough(true),
	}
}

// Render returns the styled text of one block, wrapped to cfg.Width
func (r *ANSI) Render(node mdtree.Node, cfg Config) (string, error) {
	if node == nil {
		return "", ErrNilNode
	}
	w := ansiWriter{cfg: cfg, st: newStyles(cfg.Theme)}
	return w.block(node, cfg.Width)
}

type ansiWriter struct {
	cfg Config
	st  styles
}

func (w *ansiWriter) wrap(s string, width int) string {
	if width < 1 {
		width = 1
	}
	return ansi.Wrap(s, width, "")
}

func (w *ansiWriter) block(node mdtree.Node, width int) (string, error) {
	switch v := node.(type) {
	case *mdtree.Heading:
		if err := checkHeading(v); err != nil {
			return "", err
		}
		title := strings.Repeat("#", v.Level) + " " + w.inlines(v.Children())
		return w.st.heading.Render(w.wrap(title, width)), nil
	case *mdtree.Paragraph:
		return w.wrap(w.st.text.Render(w.inlines(v.Children())), width), nil
	case *mdtree.ThematicBreak:
		return w.st.muted.Render(strings.Repeat("─", width)), nil
	case *mdtree.CodeBlock:
		code := strings.TrimSuffix(v.Code, "\n")
		lines := strings.Split(code, "\n")
		for i, line := range lines {
			lines[i] = "  " + w.st.code.Render(line)
		}
		if v.Language != "" {
			lines = append([]string{w.st.muted.Render("  " + v.Language)}, lines...)
		}
		return strings.Join(lines, "\n"), nil
	case *mdtree.Blockquote:
		inner, err := w.children(v.Children(), width-2)
		if err != nil {
			return "", err
		}
		return w.st.quote.Render(inner), nil
	case *mdtree.List:
		return w.list(v, width)
	case *mdtree.ListItem:
		return w.children(v.Children(), width)
	case *mdtree.Table:
		return w.table(v)
	case *mdtree.HTMLBlock:
		return w.st.muted.Render(strings.TrimSuffix(v.Raw, "\n")), nil
	case *mdtree.Unknown:
		return w.children(v.Children(), width)
	default:
		return w.wrap(w.inline(node), width), nil
	}
}

func (w *ansiWriter) children(nodes []mdtree.Node, width int) (string, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, err := w.block(n, width)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n"), nil
}

func (w *ansiWriter) list(l *mdtree.List, width int) (string, error) {
	items := l.Children()
	parts := make([]string, 0, len(items))
	for i, item := range items {
		marker := w.cfg.ListMarker
		if l.Ordered {
			marker = strconv.Itoa(l.Start+i) + "."
		}
		indent := len(marker) + 1

		body, err := w.block(item, width-indent)
		if err != nil {
			return "", err
		}
		lines := strings.Split(body, "\n")
		for j := range lines {
			if j == 0 {
				lines[j] = w.st.muted.Render(marker) + " " + lines[j]
			} else {
				lines[j] = strings.Repeat(" ", indent) + lines[j]
			}
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	sep := "\n"
	if !l.Tight {
		sep = "\n\n"
	}
	return strings.Join(parts, sep), nil
}

func (w *ansiWriter) table(t *mdtree.Table) (string, error) {
	var rows [][]string
	var header []bool
	for _, child := range t.Children() {
		row, ok := child.(*mdtree.TableRow)
		if !ok {
			return "", fmt.Errorf("render: unexpected %s in table", child.Kind())
		}
		var cells []string
		for _, c := range row.Children() {
			cells = append(cells, w.inline(c))
		}
		rows = append(rows, cells)
		header = append(header, row.Header)
	}

	widths := map[int]int{}
	for _, cells := range rows {
		for i, c := range cells {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	var b strings.Builder
	for r, cells := range rows {
		for i, c := range cells {
			if i > 0 {
				b.WriteString(w.st.muted.Render(" │ "))
			}
			cell := lipgloss.NewStyle().Width(widths[i]).Align(w.align(t, i)).Render(c)
			if header[r] {
				cell = w.st.strong.Render(cell)
			}
			b.WriteString(cell)
		}
		if header[r] {
			b.WriteString("\n")
			for i := range cells {
				if i > 0 {
					b.WriteString(w.st.muted.Render("─┼─"))
				}
				b.WriteString(w.st.muted.Render(strings.Repeat("─", widths[i])))
			}
		}
		if r < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (w *ansiWriter) align(t *mdtree.Table, col int) lipgloss.Position {
	if col >= len(t.Alignments) {
		return lipgloss.Left
	}
	switch t.Alignments[col] {
	case mdtree.AlignCenter:
		return lipgloss.Center
	case mdtree.AlignRight:
		return lipgloss.Right
	default:
		return lipgloss.Left
	}
}

func (w *ansiWriter) inlines(children []mdtree.Node) string {
	var b strings.Builder
	for _, child := range children {
		b.WriteString(w.inline(child))
	}
	return b.String()
}

func (w *ansiWriter) inline(node mdtree.Node) string {
	switch v := node.(type) {
	case *mdtree.Text:
		switch v.Break {
		case mdtree.BreakSoft:
			return v.Value + " "
		case mdtree.BreakHard:
			return v.Value + "\n"
		}
		return v.Value
	case *mdtree.Emphasis:
		if v.Level >= 2 {
			return w.st.strong.Render(w.inlines(v.Children()))
		}
		return w.st.em.Render(w.inlines(v.Children()))
	case *mdtree.Strikethrough:
		return w.st.strike.Render(w.inlines(v.Children()))
	case *mdtree.CodeSpan:
		return w.st.code.Render(v.Code)
	case *mdtree.Link:
		text := w.inlines(v.Children())
		if text == "" || text == v.Destination {
			return w.st.link.Render(v.Destination)
		}
		return w.st.link.Render(text) + w.st.muted.Render(" ("+v.Destination+")")
	case *mdtree.Image:
		return w.st.muted.Render("[image: " + mdtree.PlainText(v) + "]")
	case *mdtree.AutoLink:
		return w.st.link.Render(v.URL)
	case *mdtree.RawHTML:
		return w.st.muted.Render(v.Raw)
	case *mdtree.TaskCheckBox:
		if v.Checked {
			return "[x] "
		}
		return "[ ] "
	default:
		return w.inlines(node.Children())
	}
}
