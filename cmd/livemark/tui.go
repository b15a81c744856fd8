package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/livefir/livemark"
	"github.com/livefir/livemark/internal/render"
	"github.com/livefir/livemark/internal/tokens"
)

func newTUICmd(a *app) *cobra.Command {
	var (
		fake int
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "tui [file]",
		Short: "Watch a document stream render in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := sourceText(cmd, args, fake, seed)
			if err != nil {
				return err
			}

			// Log records would corrupt the alternate screen
			opts := append(a.documentOptions(),
				livemark.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

			doc, err := livemark.New[string](render.NewANSI(), opts...)
			if err != nil {
				return err
			}
			defer doc.Close()

			updates, stop := streamDocument(cmd.Context(), doc, text, a.cfg.Stream.ChunkSize, a.cfg.Stream.Interval)
			defer stop()

			program := tea.NewProgram(newTUIModel(doc, updates), tea.WithContext(cmd.Context()), tea.WithAltScreen())
			_, err = program.Run()
			// Quitting leaves the command context live
			stop()
			return err
		},
	}

	cmd.Flags().IntVar(&fake, "fake", 20, "Generate a document with this many paragraphs when no file is given")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for --fake")
	return cmd
}

// streamDocument replays text into doc. stop ends the replay and closes
// updates even when nothing reads them.
func streamDocument(ctx context.Context, doc *livemark.Document[string], text string, chunk int, interval time.Duration) (updates <-chan livemark.Update[string], stop context.CancelFunc) {
	ctx, stop = context.WithCancel(ctx)
	texts := tokens.Replay(ctx, text, chunk, interval)
	return doc.Run(ctx, texts), stop
}

type updateMsg struct {
	update livemark.Update[string]
}

type streamDoneMsg struct{}

// tuiModel shows the latest view in a scrollable viewport with a status line
type tuiModel struct {
	doc     *livemark.Document[string]
	updates <-chan livemark.Update[string]

	viewport viewport.Model
	ready    bool

	last *livemark.View[string]
	err  error
	done bool

	statusStyle lipgloss.Style
	errorStyle  lipgloss.Style
}

func newTUIModel(doc *livemark.Document[string], updates <-chan livemark.Update[string]) tuiModel {
	theme := doc.RenderConfig().Theme
	return tuiModel{
		doc:     doc,
		updates: updates,
		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Heading)).
			Bold(true),
		errorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
	}
}

func waitForUpdate(updates <-chan livemark.Update[string]) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return streamDoneMsg{}
		}
		return updateMsg{update: u}
	}
}

// Init fulfills the Bubble Tea Model interface.
func (m tuiModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// Update applies incoming Bubble Tea messages to the model.
func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case updateMsg:
		if msg.update.Err != nil {
			m.err = msg.update.Err
		} else {
			m.err = nil
			m.setView(msg.update.View)
		}
		return m, waitForUpdate(m.updates)
	case streamDoneMsg:
		m.done = true
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleResize sizes the viewport and re-renders at the new width
func (m tuiModel) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	height := max(1, msg.Height-1)
	if !m.ready {
		m.viewport = viewport.New(msg.Width, height)
		m.ready = true
		if m.last != nil {
			m.setView(m.last)
		}
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = height
	}

	cfg := m.doc.RenderConfig()
	cfg.Width = min(400, max(20, msg.Width-2))
	if cfg.Width != m.doc.RenderConfig().Width {
		if err := m.doc.SetRenderConfig(cfg); err != nil {
			m.err = err
			return m, nil
		}
		view, err := m.doc.Rerender()
		if err != nil {
			m.err = err
		} else if view != nil {
			m.setView(view)
		}
	}
	return m, nil
}

func (m *tuiModel) setView(view *livemark.View[string]) {
	m.last = view
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(view.Artifacts(), "\n\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

// View renders the viewport and the status line.
func (m tuiModel) View() string {
	if !m.ready {
		return "starting..."
	}
	return m.viewport.View() + "\n" + m.statusLine()
}

func (m tuiModel) statusLine() string {
	if m.err != nil {
		return m.errorStyle.Render("error: " + m.err.Error())
	}

	state := "streaming"
	if m.done {
		state = "done"
	}
	if m.last == nil {
		return m.statusStyle.Render(state)
	}

	stats := m.doc.Stats()
	return m.statusStyle.Render(fmt.Sprintf("rev %d · %s · reused %d/%d · cache %.0f%% · %s · q to quit",
		m.last.Revision, m.last.Pattern, m.last.Reused, m.last.Len(),
		stats.Cache.HitRate*100, state))
}
