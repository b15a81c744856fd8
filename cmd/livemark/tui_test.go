package main

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livemark"
	"github.com/livefir/livemark/internal/render"
)

func newANSIDocument(t *testing.T) *livemark.Document[string] {
	t.Helper()
	doc, err := livemark.New[string](render.NewANSI())
	require.NoError(t, err)
	t.Cleanup(doc.Close)
	return doc
}

func TestTUIModel_UpdateBeforeFirstResize(t *testing.T) {
	doc := newANSIDocument(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	view, err := doc.Update(ctx, "early paragraph")
	require.NoError(t, err)

	var m tea.Model = newTUIModel(doc, nil)
	m, _ = m.Update(updateMsg{update: livemark.Update[string]{Generation: 1, View: view}})
	assert.Equal(t, "starting...", m.View())

	// The resize maps to the configured wrap column, so nothing is re-rendered
	width := doc.RenderConfig().Width + 2
	m, _ = m.Update(tea.WindowSizeMsg{Width: width, Height: 10})
	assert.Equal(t, uint64(1), doc.Stats().Revision)
	assert.Contains(t, m.View(), "early")
	assert.Contains(t, m.View(), "paragraph")
}

func TestStreamDocument_StopReleasesRun(t *testing.T) {
	doc := newANSIDocument(t)

	updates, stop := streamDocument(context.Background(), doc, "# A\n\nB\n\nC", 2, time.Millisecond)

	// Nobody reads the updates, as after the user quits
	time.Sleep(20 * time.Millisecond)
	stop()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("update channel did not close after stop")
		}
	}
}
