package livemark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livemark/internal/coordinator"
	"github.com/livefir/livemark/internal/diff"
	"github.com/livefir/livemark/internal/mdtree"
	"github.com/livefir/livemark/internal/render"
	"github.com/livefir/livemark/internal/rendercache"
)

// countingRenderer renders through the HTML renderer and counts calls
type countingRenderer struct {
	html  *render.HTML
	calls atomic.Int64
	fail  string
}

func newCountingRenderer() *countingRenderer {
	return &countingRenderer{html: render.NewHTML()}
}

func (r *countingRenderer) Render(node mdtree.Node, cfg render.Config) (string, error) {
	r.calls.Add(1)
	if r.fail != "" && strings.Contains(mdtree.PlainText(node), r.fail) {
		return "", errors.New("renderer refused block")
	}
	return r.html.Render(node, cfg)
}

func newDocument(t *testing.T, r Renderer[string], opts ...Option) *Document[string] {
	t.Helper()
	doc, err := New[string](r, opts...)
	require.NoError(t, err)
	t.Cleanup(doc.Close)
	return doc
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func changeKinds(changes []diff.Change) []diff.ChangeKind {
	out := make([]diff.ChangeKind, len(changes))
	for i, c := range changes {
		out[i] = c.Kind
	}
	return out
}

func TestNew_Errors(t *testing.T) {
	_, err := New[string](nil)
	assert.ErrorIs(t, err, ErrNilRenderer)

	_, err = New[string](newCountingRenderer(), WithCacheCapacity(0))
	assert.ErrorIs(t, err, rendercache.ErrInvalidCapacity)

	cfg := render.DefaultConfig()
	cfg.Width = 1
	_, err = New[string](newCountingRenderer(), WithRenderConfig(cfg))
	assert.Error(t, err)
}

func TestUpdate_AppendReusesBlocks(t *testing.T) {
	r := newCountingRenderer()
	doc := newDocument(t, r)

	first, err := doc.Update(waitCtx(t), "# H\n\nP1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Revision)
	assert.Equal(t, 2, first.Rendered)
	assert.Equal(t, diff.PatternReplace, first.Pattern)

	second, err := doc.Update(waitCtx(t), "# H\n\nP1\n\nP2")
	require.NoError(t, err)

	assert.Equal(t, []diff.ChangeKind{diff.Unchanged, diff.Unchanged, diff.Inserted}, changeKinds(second.Changes))
	assert.Equal(t, 2, second.Reused)
	assert.Equal(t, 1, second.Rendered)
	assert.GreaterOrEqual(t, second.HitRate, 0.6)
	assert.Equal(t, diff.PatternAppend, second.Pattern)
	assert.Equal(t, int64(3), r.calls.Load())

	artifacts := second.Artifacts()
	require.Len(t, artifacts, 3)
	assert.Equal(t, first.Artifacts()[0], artifacts[0])
	assert.Contains(t, artifacts[2], "P2")
	assert.True(t, second.Blocks[0].Reused)
	assert.False(t, second.Blocks[2].Reused)
}

func TestUpdate_RemovedBlock(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	_, err := doc.Update(waitCtx(t), "# H1\n\nP1\n\nP2")
	require.NoError(t, err)

	view, err := doc.Update(waitCtx(t), "# H1\n\nP2")
	require.NoError(t, err)

	var removed []diff.Change
	unchanged := 0
	for _, c := range view.Changes {
		switch c.Kind {
		case diff.Removed:
			removed = append(removed, c)
		case diff.Unchanged:
			unchanged++
		}
	}
	require.Len(t, removed, 1)
	assert.Equal(t, 1, removed[0].OldIndex)
	assert.Equal(t, diff.NoIndex, removed[0].NewIndex)
	assert.Equal(t, 2, unchanged)
	assert.Equal(t, 0, view.Rendered)
	assert.Equal(t, 2, view.Len())
}

func TestUpdate_LongDocumentAppend(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	paragraphs := make([]string, 50)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph number %d.", i)
	}
	text := strings.Join(paragraphs, "\n\n")

	_, err := doc.Update(waitCtx(t), text)
	require.NoError(t, err)

	view, err := doc.Update(waitCtx(t), text+"\n\nOne more.")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, diff.CacheHitRate(view.Changes), 0.95)
	assert.Equal(t, 1, view.Rendered)
}

func TestApply_IdenticalTreeKeepsView(t *testing.T) {
	r := newCountingRenderer()
	doc := newDocument(t, r)

	first, err := doc.Update(waitCtx(t), "# Same\n\ntext")
	require.NoError(t, err)

	again, err := doc.Update(waitCtx(t), "# Same\n\ntext\n")
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, int64(2), r.calls.Load())
	assert.Equal(t, "# Same\n\ntext\n", doc.Tree().Source())
	assert.Equal(t, int64(1), doc.Metrics().GetMetrics().UpdatesIdentical)
}

func TestApply_RenderErrorKeepsState(t *testing.T) {
	r := newCountingRenderer()
	r.fail = "boom"
	doc := newDocument(t, r)

	before, err := doc.Update(waitCtx(t), "# Title\n\nfine")
	require.NoError(t, err)
	treeBefore := doc.Tree()

	view, err := doc.Update(waitCtx(t), "# Title\n\nfine\n\nboom")
	assert.Nil(t, view)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 2, rerr.Index)
	assert.Equal(t, mdtree.KindParagraph, rerr.Kind)

	assert.Same(t, before, doc.View())
	assert.Same(t, treeBefore, doc.Tree())
	assert.Equal(t, int64(1), doc.Metrics().GetMetrics().RenderErrors)
}

func TestApply_HashCollisionRerenders(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	a := mdtree.NewTree("a", []mdtree.Node{mdtree.NewParagraph(mdtree.NewText("alpha", mdtree.BreakNone))})
	b := mdtree.NewTreeWithHashes("b",
		[]mdtree.Node{mdtree.NewParagraph(mdtree.NewText("beta", mdtree.BreakNone))},
		a.Hashes())

	_, err := doc.Apply(a)
	require.NoError(t, err)

	view, err := doc.Apply(b)
	require.NoError(t, err)
	assert.Equal(t, []diff.ChangeKind{diff.Modified}, changeKinds(view.Changes))
	assert.Equal(t, 1, view.Rendered)
	assert.Contains(t, view.Artifacts()[0], "beta")

	stats := doc.Stats().Cache
	assert.Equal(t, int64(0), stats.Hits, "colliding blocks skip the cache")
	assert.Equal(t, int64(1), stats.Misses)
}

func TestApplyGeneration_DropsStaleTree(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	older := mdtree.NewTree("older", []mdtree.Node{mdtree.NewParagraph(mdtree.NewText("older", mdtree.BreakNone))})
	newer := mdtree.NewTree("newer", []mdtree.Node{mdtree.NewParagraph(mdtree.NewText("newer", mdtree.BreakNone))})

	view, err := doc.applyGeneration(2, newer)
	require.NoError(t, err)

	_, err = doc.applyGeneration(1, older)
	assert.ErrorIs(t, err, ErrSuperseded)
	_, err = doc.applyGeneration(2, older)
	assert.ErrorIs(t, err, ErrSuperseded)

	assert.Same(t, newer, doc.Tree())
	assert.Same(t, view, doc.View())
	assert.Equal(t, uint64(1), doc.Stats().Revision)
}

func TestRerender_DuringRun(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	texts := make(chan string)
	updates := doc.Run(waitCtx(t), texts)

	stop := make(chan struct{})
	rerendered := make(chan struct{})
	go func() {
		defer close(rerendered)
		var last uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			view, err := doc.Rerender()
			if !assert.NoError(t, err) {
				return
			}
			if view != nil {
				assert.GreaterOrEqual(t, view.Revision, last)
				last = view.Revision
			}
		}
	}()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range updates {
		}
	}()

	var text string
	for i := 0; i < 100; i++ {
		text += fmt.Sprintf("Paragraph %d.\n\n", i)
		texts <- text
	}
	close(texts)

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not finish after input closed")
	}
	close(stop)
	<-rerendered

	assert.Equal(t, text, doc.Tree().Source())
	view := doc.View()
	require.Equal(t, 100, view.Len())
	assert.Contains(t, view.Artifacts()[99], "Paragraph 99.")
}

func TestApply_NilTree(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())
	_, err := doc.Apply(nil)
	assert.ErrorIs(t, err, ErrNilTree)
}

func TestSetRenderConfig(t *testing.T) {
	r := newCountingRenderer()
	doc := newDocument(t, r)

	view, err := doc.Rerender()
	require.NoError(t, err)
	assert.Nil(t, view, "nothing to rerender before the first update")

	_, err = doc.Update(waitCtx(t), "# A\n\nB")
	require.NoError(t, err)

	bad := render.DefaultConfig()
	bad.ListMarker = "x"
	assert.Error(t, doc.SetRenderConfig(bad))

	cfg := render.DefaultConfig()
	cfg.Minify = true
	require.NoError(t, doc.SetRenderConfig(cfg))
	assert.True(t, doc.RenderConfig().Minify)

	view, err = doc.Rerender()
	require.NoError(t, err)
	assert.Equal(t, 2, view.Rendered, "new config fingerprint misses the cache")
	assert.Equal(t, cfg.Fingerprint(), view.Fingerprint)
	assert.Equal(t, int64(4), r.calls.Load())
}

func TestUpdate_Superseded(t *testing.T) {
	release := make(chan struct{})
	slow := coordinator.ParserFunc(func(ctx context.Context, text string) (*mdtree.Tree, error) {
		if text == "slow" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
			}
		}
		return mdtree.NewTree(text, []mdtree.Node{mdtree.NewParagraph(mdtree.NewText(text, mdtree.BreakNone))}), nil
	})
	defer close(release)

	doc := newDocument(t, newCountingRenderer(), WithParser(slow), WithMaxWorkers(2))

	ctx := waitCtx(t)
	errc := make(chan error, 1)
	go func() {
		_, err := doc.Update(ctx, "slow")
		errc <- err
	}()

	require.Eventually(t, func() bool { return doc.Stats().Generation == 1 }, time.Second, time.Millisecond)

	view, err := doc.Update(waitCtx(t), "fast")
	require.NoError(t, err)
	assert.Contains(t, view.Artifacts()[0], "fast")

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded update did not return")
	}
}

func TestRun(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	texts := make(chan string)
	updates := doc.Run(waitCtx(t), texts)

	var got []Update[string]
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			got = append(got, u)
		}
	}()

	for _, text := range []string{"# T", "# T\n\nfirst", "# T\n\nfirst\n\nsecond"} {
		texts <- text
	}
	close(texts)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not finish after input closed")
	}

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.NoError(t, last.Err)
	assert.Equal(t, uint64(3), last.Generation)
	assert.Equal(t, 3, last.View.Len())

	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Generation, got[i-1].Generation)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	doc := newDocument(t, newCountingRenderer(), WithThrottle(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	texts := make(chan string)
	updates := doc.Run(ctx, texts)

	texts <- "# never parsed"
	cancel()

	select {
	case _, ok := <-updates:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestStats(t *testing.T) {
	doc := newDocument(t, newCountingRenderer())

	_, err := doc.Update(waitCtx(t), "# A\n\nB")
	require.NoError(t, err)
	_, err = doc.Update(waitCtx(t), "# A\n\nB\n\nC")
	require.NoError(t, err)

	s := doc.Stats()
	assert.Equal(t, uint64(2), s.Revision)
	assert.Equal(t, uint64(2), s.Generation)
	assert.Equal(t, 3, s.Blocks)
	assert.Equal(t, diff.PatternAppend, s.Pattern)
	assert.Equal(t, int64(2), s.Cache.Hits)
	assert.Equal(t, int64(3), s.Cache.Misses)
	assert.Equal(t, int64(2), s.Pipeline.UpdatesApplied)
	assert.InDelta(t, 0.4, s.ReuseRate, 1e-9)
}
