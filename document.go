// Package livemark renders Markdown documents incrementally. Text updates
// are parsed in the background, diffed against the previous tree by
// structural hash, and only blocks that changed are handed to the renderer;
// everything else is served from a bounded render cache.
package livemark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/livefir/livemark/internal/coordinator"
	"github.com/livefir/livemark/internal/diff"
	"github.com/livefir/livemark/internal/mdtree"
	"github.com/livefir/livemark/internal/metrics"
	"github.com/livefir/livemark/internal/parser"
	"github.com/livefir/livemark/internal/render"
	"github.com/livefir/livemark/internal/rendercache"
)

// Renderer turns one top-level block into an artifact of type A. Equal
// nodes rendered under equal configs must give equal artifacts.
type Renderer[A any] interface {
	Render(node mdtree.Node, cfg render.Config) (A, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc[A any] func(node mdtree.Node, cfg render.Config) (A, error)

func (f RendererFunc[A]) Render(node mdtree.Node, cfg render.Config) (A, error) {
	return f(node, cfg)
}

// Document is an incrementally rendered Markdown document. Submit and Run
// feed it text; Apply turns parsed trees into views.
type Document[A any] struct {
	renderer Renderer[A]
	coord    *coordinator.Coordinator
	cache    *rendercache.Cache[A]
	logger   *slog.Logger
	metrics  *metrics.Collector
	throttle time.Duration

	mu          sync.Mutex
	config      render.Config
	fingerprint rendercache.Fingerprint
	tree        *mdtree.Tree
	view        *View[A]
	revision    uint64

	// applied is the newest parse generation applied; older trees are dropped
	applied uint64
}

// Stats summarizes a document's pipeline
type Stats struct {
	Revision   uint64                  `json:"revision"`
	Generation uint64                  `json:"generation"`
	State      string                  `json:"state"`
	Blocks     int                     `json:"blocks"`
	Pattern    diff.Pattern            `json:"pattern"`
	HitRate    float64                 `json:"hit_rate"`
	ReuseRate  float64                 `json:"reuse_rate"`
	Cache      rendercache.Stats       `json:"cache"`
	Pipeline   metrics.PipelineMetrics `json:"pipeline"`
}

// New creates a document rendering blocks through renderer
func New[A any](renderer Renderer[A], opts ...Option) (*Document[A], error) {
	if renderer == nil {
		return nil, ErrNilRenderer
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewCollector()
	}
	if o.Parser == nil {
		o.Parser = parser.New()
	}

	if err := o.RenderConfig.Validate(); err != nil {
		return nil, fmt.Errorf("livemark: %w", err)
	}

	cache, err := rendercache.New[A](o.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("livemark: %w", err)
	}

	coord := coordinator.New(o.Parser,
		coordinator.WithLogger(o.Logger),
		coordinator.WithMetrics(o.Metrics),
		coordinator.WithMaxWorkers(o.MaxWorkers),
	)

	return &Document[A]{
		renderer:    renderer,
		coord:       coord,
		cache:       cache,
		logger:      o.Logger,
		metrics:     o.Metrics,
		throttle:    o.Throttle,
		config:      o.RenderConfig,
		fingerprint: o.RenderConfig.Fingerprint(),
	}, nil
}

// Submit schedules text for background parsing with the configured throttle
func (d *Document[A]) Submit(text string) *coordinator.Pending {
	return d.coord.Submit(text, d.throttle)
}

// Update parses text and applies the result. It returns ErrSuperseded if
// another submission replaces text before it is parsed, or if a newer
// submission was applied first.
func (d *Document[A]) Update(ctx context.Context, text string) (*View[A], error) {
	p := d.Submit(text)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.Settled():
	}
	if p.Cancelled() {
		return nil, ErrSuperseded
	}

	tree, err := p.Result()
	if err != nil {
		return nil, err
	}
	return d.applyGeneration(p.Generation(), tree)
}

// Apply diffs tree against the retained tree and renders the blocks the
// cache cannot serve. On error the retained tree and view are unchanged.
func (d *Document[A]) Apply(tree *mdtree.Tree) (*View[A], error) {
	if tree == nil {
		return nil, ErrNilTree
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyLocked(tree)
}

// applyGeneration applies a tree parsed for generation gen. A tree older
// than the last one applied returns ErrSuperseded.
func (d *Document[A]) applyGeneration(gen uint64, tree *mdtree.Tree) (*View[A], error) {
	if tree == nil {
		return nil, ErrNilTree
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen <= d.applied {
		d.logger.Debug("dropping stale tree", "generation", gen, "applied", d.applied)
		return nil, ErrSuperseded
	}
	view, err := d.applyLocked(tree)
	if err != nil {
		return nil, err
	}
	d.applied = gen
	return view, nil
}

// applyLocked does the work of Apply; callers hold d.mu
func (d *Document[A]) applyLocked(tree *mdtree.Tree) (*View[A], error) {
	if d.view != nil && d.view.Fingerprint == d.fingerprint && diff.AreIdentical(d.tree, tree) {
		d.tree = tree
		d.metrics.IncrementUpdateIdentical()
		return d.view, nil
	}

	start := time.Now()
	result := diff.Analyze(d.tree, tree)

	// Colliding hashes must not be served from the cache
	collided := make(map[int]bool)
	for _, ch := range result.Changes {
		if ch.Kind == diff.Modified {
			collided[ch.NewIndex] = true
		}
	}

	blocks := make([]Block[A], tree.Len())
	reused := 0
	for i := range blocks {
		node := tree.Block(i)
		key := rendercache.Key{Hash: tree.BlockHash(i), Config: d.fingerprint}

		var (
			artifact A
			hit      bool
		)
		if !collided[i] {
			artifact, hit = d.cache.Lookup(key)
		}
		if !hit {
			var err error
			artifact, err = d.renderer.Render(node, d.config)
			if err != nil {
				d.metrics.IncrementRenderError()
				d.logger.Warn("render failed", "block", i, "kind", node.Kind(), "error", err)
				return nil, &RenderError{Index: i, Kind: node.Kind(), Err: err}
			}
			d.cache.Store(key, artifact)
		} else {
			reused++
		}

		blocks[i] = Block[A]{
			Index:    i,
			Hash:     key.Hash,
			Kind:     node.Kind(),
			Artifact: artifact,
			Reused:   hit,
		}
	}

	d.revision++
	view := &View[A]{
		Revision:    d.revision,
		Blocks:      blocks,
		Changes:     result.Changes,
		Pattern:     result.Pattern,
		Fingerprint: d.fingerprint,
		Reused:      reused,
		Rendered:    len(blocks) - reused,
		HitRate:     ratio(reused, len(blocks)),
		Duration:    time.Since(start),
	}
	d.tree, d.view = tree, view
	d.metrics.RecordUpdate(view.Rendered, view.Reused)

	d.logger.Debug("view updated",
		"revision", view.Revision,
		"pattern", view.Pattern,
		"blocks", len(blocks),
		"reused", view.Reused,
		"rendered", view.Rendered,
		"duration", view.Duration)
	return view, nil
}

// Run submits every text received on texts and applies each delivered
// tree, emitting one Update per delivery or failure. Superseded texts
// produce no update. The channel closes once texts is closed and the last
// submission settled, or when ctx ends.
func (d *Document[A]) Run(ctx context.Context, texts <-chan string) <-chan Update[A] {
	out := make(chan Update[A])

	go func() {
		defer close(out)

		input := texts
		var pending *coordinator.Pending
		var settled <-chan struct{}

		for input != nil || pending != nil {
			select {
			case <-ctx.Done():
				d.coord.CancelPending()
				return

			case text, ok := <-input:
				if !ok {
					input = nil
					continue
				}
				pending = d.Submit(text)
				settled = pending.Settled()

			case <-settled:
				p := pending
				pending, settled = nil, nil
				if p.Cancelled() {
					continue
				}

				update := Update[A]{Generation: p.Generation()}
				tree, err := p.Result()
				if err == nil {
					update.View, err = d.applyGeneration(p.Generation(), tree)
				}
				if errors.Is(err, ErrSuperseded) {
					continue
				}
				update.Err = err

				select {
				case <-ctx.Done():
					return
				case out <- update:
				}
			}
		}
	}()

	return out
}

// SetRenderConfig validates cfg and uses it for subsequent renders.
// Cached artifacts of the previous config stay until evicted.
func (d *Document[A]) SetRenderConfig(cfg render.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = cfg
	d.fingerprint = cfg.Fingerprint()
	return nil
}

// RenderConfig returns the current render configuration
func (d *Document[A]) RenderConfig() render.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Rerender applies the retained tree again under the current config. It
// returns a nil view before the first update.
func (d *Document[A]) Rerender() (*View[A], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tree == nil {
		return nil, nil
	}
	return d.applyLocked(d.tree)
}

// Tree returns the last successfully applied tree
func (d *Document[A]) Tree() *mdtree.Tree {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree
}

// View returns the current view, nil before the first update
func (d *Document[A]) View() *View[A] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Metrics returns the collector recording this document's activity
func (d *Document[A]) Metrics() *metrics.Collector {
	return d.metrics
}

// Stats returns a snapshot of the pipeline
func (d *Document[A]) Stats() Stats {
	d.mu.Lock()
	s := Stats{
		Revision: d.revision,
		Blocks:   d.tree.Len(),
	}
	if d.view != nil {
		s.Pattern = d.view.Pattern
		s.HitRate = d.view.HitRate
	}
	d.mu.Unlock()

	s.Generation = d.coord.Generation()
	s.State = d.coord.State().String()
	s.Cache = d.cache.Stats()
	s.Pipeline = d.metrics.GetMetrics()
	s.ReuseRate = d.metrics.ReuseRate()
	return s
}

// Close cancels outstanding parses and waits for workers to exit
func (d *Document[A]) Close() {
	d.coord.Close()
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
