// Package coordinator runs Markdown parses off the caller's goroutine,
// collapsing bursts of submissions and discarding superseded work.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/livefir/livemark/internal/mdtree"
	"github.com/livefir/livemark/internal/metrics"
)

// ErrClosed is carried by submissions made after Close
var ErrClosed = errors.New("coordinator: closed")

// Parser turns text into a tree. Implementations should return promptly
// once ctx is cancelled.
type Parser interface {
	Parse(ctx context.Context, text string) (*mdtree.Tree, error)
}

// ParserFunc adapts a function to Parser
type ParserFunc func(ctx context.Context, text string) (*mdtree.Tree, error)

func (f ParserFunc) Parse(ctx context.Context, text string) (*mdtree.Tree, error) {
	return f(ctx, text)
}

// ParseError reports a failed or panicking parse
type ParseError struct {
	Generation uint64
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse generation %d: %v", e.Generation, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// State describes whether any submission is still in flight
type State int

const (
	Idle State = iota
	Parsing
)

func (s State) String() string {
	if s == Parsing {
		return "parsing"
	}
	return "idle"
}

// Options configures a Coordinator
type Options struct {
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	MaxWorkers int
}

// Option customizes a Coordinator
type Option func(*Options)

// WithLogger sets the logger; the default is slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetrics records parse outcomes on collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *Options) {
		o.Metrics = collector
	}
}

// WithMaxWorkers bounds how many parses may run at once
func WithMaxWorkers(n int) Option {
	return func(o *Options) {
		o.MaxWorkers = n
	}
}

// Coordinator owns the parse generation counter. Submit may be called from
// any goroutine but results are meant for a single consumer.
type Coordinator struct {
	parser  Parser
	logger  *slog.Logger
	metrics *metrics.Collector
	workers *semaphore.Weighted

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	current    *Pending
	inflight   int
	closed     bool
}

// New creates a coordinator delivering trees produced by parser
func New(parser Parser, opts ...Option) *Coordinator {
	o := Options{MaxWorkers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewCollector()
	}
	if o.MaxWorkers < 1 {
		o.MaxWorkers = 1
	}

	base, stop := context.WithCancel(context.Background())
	return &Coordinator{
		parser:  parser,
		logger:  o.Logger,
		metrics: o.Metrics,
		workers: semaphore.NewWeighted(int64(o.MaxWorkers)),
		base:    base,
		stop:    stop,
	}
}

// Submit schedules text for parsing and returns immediately. Any earlier
// submission still in flight is cancelled. With throttle > 0 the parse
// starts only after throttle elapses without a newer submission.
func (c *Coordinator) Submit(text string, throttle time.Duration) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return completed(c.generation, nil, ErrClosed)
	}

	if c.current != nil {
		c.current.cancel()
	}

	c.generation++
	ctx, cancel := context.WithCancel(c.base)
	p := &Pending{
		generation: c.generation,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	c.current = p
	c.inflight++
	c.metrics.IncrementParseSubmitted()

	c.wg.Add(1)
	go c.run(ctx, p, text, throttle)
	return p
}

// CancelPending cancels the latest submission if it has not been delivered
func (c *Coordinator) CancelPending() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.cancel()
	}
}

// Close cancels outstanding work and waits for workers to exit. Later
// submissions complete immediately with ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stop()
	c.mu.Unlock()

	c.wg.Wait()
}

// State reports Parsing while any submission has not settled
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight > 0 {
		return Parsing
	}
	return Idle
}

// Generation returns the generation of the latest submission
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Coordinator) run(ctx context.Context, p *Pending, text string, throttle time.Duration) {
	defer c.wg.Done()
	defer c.settle()

	if throttle > 0 {
		timer := time.NewTimer(throttle)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			c.superseded(p)
			return
		case <-timer.C:
		}
	}

	if ctx.Err() != nil {
		c.superseded(p)
		return
	}

	if err := c.workers.Acquire(ctx, 1); err != nil {
		c.superseded(p)
		return
	}
	defer c.workers.Release(1)

	if ctx.Err() != nil {
		c.superseded(p)
		return
	}

	start := time.Now()
	tree, err := c.parse(ctx, text)
	c.deliver(p, tree, err, time.Since(start))
}

// parse calls the parser, turning a panic into an error
func (c *Coordinator) parse(ctx context.Context, text string) (tree *mdtree.Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	tree, err = c.parser.Parse(ctx, text)
	if err == nil && tree == nil {
		err = errors.New("parser returned no tree")
	}
	return tree, err
}

func (c *Coordinator) deliver(p *Pending, tree *mdtree.Tree, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.generation != c.generation || p.ctx.Err() != nil {
		c.metrics.IncrementParseSuperseded()
		c.logger.Debug("parse result discarded",
			"generation", p.generation, "latest", c.generation)
		return
	}

	if err != nil {
		c.metrics.IncrementParseFailed()
		c.logger.Warn("parse failed", "generation", p.generation, "error", err)
		p.complete(nil, &ParseError{Generation: p.generation, Err: err})
		return
	}

	c.metrics.IncrementParseCompleted()
	c.logger.Debug("parse delivered",
		"generation", p.generation, "blocks", tree.Len(), "elapsed", elapsed)
	p.complete(tree, nil)
}

func (c *Coordinator) superseded(p *Pending) {
	c.metrics.IncrementParseSuperseded()
	c.logger.Debug("parse superseded", "generation", p.generation)
}

func (c *Coordinator) settle() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

// Pending is the handle of one submission
type Pending struct {
	generation uint64
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc

	tree *mdtree.Tree
	err  error
}

func completed(generation uint64, tree *mdtree.Tree, err error) *Pending {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pending{generation: generation, done: make(chan struct{}), ctx: ctx, cancel: cancel}
	p.complete(tree, err)
	return p
}

// complete stores the result and releases waiters; callers hold the
// coordinator lock or own p exclusively.
func (p *Pending) complete(tree *mdtree.Tree, err error) {
	p.tree, p.err = tree, err
	close(p.done)
	p.cancel()
}

// Generation returns the generation assigned at submission
func (p *Pending) Generation() uint64 {
	return p.generation
}

// Done is closed once a result is available. It is never closed for a
// submission that was superseded or cancelled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Settled is closed once the submission is delivered or abandoned;
// Cancelled tells the two apart.
func (p *Pending) Settled() <-chan struct{} {
	return p.ctx.Done()
}

// Result returns the delivered tree or error; valid only after Done is closed
func (p *Pending) Result() (*mdtree.Tree, error) {
	select {
	case <-p.done:
		return p.tree, p.err
	default:
		return nil, nil
	}
}

// Wait blocks until the result is delivered or ctx ends
func (p *Pending) Wait(ctx context.Context) (*mdtree.Tree, error) {
	select {
	case <-p.done:
		return p.tree, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancelled reports whether the submission was abandoned before delivery
func (p *Pending) Cancelled() bool {
	select {
	case <-p.done:
		return false
	default:
		return p.ctx.Err() != nil
	}
}
