package livemark

import (
	"log/slog"
	"time"

	"github.com/livefir/livemark/internal/coordinator"
	"github.com/livefir/livemark/internal/metrics"
	"github.com/livefir/livemark/internal/render"
)

// DefaultCacheCapacity is the number of block artifacts kept when no
// capacity is configured
const DefaultCacheCapacity = 512

// Options holds the settings of a Document
type Options struct {
	RenderConfig  render.Config
	CacheCapacity int
	Throttle      time.Duration
	Parser        coordinator.Parser
	MaxWorkers    int
	Logger        *slog.Logger
	Metrics       *metrics.Collector
}

// Option is a functional option for configuring a Document
type Option func(*Options)

// WithRenderConfig sets the configuration handed to the renderer
func WithRenderConfig(cfg render.Config) Option {
	return func(o *Options) {
		o.RenderConfig = cfg
	}
}

// WithCacheCapacity bounds the render cache
func WithCacheCapacity(capacity int) Option {
	return func(o *Options) {
		o.CacheCapacity = capacity
	}
}

// WithThrottle delays every parse, collapsing bursts of submissions
func WithThrottle(d time.Duration) Option {
	return func(o *Options) {
		o.Throttle = d
	}
}

// WithParser replaces the default goldmark parser
func WithParser(p coordinator.Parser) Option {
	return func(o *Options) {
		o.Parser = p
	}
}

// WithMaxWorkers bounds concurrently running parses
func WithMaxWorkers(n int) Option {
	return func(o *Options) {
		o.MaxWorkers = n
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetrics records pipeline activity on collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *Options) {
		o.Metrics = collector
	}
}

func defaultOptions() Options {
	return Options{
		RenderConfig:  render.DefaultConfig(),
		CacheCapacity: DefaultCacheCapacity,
		MaxWorkers:    1,
	}
}
