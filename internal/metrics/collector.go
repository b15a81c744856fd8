package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts pipeline activity: parses, applied updates, block reuse
// and preview clients. All methods are safe for concurrent use.
type Collector struct {
	pipelineMetrics *PipelineMetrics
	mu              sync.RWMutex
	startTime       time.Time
}

// PipelineMetrics tracks incremental rendering activity
type PipelineMetrics struct {
	// Background parsing
	ParsesSubmitted  int64 `json:"parses_submitted"`
	ParsesCompleted  int64 `json:"parses_completed"`
	ParsesSuperseded int64 `json:"parses_superseded"`
	ParsesFailed     int64 `json:"parses_failed"`

	// Applied updates
	UpdatesApplied   int64 `json:"updates_applied"`
	UpdatesIdentical int64 `json:"updates_identical"`

	// Block rendering
	BlocksRendered int64 `json:"blocks_rendered"`
	BlocksReused   int64 `json:"blocks_reused"`
	RenderErrors   int64 `json:"render_errors"`

	// Preview clients
	ActiveClients        int64 `json:"active_clients"`
	MaxConcurrentClients int64 `json:"max_concurrent_clients"`
	FramesSent           int64 `json:"frames_sent"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		pipelineMetrics: &PipelineMetrics{StartTime: now},
		startTime:       now,
	}
}

// IncrementParseSubmitted records a submission to the coordinator
func (c *Collector) IncrementParseSubmitted() {
	atomic.AddInt64(&c.pipelineMetrics.ParsesSubmitted, 1)
}

// IncrementParseCompleted records a delivered parse
func (c *Collector) IncrementParseCompleted() {
	atomic.AddInt64(&c.pipelineMetrics.ParsesCompleted, 1)
}

// IncrementParseSuperseded records a submission cancelled before delivery
func (c *Collector) IncrementParseSuperseded() {
	atomic.AddInt64(&c.pipelineMetrics.ParsesSuperseded, 1)
}

// IncrementParseFailed records a parse that ended in an error or panic
func (c *Collector) IncrementParseFailed() {
	atomic.AddInt64(&c.pipelineMetrics.ParsesFailed, 1)
}

// RecordUpdate records one applied tree and how many blocks it rendered and reused
func (c *Collector) RecordUpdate(rendered, reused int) {
	atomic.AddInt64(&c.pipelineMetrics.UpdatesApplied, 1)
	atomic.AddInt64(&c.pipelineMetrics.BlocksRendered, int64(rendered))
	atomic.AddInt64(&c.pipelineMetrics.BlocksReused, int64(reused))
}

// IncrementUpdateIdentical records an update skipped because nothing changed
func (c *Collector) IncrementUpdateIdentical() {
	atomic.AddInt64(&c.pipelineMetrics.UpdatesIdentical, 1)
}

// IncrementRenderError records a renderer failure
func (c *Collector) IncrementRenderError() {
	atomic.AddInt64(&c.pipelineMetrics.RenderErrors, 1)
}

// IncrementClientConnected records a new preview client
func (c *Collector) IncrementClientConnected() {
	currentActive := atomic.AddInt64(&c.pipelineMetrics.ActiveClients, 1)

	// Update max concurrent if needed
	for {
		max := atomic.LoadInt64(&c.pipelineMetrics.MaxConcurrentClients)
		if currentActive <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.pipelineMetrics.MaxConcurrentClients, max, currentActive) {
			break
		}
	}
}

// IncrementClientDisconnected records a preview client going away
func (c *Collector) IncrementClientDisconnected() {
	atomic.AddInt64(&c.pipelineMetrics.ActiveClients, -1)
}

// IncrementFrameSent records a frame written to a preview client
func (c *Collector) IncrementFrameSent() {
	atomic.AddInt64(&c.pipelineMetrics.FramesSent, 1)
}

// GetMetrics returns current pipeline metrics
func (c *Collector) GetMetrics() PipelineMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := c.pipelineMetrics
	return PipelineMetrics{
		ParsesSubmitted:      atomic.LoadInt64(&m.ParsesSubmitted),
		ParsesCompleted:      atomic.LoadInt64(&m.ParsesCompleted),
		ParsesSuperseded:     atomic.LoadInt64(&m.ParsesSuperseded),
		ParsesFailed:         atomic.LoadInt64(&m.ParsesFailed),
		UpdatesApplied:       atomic.LoadInt64(&m.UpdatesApplied),
		UpdatesIdentical:     atomic.LoadInt64(&m.UpdatesIdentical),
		BlocksRendered:       atomic.LoadInt64(&m.BlocksRendered),
		BlocksReused:         atomic.LoadInt64(&m.BlocksReused),
		RenderErrors:         atomic.LoadInt64(&m.RenderErrors),
		ActiveClients:        atomic.LoadInt64(&m.ActiveClients),
		MaxConcurrentClients: atomic.LoadInt64(&m.MaxConcurrentClients),
		FramesSent:           atomic.LoadInt64(&m.FramesSent),
		StartTime:            c.startTime,
		Uptime:               time.Since(c.startTime),
	}
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.pipelineMetrics
	atomic.StoreInt64(&m.ParsesSubmitted, 0)
	atomic.StoreInt64(&m.ParsesCompleted, 0)
	atomic.StoreInt64(&m.ParsesSuperseded, 0)
	atomic.StoreInt64(&m.ParsesFailed, 0)
	atomic.StoreInt64(&m.UpdatesApplied, 0)
	atomic.StoreInt64(&m.UpdatesIdentical, 0)
	atomic.StoreInt64(&m.BlocksRendered, 0)
	atomic.StoreInt64(&m.BlocksReused, 0)
	atomic.StoreInt64(&m.RenderErrors, 0)
	atomic.StoreInt64(&m.ActiveClients, 0)
	atomic.StoreInt64(&m.MaxConcurrentClients, 0)
	atomic.StoreInt64(&m.FramesSent, 0)

	c.startTime = time.Now()
	m.StartTime = c.startTime
}

// ReuseRate returns the fraction of blocks served from cache, 0 when no
// block has been produced yet.
func (c *Collector) ReuseRate() float64 {
	rendered := atomic.LoadInt64(&c.pipelineMetrics.BlocksRendered)
	reused := atomic.LoadInt64(&c.pipelineMetrics.BlocksReused)

	total := rendered + reused
	if total == 0 {
		return 0.0
	}
	return float64(reused) / float64(total)
}

// FailureRate returns the percentage of finished parses that failed
func (c *Collector) FailureRate() float64 {
	completed := atomic.LoadInt64(&c.pipelineMetrics.ParsesCompleted)
	failed := atomic.LoadInt64(&c.pipelineMetrics.ParsesFailed)

	total := completed + failed
	if total == 0 {
		return 0.0
	}
	return float64(failed) / float64(total) * 100.0
}
