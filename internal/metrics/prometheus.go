package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "livemark"

var (
	parsesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "parse", "total"),
		"Parse submissions by outcome.",
		[]string{"outcome"}, nil,
	)
	updatesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "updates", "total"),
		"Trees handed to the document by result.",
		[]string{"result"}, nil,
	)
	blocksDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "blocks", "total"),
		"Blocks produced for views by source.",
		[]string{"source"}, nil,
	)
	renderErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "render_errors", "total"),
		"Renderer failures.",
		nil, nil,
	)
	clientsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "preview", "clients"),
		"Connected preview clients.",
		nil, nil,
	)
	framesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "preview", "frames_total"),
		"Frames written to preview clients.",
		nil, nil,
	)
	reuseDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "blocks", "reuse_ratio"),
		"Fraction of blocks served from the render cache.",
		nil, nil,
	)
)

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- parsesDesc
	ch <- updatesDesc
	ch <- blocksDesc
	ch <- renderErrorsDesc
	ch <- clientsDesc
	ch <- framesDesc
	ch <- reuseDesc
}

// Collect implements prometheus.Collector by exporting a GetMetrics snapshot
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.GetMetrics()

	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(parsesDesc, m.ParsesSubmitted, "submitted")
	counter(parsesDesc, m.ParsesCompleted, "completed")
	counter(parsesDesc, m.ParsesSuperseded, "superseded")
	counter(parsesDesc, m.ParsesFailed, "failed")
	counter(updatesDesc, m.UpdatesApplied, "applied")
	counter(updatesDesc, m.UpdatesIdentical, "identical")
	counter(blocksDesc, m.BlocksRendered, "rendered")
	counter(blocksDesc, m.BlocksReused, "reused")
	counter(renderErrorsDesc, m.RenderErrors)
	counter(framesDesc, m.FramesSent)

	ch <- prometheus.MustNewConstMetric(clientsDesc, prometheus.GaugeValue, float64(m.ActiveClients))
	ch <- prometheus.MustNewConstMetric(reuseDesc, prometheus.GaugeValue, c.ReuseRate())
}

// Registry returns a registry exporting c and the Go runtime collectors
func (c *Collector) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c, collectors.NewGoCollector())
	return reg
}
