package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "canota"
	subsystemOta     = "ota"
)

// TransferCollector tracks sender-side statistics of one firmware
// transfer and exposes them via Prometheus compatible collectors.
type TransferCollector struct {
	mu        sync.RWMutex
	namespace string
	registry  *prometheus.Registry

	startTime    time.Time
	bytesSent    uint64
	chunksSent   uint64
	chunkSamples uint64
	lastDrainMs  float64
	drainAvgMs   float64
}

// TransferSnapshot is a point-in-time view of the collected metrics.
type TransferSnapshot struct {
	Elapsed        time.Duration
	BytesSent      uint64
	ChunksSent     uint64
	ThroughputBps  float64
	ThroughputMbps float64
	LastDrainMs    float64
	AvgDrainMs     float64
}

// NewTransferCollector creates a collector and wires up prometheus
// collectors.
func NewTransferCollector(namespace string) *TransferCollector {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	tc := &TransferCollector{
		namespace: namespace,
		registry:  reg,
	}
	tc.registerMetrics()
	return tc
}

// Registry returns the prometheus registry managed by this collector.
func (c *TransferCollector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveChunk records one fully drained chunk: the payload bytes it
// carried and how long the drain wait took.
func (c *TransferCollector) ObserveChunk(bytes int, drain time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureStartTimeLocked()
	if bytes > 0 {
		c.bytesSent += uint64(bytes)
	}
	c.chunksSent++

	sample := float64(drain) / float64(time.Millisecond)
	if c.chunkSamples == 0 {
		c.drainAvgMs = sample
	} else {
		c.drainAvgMs = (c.drainAvgMs*float64(c.chunkSamples) + sample) / float64(c.chunkSamples+1)
	}
	c.lastDrainMs = sample
	c.chunkSamples++
}

// Snapshot creates a read-only view of the collected metrics.
func (c *TransferCollector) Snapshot() TransferSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildSnapshotLocked(time.Now())
}

func (c *TransferCollector) buildSnapshotLocked(now time.Time) TransferSnapshot {
	elapsed := time.Duration(0)
	if !c.startTime.IsZero() {
		elapsed = now.Sub(c.startTime)
	}

	throughput := rateFromBytes(c.bytesSent, elapsed)

	return TransferSnapshot{
		Elapsed:        elapsed,
		BytesSent:      c.bytesSent,
		ChunksSent:     c.chunksSent,
		ThroughputBps:  throughput,
		ThroughputMbps: throughput * 8 / 1e6,
		LastDrainMs:    c.lastDrainMs,
		AvgDrainMs:     c.drainAvgMs,
	}
}

func (c *TransferCollector) registerMetrics() {
	makeGauge := func(name, help string, valueFn func(TransferSnapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: subsystemOta,
			Name:      name,
			Help:      help,
		}, func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return valueFn(c.buildSnapshotLocked(time.Now()))
		})
	}

	makeCounter := func(name, help string, valueFn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: subsystemOta,
			Name:      name,
			Help:      help,
		}, valueFn)
	}

	c.registry.MustRegister(makeGauge(
		"throughput_bytes_per_second",
		"Payload throughput of the running transfer.",
		func(s TransferSnapshot) float64 { return s.ThroughputBps },
	))
	c.registry.MustRegister(makeGauge(
		"chunk_drain_milliseconds",
		"Drain wait of the most recent chunk.",
		func(s TransferSnapshot) float64 { return s.LastDrainMs },
	))
	c.registry.MustRegister(makeGauge(
		"chunk_drain_avg_milliseconds",
		"Average drain wait across all chunks of this transfer.",
		func(s TransferSnapshot) float64 { return s.AvgDrainMs },
	))

	c.registry.MustRegister(makeCounter(
		"bytes_sent_total",
		"Total payload bytes handed to the transport.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.bytesSent)
		},
	))
	c.registry.MustRegister(makeCounter(
		"chunks_sent_total",
		"Total chunks fully drained by the transport.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.chunksSent)
		},
	))
}

func (c *TransferCollector) ensureStartTimeLocked() {
	if c.startTime.IsZero() {
		c.startTime = time.Now()
	}
}

func rateFromBytes(bytes uint64, elapsed time.Duration) float64 {
	if bytes == 0 || elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}
