// Package metrics exposes sequencer and process metrics to Prometheus.
package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// DefaultCollectInterval is how often process stats are sampled when
// no interval is configured.
const DefaultCollectInterval = 15 * time.Second

// Collector registers all blockfeed metrics on a private registry and
// implements sequencer.Observer so the sequencer can feed it directly.
//
// Observer callbacks only touch prometheus primitives, which are safe
// from the sequencer goroutine; the process-stat sampling loop runs
// separately.
type Collector struct {
	registry *prometheus.Registry
	logger   *logger.Logger
	interval time.Duration

	currentHeight    prometheus.Gauge
	watermark        prometheus.Gauge
	inFlight         prometheus.Gauge
	releasedTotal    prometheus.Counter
	ackedTotal       prometheus.Counter
	regressionsTotal prometheus.Counter

	cpuPercent prometheus.Gauge
	memoryRSS  prometheus.Gauge
	proc       *process.Process

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewCollector creates a collector with all metrics registered.
func NewCollector(interval time.Duration, log *logger.Logger) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   log,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,

		currentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockfeed_current_height",
			Help: "Height currently released to the consumer or about to be released",
		}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockfeed_watermark_height",
			Help: "Highest height the source currently reports as reachable",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockfeed_in_flight",
			Help: "1 while a released height awaits acknowledgment, else 0",
		}),
		releasedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockfeed_released_total",
			Help: "Total heights released to the consumer",
		}),
		ackedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockfeed_acked_total",
			Help: "Total heights acknowledged by the consumer",
		}),
		regressionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockfeed_watermark_regressions_total",
			Help: "Times the source reported a watermark lower than a previous report",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockfeed_process_cpu_percent",
			Help: "CPU usage of the blockfeed process",
		}),
		memoryRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockfeed_process_memory_rss_bytes",
			Help: "Resident memory of the blockfeed process",
		}),
	}

	c.registry.MustRegister(
		c.currentHeight,
		c.watermark,
		c.inFlight,
		c.releasedTotal,
		c.ackedTotal,
		c.regressionsTotal,
		c.cpuPercent,
		c.memoryRSS,
	)

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = proc
	} else {
		log.Warn("process stats unavailable", zap.Error(err))
	}

	return c
}

// Registry returns the private registry for the exporter to serve.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Start begins periodic process-stat sampling. Idempotent.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	c.wg.Add(1)
	go c.sampleLoop()
}

// Stop ends sampling and waits for the loop to exit.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Collector) sampleLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sampleProcess()
		}
	}
}

func (c *Collector) sampleProcess() {
	if c.proc == nil {
		return
	}

	if cpu, err := c.proc.CPUPercent(); err == nil {
		c.cpuPercent.Set(cpu)
	}
	if mem, err := c.proc.MemoryInfo(); err == nil && mem != nil {
		c.memoryRSS.Set(float64(mem.RSS))
	}
}

// WatermarkUpdated implements sequencer.Observer.
func (c *Collector) WatermarkUpdated(height int64) {
	c.watermark.Set(float64(height))
}

// WatermarkRegressed implements sequencer.Observer.
func (c *Collector) WatermarkRegressed(from, to int64) {
	c.regressionsTotal.Inc()
}

// HeightReleased implements sequencer.Observer.
func (c *Collector) HeightReleased(height int64) {
	c.currentHeight.Set(float64(height))
	c.inFlight.Set(1)
	c.releasedTotal.Inc()
}

// HeightAcked implements sequencer.Observer.
func (c *Collector) HeightAcked(height int64) {
	c.inFlight.Set(0)
	c.ackedTotal.Inc()
}
