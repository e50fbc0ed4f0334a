package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a snapshot of the process the engine runs in
type RuntimeStats struct {
	Goroutines    int64     `json:"goroutines"`
	HeapAllocMB   float64   `json:"heap_alloc_mb"`
	SystemMB      float64   `json:"system_mb"`
	GCCount       uint32    `json:"gc_count"`
	LastGCPauseMS float64   `json:"last_gc_pause_ms"`
	CPUCount      int       `json:"cpu_count"`
	Uptime        string    `json:"uptime"`
	Timestamp     time.Time `json:"timestamp"`
}

// RuntimeMetrics samples Go runtime statistics into otel gauges
type RuntimeMetrics struct {
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	sysMemory  metric.Int64Gauge
	gcPause    metric.Float64Histogram
	uptime     metric.Float64Gauge

	startTime time.Time
	interval  time.Duration

	mu     sync.Mutex
	lastGC uint32
	stopCh chan struct{}
	once   sync.Once
}

// NewRuntimeMetrics registers the runtime gauges on meter
func NewRuntimeMetrics(meter metric.Meter, interval time.Duration) (*RuntimeMetrics, error) {
	rm := &RuntimeMetrics{
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}

	var err error
	if rm.goroutines, err = meter.Int64Gauge(
		"runtime_goroutines",
		metric.WithDescription("Number of active goroutines"),
	); err != nil {
		return nil, fmt.Errorf("failed to create goroutine gauge: %w", err)
	}
	if rm.heapAlloc, err = meter.Int64Gauge(
		"runtime_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create heap gauge: %w", err)
	}
	if rm.sysMemory, err = meter.Int64Gauge(
		"runtime_system_memory_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create system memory gauge: %w", err)
	}
	if rm.gcPause, err = meter.Float64Histogram(
		"runtime_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create gc histogram: %w", err)
	}
	if rm.uptime, err = meter.Float64Gauge(
		"process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create uptime gauge: %w", err)
	}

	return rm, nil
}

// Collect reads the runtime statistics and records them
func (rm *RuntimeMetrics) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	lastPause := time.Duration(mem.PauseNs[(mem.NumGC+255)%256])
	stats := RuntimeStats{
		Goroutines:    int64(runtime.NumGoroutine()),
		HeapAllocMB:   float64(mem.HeapAlloc) / 1024 / 1024,
		SystemMB:      float64(mem.Sys) / 1024 / 1024,
		GCCount:       mem.NumGC,
		LastGCPauseMS: float64(lastPause) / float64(time.Millisecond),
		CPUCount:      runtime.NumCPU(),
		Uptime:        time.Since(rm.startTime).Round(time.Second).String(),
		Timestamp:     time.Now().UTC(),
	}

	rm.goroutines.Record(ctx, stats.Goroutines)
	rm.heapAlloc.Record(ctx, int64(mem.HeapAlloc))
	rm.sysMemory.Record(ctx, int64(mem.Sys))
	rm.uptime.Record(ctx, time.Since(rm.startTime).Seconds())

	rm.mu.Lock()
	if mem.NumGC != rm.lastGC {
		rm.gcPause.Record(ctx, lastPause.Seconds())
		rm.lastGC = mem.NumGC
	}
	rm.mu.Unlock()

	return stats
}

// Start samples periodically until ctx is done or Stop is called
func (rm *RuntimeMetrics) Start(ctx context.Context) {
	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	rm.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			rm.Collect(ctx)
		case <-rm.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends periodic sampling
func (rm *RuntimeMetrics) Stop() {
	rm.once.Do(func() { close(rm.stopCh) })
}
