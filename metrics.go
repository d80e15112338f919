package trajgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    loadCounter       prometheus.Counter
//	    classifyHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordLoad(duration time.Duration, err error) {
//	    p.loadCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordLoad is called after each model load operation.
	// duration is the total time taken, err is nil if successful.
	RecordLoad(duration time.Duration, err error)

	// RecordBuild is called after each model build operation.
	// models is the number of models built, err is nil if successful.
	RecordBuild(models int, duration time.Duration, err error)

	// RecordClassify is called after each single-window classification.
	RecordClassify(duration time.Duration, err error)

	// RecordFilePass is called after each trajectory-file pass.
	// steps is the number of decisions written before the pass ended.
	RecordFilePass(steps int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, error)          {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordClassify(time.Duration, error)      {}
func (NoopMetricsCollector) RecordFilePass(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	BuildCount         atomic.Int64
	BuildErrors        atomic.Int64
	BuildModels        atomic.Int64
	ClassifyCount      atomic.Int64
	ClassifyErrors     atomic.Int64
	ClassifyTotalNanos atomic.Int64
	FilePassCount      atomic.Int64
	FilePassErrors     atomic.Int64
	FilePassSteps      atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(models int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildModels.Add(int64(models))
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordClassify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClassify(duration time.Duration, err error) {
	b.ClassifyCount.Add(1)
	b.ClassifyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ClassifyErrors.Add(1)
	}
}

// RecordFilePass implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilePass(steps int, duration time.Duration, err error) {
	b.FilePassCount.Add(1)
	b.FilePassSteps.Add(int64(steps))
	if err != nil {
		b.FilePassErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildModels:      b.BuildModels.Load(),
		ClassifyCount:    b.ClassifyCount.Load(),
		ClassifyErrors:   b.ClassifyErrors.Load(),
		ClassifyAvgNanos: b.getAvgClassifyNanos(),
		FilePassCount:    b.FilePassCount.Load(),
		FilePassErrors:   b.FilePassErrors.Load(),
		FilePassSteps:    b.FilePassSteps.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgClassifyNanos() int64 {
	count := b.ClassifyCount.Load()
	if count == 0 {
		return 0
	}
	return b.ClassifyTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount        int64
	LoadErrors       int64
	BuildCount       int64
	BuildErrors      int64
	BuildModels      int64
	ClassifyCount    int64
	ClassifyErrors   int64
	ClassifyAvgNanos int64
	FilePassCount    int64
	FilePassErrors   int64
	FilePassSteps    int64
}
