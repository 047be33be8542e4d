package diskidx

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
//	    insertCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordInsert(duration time.Duration, err error) {
//	    p.insertCounter.Inc()
//	}
type MetricsCollector interface {
	// RecordInsert is called after each insert.
	RecordInsert(duration time.Duration, err error)

	// RecordSearch is called after each point search with the number of
	// positions found.
	RecordSearch(results int, duration time.Duration, err error)

	// RecordRangeSearch is called after each range search with the number of
	// entries found.
	RecordRangeSearch(results int, duration time.Duration, err error)

	// RecordDelete is called after each delete.
	RecordDelete(removed bool, duration time.Duration, err error)

	// RecordBuild is called after each bulk build.
	RecordBuild(inserted, skipped int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)           {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordRangeSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(bool, time.Duration, error)     {}
func (NoopMetricsCollector) RecordBuild(int, int, time.Duration)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchResults    atomic.Int64
	SearchTotalNanos atomic.Int64
	RangeCount       atomic.Int64
	RangeErrors      atomic.Int64
	RangeResults     atomic.Int64
	RangeTotalNanos  atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	DeleteMisses     atomic.Int64
	BuildCount       atomic.Int64
	BuildInserted    atomic.Int64
	BuildSkipped     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchResults.Add(int64(results))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRangeSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeSearch(results int, duration time.Duration, err error) {
	b.RangeCount.Add(1)
	b.RangeTotalNanos.Add(duration.Nanoseconds())
	b.RangeResults.Add(int64(results))
	if err != nil {
		b.RangeErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(removed bool, duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	switch {
	case err != nil:
		b.DeleteErrors.Add(1)
	case !removed:
		b.DeleteMisses.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(inserted, skipped int, duration time.Duration) {
	b.BuildCount.Add(1)
	b.BuildInserted.Add(int64(inserted))
	b.BuildSkipped.Add(int64(skipped))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchResults:  b.SearchResults.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		RangeCount:     b.RangeCount.Load(),
		RangeErrors:    b.RangeErrors.Load(),
		RangeResults:   b.RangeResults.Load(),
		RangeAvgNanos:  avg(b.RangeTotalNanos.Load(), b.RangeCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		DeleteMisses:   b.DeleteMisses.Load(),
		BuildCount:     b.BuildCount.Load(),
		BuildInserted:  b.BuildInserted.Load(),
		BuildSkipped:   b.BuildSkipped.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	SearchCount    int64
	SearchErrors   int64
	SearchResults  int64
	SearchAvgNanos int64
	RangeCount     int64
	RangeErrors    int64
	RangeResults   int64
	RangeAvgNanos  int64
	DeleteCount    int64
	DeleteErrors   int64
	DeleteMisses   int64
	BuildCount     int64
	BuildInserted  int64
	BuildSkipped   int64
}
