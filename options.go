package diskidx

import (
	"log/slog"

	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/internal/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	textWidth        int
	order            int
	blockFactor      int
	maxDepth         int
	disableOverflow  bool
	reuseSlots       bool
	sync             bool
	cache            cache.BlockCache
	cacheSize        int64
	fs               fs.FileSystem
	resource         *resource.Controller
}

// Option configures Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &diskidx.BasicMetricsCollector{}
//	idx, _ := diskidx.Open(path, diskidx.AVL, diskidx.Int, diskidx.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithTextWidth sets the byte width of Text keys. Zero selects 20.
func WithTextWidth(width int) Option {
	return func(o *options) {
		o.textWidth = width
	}
}

// WithOrder sets the B+Tree order, the maximum number of children of an
// internal node. An existing file keeps the order it was created with.
func WithOrder(order int) Option {
	return func(o *options) {
		o.order = order
	}
}

// WithBlockFactor sets the number of records per hash bucket. It must match
// the value an existing index was created with.
func WithBlockFactor(bf int) Option {
	return func(o *options) {
		o.blockFactor = bf
	}
}

// WithMaxDepth sets the local depth at which hash buckets stop splitting.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithOverflowChaining controls what a hash index does with a full bucket at
// the maximum depth: chain an overflow bucket (default) or fail with
// ErrDepthLimit.
func WithOverflowChaining(enabled bool) Option {
	return func(o *options) {
		o.disableOverflow = !enabled
	}
}

// WithReuseSlots lets an AVL index reuse the slots of deleted nodes.
func WithReuseSlots(enabled bool) Option {
	return func(o *options) {
		o.reuseSlots = enabled
	}
}

// WithSync fsyncs index files after every mutating call.
func WithSync(enabled bool) Option {
	return func(o *options) {
		o.sync = enabled
	}
}

// WithCache shares a record cache between indexes.
func WithCache(c BlockCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithCacheSize gives the index a private sharded LRU record cache of the
// given capacity in bytes. Ignored when WithCache is set.
func WithCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// WithFileSystem sets the file system holding the index files.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithResourceController charges cache memory against rc and bounds
// BuildAll concurrency.
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.resource = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
