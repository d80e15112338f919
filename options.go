package trajgo

import (
	"log/slog"

	"github.com/hupe1980/trajgo/modelfile"
	"github.com/hupe1980/trajgo/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	epsilon          float64
	bucketSize       int
	temperature      float64
	topK             int
	compression      modelfile.Compression
	resourceConfig   resource.Config
}

// Option configures engine constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. compression-specific constructor variants).
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := trajgo.NewJSONLogger(slog.LevelInfo)
//	eng, _ := trajgo.New(trajgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &trajgo.BasicMetricsCollector{}
//	eng, _ := trajgo.New(trajgo.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Classifications: %d, Avg latency: %dns\n", stats.ClassifyCount, stats.ClassifyAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithEpsilon configures the approximation error bound for nearest-neighbor
// queries. 0 means exact search; eps > 0 allows neighbors up to a factor of
// (1+eps) farther than the true nearest in exchange for faster queries.
func WithEpsilon(eps float64) Option {
	return func(o *options) {
		o.epsilon = eps
	}
}

// WithBucketSize configures the leaf size of the spatial indexes built and
// loaded by the engine. 0 keeps the default.
func WithBucketSize(size int) Option {
	return func(o *options) {
		o.bucketSize = size
	}
}

// WithTemperature configures the softmax temperature tau used when turning
// neighbor distances into probabilities. Must be > 0; lower values sharpen
// the distribution.
func WithTemperature(tau float64) Option {
	return func(o *options) {
		o.temperature = tau
	}
}

// WithTopK configures the number of neighbors averaged per projected sample
// during classification. Must be >= 1.
func WithTopK(k int) Option {
	return func(o *options) {
		o.topK = k
	}
}

// WithCompression configures the model file encoding used when persisting
// built collections.
func WithCompression(c modelfile.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceConfig configures build concurrency and streaming IO limits.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		temperature:      1,
		topK:             1,
		compression:      modelfile.CompressionNone,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
