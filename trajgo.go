// Package trajgo provides an embedded trajectory classification engine for Go.
//
// The engine matches sliding windows of feature-vector samples against a set
// of labeled models. Each model is a reference point cloud with an
// eps-approximate nearest-neighbor index over it; classification projects
// the live window into every model's feature space, scores the projected
// samples against the indexes, and returns a probability distribution over
// the model labels.
//
// # Quick Start
//
// Build a model collection from labeled training data:
//
//	eng, err := trajgo.New(
//	    trajgo.WithEpsilon(0.1),
//	    trajgo.WithLogLevel(slog.LevelInfo),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	report, err := eng.BuildModels(ctx, "train.txt", builder.Config{
//	    Dim:        3,
//	    MinPoints:  50,
//	    MaxPoints:  10000,
//	    OutputPath: "models.trj",
//	})
//
// Load it and classify live sample windows:
//
//	if err := eng.LoadModels("models.trj"); err != nil {
//	    panic(err)
//	}
//	probs, err := eng.ClassifySample(window, 0)
//
// Or classify a whole recorded trajectory in one call:
//
//	result, err := eng.ClassifyTrajectoryFile(ctx, "trajectory.txt", "decisions.txt", "models.trj")
//
// # Concurrency
//
// ClassifySample is safe to call from multiple goroutines against one loaded
// collection. LoadModels and UnloadModels swap the collection atomically, so
// concurrent classifications always see a consistent snapshot; the caller is
// responsible for not unloading while classifications it still cares about
// are in flight.
package trajgo

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/trajgo/builder"
	"github.com/hupe1980/trajgo/classifier"
	"github.com/hupe1980/trajgo/distance"
	"github.com/hupe1980/trajgo/model"
	"github.com/hupe1980/trajgo/resource"
	"github.com/hupe1980/trajgo/store"
)

// Engine is the top-level handle: it owns the currently loaded model
// collection and exposes build, load, and classification operations.
type Engine struct {
	opts       options
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
	store      *store.Store

	classifier atomic.Pointer[classifier.Classifier]
	closed     atomic.Bool
}

// New creates a new engine. The engine starts idle; load or build a model
// collection before classifying.
func New(optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)

	e := &Engine{
		opts:       o,
		logger:     o.logger,
		metrics:    o.metricsCollector,
		controller: resource.NewController(o.resourceConfig),
		store: store.New(func(so *store.Options) {
			so.Epsilon = o.epsilon
			so.Compression = o.compression
			if o.bucketSize > 0 {
				so.BucketSize = o.bucketSize
			}
		}),
	}

	// Validate the scoring configuration up front rather than on first use.
	if _, err := e.newClassifier(nil); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) newClassifier(c *model.Collection) (*classifier.Classifier, error) {
	return classifier.New(c,
		classifier.WithScoreConfig(classifier.ScoreConfig{
			Temperature: e.opts.temperature,
			TopK:        e.opts.topK,
		}),
		classifier.WithLogger(e.logger.Logger),
		classifier.WithController(e.controller),
	)
}

// Distance returns the Euclidean distance between two points of the given
// dimensionality. It is pure and needs no loaded models.
func Distance(dim int, p, q []float32) (float32, error) {
	if len(p) != dim || len(q) != dim {
		return 0, translateError(distance.ErrLengthMismatch)
	}
	return distance.Euclidean(p, q)
}

// LoadModels loads the model collection persisted at path and makes it the
// engine's active collection. A previously loaded collection is released
// after the swap. On failure the engine keeps its prior state.
func (e *Engine) LoadModels(path string) error {
	start := time.Now()

	if e.closed.Load() {
		return ErrClosed
	}

	c, err := e.store.Load(path)
	if err != nil {
		e.metrics.RecordLoad(time.Since(start), err)
		e.logger.LogLoad(context.Background(), path, 0, err)
		return err
	}

	cl, err := e.newClassifier(c)
	if err != nil {
		_ = c.Close()
		e.metrics.RecordLoad(time.Since(start), err)
		return err
	}

	if old := e.classifier.Swap(cl); old != nil {
		_ = old.Collection().Close()
	}

	e.metrics.RecordLoad(time.Since(start), nil)
	e.logger.LogLoad(context.Background(), path, c.NumModels(), nil)
	return nil
}

// UnloadModels releases the active model collection. Unloading an idle
// engine is a no-op.
func (e *Engine) UnloadModels() {
	old := e.classifier.Swap(nil)
	if old == nil {
		return
	}
	n := old.Collection().NumModels()
	_ = old.Collection().Close()
	e.logger.LogUnload(context.Background(), n)
}

// collection returns the active collection, or nil when idle. Collection
// accessors are nil-safe, so queries on an idle engine yield zero values.
func (e *Engine) collection() *model.Collection {
	if cl := e.classifier.Load(); cl != nil {
		return cl.Collection()
	}
	return nil
}

// NumModels returns the number of loaded models, or 0 when idle.
func (e *Engine) NumModels() int {
	return e.collection().NumModels()
}

// WindowSize returns the sample window length of the loaded collection, or
// 0 when idle.
func (e *Engine) WindowSize() int {
	return e.collection().WindowSize()
}

// ModelNames returns the loaded model names joined by commas in ordinal
// order, or "" when idle.
func (e *Engine) ModelNames() string {
	return e.collection().Names(",")
}

// ClassifySample classifies the window slice starting at startIndex and
// returns one probability per loaded model, in ordinal order. The window is
// treated as read-only.
func (e *Engine) ClassifySample(window [][]float32, startIndex int) ([]float32, error) {
	start := time.Now()

	cl := e.classifier.Load()
	if cl == nil {
		if e.closed.Load() {
			return nil, ErrClosed
		}
		return nil, ErrNotLoaded
	}

	probs, err := cl.ClassifySample(window, startIndex)
	err = translateError(err)
	e.metrics.RecordClassify(time.Since(start), err)
	e.logger.LogClassify(context.Background(), len(probs), err)
	return probs, err
}

// ClassifySampleInto classifies like ClassifySample but writes the
// probabilities into out, whose length must equal NumModels. The length is
// validated before any classification work runs.
func (e *Engine) ClassifySampleInto(window [][]float32, startIndex int, out []float32) error {
	cl := e.classifier.Load()
	if cl == nil {
		if e.closed.Load() {
			return ErrClosed
		}
		return ErrNotLoaded
	}
	if n := cl.Collection().NumModels(); len(out) != n {
		return fmt.Errorf("%w: output length %d does not match model count %d", ErrInvalidArgument, len(out), n)
	}

	probs, err := e.ClassifySample(window, startIndex)
	if err != nil {
		return err
	}
	copy(out, probs)
	return nil
}

// ClassifyTrajectoryFile loads the collection at modelsPath, runs a
// streaming classification pass over inputPath writing decisions to
// outputPath, and releases the collection again. The engine's active
// collection is untouched: a load failure leaves prior state intact and the
// pass itself runs on a private collection.
func (e *Engine) ClassifyTrajectoryFile(ctx context.Context, inputPath, outputPath, modelsPath string) (*classifier.FilePassResult, error) {
	start := time.Now()

	if e.closed.Load() {
		return nil, ErrClosed
	}

	c, err := e.store.Load(modelsPath)
	if err != nil {
		e.metrics.RecordFilePass(0, time.Since(start), err)
		e.logger.LogFilePass(ctx, inputPath, 0, err)
		return nil, err
	}
	defer c.Close()

	cl, err := e.newClassifier(c)
	if err != nil {
		e.metrics.RecordFilePass(0, time.Since(start), err)
		return nil, err
	}

	result, err := cl.ClassifyTrajectoryFile(ctx, inputPath, outputPath)
	steps := 0
	if result != nil {
		steps = result.Steps
	}
	e.metrics.RecordFilePass(steps, time.Since(start), err)
	e.logger.LogFilePass(ctx, inputPath, steps, err)
	return result, err
}

// BuildModels builds a model collection from the labeled training data at
// inputPath and returns the build report. When cfg.OutputPath is set the
// collection is persisted there; the engine's active collection is not
// changed, load the output explicitly to classify with it.
func (e *Engine) BuildModels(ctx context.Context, inputPath string, cfg builder.Config) (*builder.Report, error) {
	start := time.Now()

	if e.closed.Load() {
		return nil, ErrClosed
	}

	if cfg.Epsilon == 0 {
		cfg.Epsilon = e.opts.epsilon
	}
	if cfg.Compression == 0 {
		cfg.Compression = e.opts.compression
	}

	b := builder.New(
		builder.WithLogger(e.logger.Logger),
		builder.WithController(e.controller),
	)

	c, report, err := b.Build(ctx, inputPath, cfg)
	if err != nil {
		e.metrics.RecordBuild(0, time.Since(start), err)
		e.logger.LogBuild(ctx, inputPath, 0, 0, err)
		return nil, err
	}
	_ = c.Close()

	e.metrics.RecordBuild(len(report.Models), time.Since(start), nil)
	e.logger.LogBuild(ctx, inputPath, len(report.Models), len(report.Skipped), nil)
	return report, nil
}
