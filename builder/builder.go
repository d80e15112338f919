// Package builder turns raw labeled trajectory samples into a persisted
// model collection: it groups feature vectors by label, sub-samples each
// group deterministically, and constructs one search index per label.
package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/trajgo/internal/math32"
	"github.com/hupe1980/trajgo/kdtree"
	"github.com/hupe1980/trajgo/model"
	"github.com/hupe1980/trajgo/modelfile"
	"github.com/hupe1980/trajgo/resource"
	"github.com/hupe1980/trajgo/store"
)

// ErrDimensionMismatch indicates a training record whose vector length does
// not match the declared dimensionality.
type ErrDimensionMismatch struct {
	Record   int // 1-based record number in the input
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("record %d: dimension mismatch: expected %d components, got %d", e.Record, e.Expected, e.Actual)
}

// Config controls one build run.
type Config struct {
	// Dim is the declared feature vector dimensionality. Required.
	Dim int

	// MinPoints is the minimum group size for a label to produce a model.
	// Smaller groups are skipped with a warning, not a failure.
	MinPoints int

	// MaxPoints caps the reference points per model. Larger groups are
	// deterministically stride-sampled down, never randomly, so builds
	// are reproducible.
	MaxPoints int

	// WindowSize is the sample window length recorded for the collection.
	// Defaults to 5.
	WindowSize int

	// Epsilon is the approximation error bound baked into each index.
	Epsilon float64

	// Compression selects the model file encoding when persisting.
	Compression modelfile.Compression

	// OutputPath is where the built collection is persisted.
	// Empty means build in memory only.
	OutputPath string
}

// ModelReport describes one built model.
type ModelReport struct {
	Name        string
	TotalPoints int
	KeptPoints  int

	// Retained holds the 1-based input record numbers whose vectors ended
	// up in the model after sub-sampling.
	Retained *roaring.Bitmap
}

// SkippedLabel describes a label left out of the collection.
type SkippedLabel struct {
	Label  string
	Points int
}

// Report summarizes a build run.
type Report struct {
	Records int
	Models  []ModelReport
	Skipped []SkippedLabel
}

// Builder constructs model collections from labeled training data.
type Builder struct {
	logger     *slog.Logger
	controller *resource.Controller
	store      *store.Store
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		b.logger = logger
	}
}

// WithController sets the resource controller bounding concurrent
// per-model index builds.
func WithController(c *resource.Controller) Option {
	return func(b *Builder) {
		b.controller = c
	}
}

// New creates a new Builder.
func New(optFns ...Option) *Builder {
	b := &Builder{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(b)
	}
	if b.controller == nil {
		b.controller = resource.NewController(resource.Config{})
	}
	return b
}

// group is one label's training points plus their input record numbers.
type group struct {
	label   string
	points  [][]float32
	records []uint32
}

// Build reads labeled feature vectors from inputPath, constructs one model
// per qualifying label, persists the collection when cfg.OutputPath is set,
// and returns the live collection plus a build report. Label
// first-appearance order defines the model ordinals.
func (b *Builder) Build(ctx context.Context, inputPath string, cfg Config) (*model.Collection, *Report, error) {
	if cfg.Dim <= 0 {
		return nil, nil, fmt.Errorf("builder: invalid dimension: %d", cfg.Dim)
	}
	if cfg.MaxPoints > 0 && cfg.MinPoints > cfg.MaxPoints {
		return nil, nil, fmt.Errorf("builder: min points %d exceeds max points %d", cfg.MinPoints, cfg.MaxPoints)
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 5
	}

	samples, err := readLabeled(inputPath, cfg.Dim)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	groups := groupByLabel(samples)
	report := &Report{Records: len(samples)}

	var kept []*group
	for _, g := range groups {
		if len(g.points) < cfg.MinPoints {
			b.logger.Warn("skipping label with too few points",
				"label", g.label,
				"points", len(g.points),
				"min_points", cfg.MinPoints,
			)
			report.Skipped = append(report.Skipped, SkippedLabel{Label: g.label, Points: len(g.points)})
			continue
		}
		kept = append(kept, g)
	}

	models := make([]*model.Model, len(kept))
	reports := make([]ModelReport, len(kept))

	eg, egCtx := errgroup.WithContext(ctx)
	for ordinal, g := range kept {
		eg.Go(func() error {
			if err := b.controller.AcquireBuild(egCtx); err != nil {
				return err
			}
			defer b.controller.ReleaseBuild()

			m, rep, err := b.buildModel(g, cfg)
			if err != nil {
				return err
			}
			models[ordinal] = m
			reports[ordinal] = rep
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		for _, m := range models {
			if m != nil {
				_ = m.Index.Close()
			}
		}
		return nil, nil, err
	}
	report.Models = reports

	c, err := model.NewCollection(models)
	if err != nil {
		for _, m := range models {
			_ = m.Index.Close()
		}
		return nil, nil, err
	}

	if cfg.OutputPath != "" {
		st := store.New(func(o *store.Options) {
			o.Epsilon = cfg.Epsilon
			o.Compression = cfg.Compression
		})
		if err := st.Save(cfg.OutputPath, c); err != nil {
			_ = c.Close()
			return nil, nil, err
		}
	}

	b.logger.Info("build completed",
		"records", report.Records,
		"models", len(report.Models),
		"skipped", len(report.Skipped),
	)

	return c, report, nil
}

func (b *Builder) buildModel(g *group, cfg Config) (*model.Model, ModelReport, error) {
	points, records := subsample(g.points, g.records, cfg.MaxPoints)
	c := centroid(points, cfg.Dim)

	// The index holds centroid-centered points; the classifier projects
	// queries into the same centered space. This keeps coordinates small in
	// float32 no matter where the label's samples sit in sensor space.
	centered := make([][]float32, len(points))
	for i, p := range points {
		cp := make([]float32, cfg.Dim)
		math32.SubInto(cp, p, c)
		centered[i] = cp
	}

	tree, err := kdtree.New(func(o *kdtree.Options) {
		o.Dimension = cfg.Dim
		o.Epsilon = cfg.Epsilon
	})
	if err != nil {
		return nil, ModelReport{}, fmt.Errorf("label %q: %w", g.label, err)
	}
	if err := tree.Build(centered); err != nil {
		_ = tree.Close()
		return nil, ModelReport{}, fmt.Errorf("label %q: %w", g.label, err)
	}

	retained := roaring.New()
	retained.AddMany(records)

	b.logger.Debug("built model index",
		"label", g.label,
		"total_points", len(g.points),
		"kept_points", len(points),
	)

	return &model.Model{
			Name:       g.label,
			Dim:        cfg.Dim,
			WindowSize: cfg.WindowSize,
			Centroid:   c,
			Index:      tree,
		}, ModelReport{
			Name:        g.label,
			TotalPoints: len(g.points),
			KeptPoints:  len(points),
			Retained:    retained,
		}, nil
}

// groupByLabel preserves first-appearance order, which defines ordinals.
func groupByLabel(samples []labeledSample) []*group {
	byLabel := make(map[string]*group)
	var ordered []*group

	for _, s := range samples {
		g, ok := byLabel[s.label]
		if !ok {
			g = &group{label: s.label}
			byLabel[s.label] = g
			ordered = append(ordered, g)
		}
		g.points = append(g.points, s.vector)
		g.records = append(g.records, uint32(s.record))
	}
	return ordered
}

// subsample reduces a group to at most maxPoints by a fixed stride, keeping
// the selection deterministic across runs. maxPoints <= 0 keeps everything.
func subsample(points [][]float32, records []uint32, maxPoints int) ([][]float32, []uint32) {
	n := len(points)
	if maxPoints <= 0 || n <= maxPoints {
		return points, records
	}

	outPoints := make([][]float32, maxPoints)
	outRecords := make([]uint32, maxPoints)
	for i := range maxPoints {
		j := i * n / maxPoints
		outPoints[i] = points[j]
		outRecords[i] = records[j]
	}
	return outPoints, outRecords
}

func centroid(points [][]float32, dim int) []float32 {
	c := make([]float32, dim)
	if len(points) == 0 {
		return c
	}
	for _, p := range points {
		for i, v := range p {
			c[i] += v
		}
	}
	math32.ScaleInPlace(c, 1/float32(len(points)))
	return c
}
