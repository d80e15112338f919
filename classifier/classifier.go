// Package classifier scores live sample windows against a model collection.
//
// For every model the raw sub-window is projected into that model's feature
// space, each projected sample is matched pointwise against the model's
// spatial index, and the aggregated neighbor distances are converted into a
// probability distribution over models.
package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/trajgo/internal/math32"
	"github.com/hupe1980/trajgo/model"
	"github.com/hupe1980/trajgo/resource"
)

var (
	// ErrNotReady is returned when classification is attempted without a
	// loaded collection.
	ErrNotReady = errors.New("no model collection loaded")

	// ErrPassInProgress is returned when a trajectory-file pass is started
	// while another one is still running on the same classifier.
	ErrPassInProgress = errors.New("trajectory file pass already in progress")
)

// ErrInvalidWindow indicates a sample window that cannot cover the
// requested classification range.
type ErrInvalidWindow struct {
	WindowLen  int
	StartIndex int
	Steps      int
}

func (e *ErrInvalidWindow) Error() string {
	return fmt.Sprintf("invalid window: %d samples cannot cover start %d + %d steps", e.WindowLen, e.StartIndex, e.Steps)
}

// ScoreConfig controls the distance-to-probability conversion.
type ScoreConfig struct {
	// Temperature is the softmax temperature tau: scores are
	// exp(-distance/tau). Must be > 0. Defaults to 1.
	Temperature float64

	// TopK is the number of neighbors averaged per projected sample.
	// Must be >= 1. Defaults to 1.
	TopK int
}

// DefaultScoreConfig contains the default scoring configuration.
var DefaultScoreConfig = ScoreConfig{
	Temperature: 1,
	TopK:        1,
}

// Classifier scores sample windows against one model collection. It is
// synchronous and holds no background work; a single classifier must not be
// shared with concurrent load/unload of its collection (callers serialize
// collection replacement).
type Classifier struct {
	collection *model.Collection
	cfg        ScoreConfig
	controller *resource.Controller
	logger     *slog.Logger
	inPass     atomic.Bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithScoreConfig overrides the scoring configuration.
func WithScoreConfig(cfg ScoreConfig) Option {
	return func(cl *Classifier) {
		cl.cfg = cfg
	}
}

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Classifier) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		cl.logger = logger
	}
}

// WithController sets the resource controller throttling file-pass IO.
func WithController(c *resource.Controller) Option {
	return func(cl *Classifier) {
		cl.controller = c
	}
}

// New creates a classifier bound to the given collection. The collection
// may be nil or empty; classification then yields the documented
// empty-state results.
func New(c *model.Collection, optFns ...Option) (*Classifier, error) {
	cl := &Classifier{
		collection: c,
		cfg:        DefaultScoreConfig,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(cl)
	}

	if cl.cfg.Temperature <= 0 {
		return nil, fmt.Errorf("classifier: invalid temperature: %g", cl.cfg.Temperature)
	}
	if cl.cfg.TopK < 1 {
		return nil, fmt.Errorf("classifier: invalid top-k: %d", cl.cfg.TopK)
	}
	return cl, nil
}

// Collection returns the bound collection (may be nil).
func (cl *Classifier) Collection() *model.Collection { return cl.collection }

// MatchSteps returns the number of window advances covered by one
// classification: a full window projects to MatchSteps+1 feature vectors.
func (cl *Classifier) MatchSteps() int {
	ws := cl.collection.WindowSize()
	if ws == 0 {
		return 0
	}
	return ws - 1
}

// ClassifySample projects window[startIndex .. startIndex+MatchSteps] into
// every model's feature space, queries each model's index, and returns the
// per-model probability vector in ordinal order.
//
// The supplied window is read-only: samples are copied before projection,
// so a caller may keep appending new samples to its own live buffer while
// a classification call works on an older snapshot.
//
// If no model holds any reference points the result is all zeros; otherwise
// the entries sum to 1 within floating-point tolerance.
func (cl *Classifier) ClassifySample(window [][]float32, startIndex int) ([]float32, error) {
	c := cl.collection
	numModels := c.NumModels()
	if numModels == 0 {
		return []float32{}, nil
	}

	dim := c.Dim()
	steps := cl.MatchSteps() + 1
	if startIndex < 0 || startIndex+steps > len(window) {
		return nil, &ErrInvalidWindow{WindowLen: len(window), StartIndex: startIndex, Steps: steps}
	}
	for i := startIndex; i < startIndex+steps; i++ {
		if len(window[i]) != dim {
			return nil, fmt.Errorf("classifier: sample %d has %d components, want %d", i, len(window[i]), dim)
		}
	}

	// Snapshot the sub-window. One backing array scoped to this call;
	// released when the call ends.
	proj := newProjection(window[startIndex:startIndex+steps], dim)

	dists := make([]float64, numModels)
	active := make([]bool, numModels)

	query := make([]float32, dim)
	for ordinal, m := range c.Models() {
		if m.Index.Len() == 0 {
			continue
		}

		total := 0.0
		matched := 0
		for step := range steps {
			proj.into(query, step, m.Centroid)

			neighbors, err := m.Index.QueryNearest(query, cl.cfg.TopK)
			if err != nil {
				return nil, fmt.Errorf("model %q: %w", m.Name, err)
			}
			if len(neighbors) == 0 {
				continue
			}

			sum := 0.0
			for _, nb := range neighbors {
				sum += float64(nb.Distance)
			}
			total += sum / float64(len(neighbors))
			matched++
		}
		if matched == 0 {
			continue
		}

		dists[ordinal] = total / float64(matched)
		active[ordinal] = true
	}

	return probabilities(dists, active, cl.cfg.Temperature), nil
}

// projection is the per-call window snapshot. Samples are copied into one
// backing array so the caller's window stays untouched; per-model queries
// are derived from it on demand.
type projection struct {
	raw []float32
	dim int
}

func newProjection(sub [][]float32, dim int) *projection {
	p := &projection{
		raw: make([]float32, len(sub)*dim),
		dim: dim,
	}
	for step, sample := range sub {
		copy(p.raw[step*dim:(step+1)*dim], sample)
	}
	return p
}

// into writes the sample for step projected into a model's feature space.
// Indexes hold centroid-centered reference points, so the query is the raw
// sample minus the model centroid. Centering keeps the float32 coordinates
// small regardless of where the trajectory runs in sensor space.
func (p *projection) into(dst []float32, step int, centroid []float32) {
	math32.SubInto(dst, p.raw[step*p.dim:(step+1)*p.dim], centroid)
}
