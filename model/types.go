package model

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/trajgo/kdtree"
)

// Model is one recognizable trajectory class: a labeled reference set of
// feature vectors plus its search index.
//
// Invariant: every reference point held by Index has length Dim.
type Model struct {
	// Name is the human-readable label the model was trained under.
	Name string

	// Dim is the feature vector dimensionality.
	Dim int

	// WindowSize is the sample window length the model was trained for.
	WindowSize int

	// Centroid is the mean of the raw reference points. Index holds the
	// points centered on it; the classifier subtracts it from raw samples
	// to project them into the model's feature space.
	Centroid []float32

	// Index is the model's spatial search structure.
	Index *kdtree.Tree
}

// Collection is an ordered set of models. Insertion order defines the
// ordinal used by all classification APIs. The collection owns its models
// exclusively; Close releases every index exactly once.
type Collection struct {
	models     []*Model
	dim        int
	windowSize int
	closed     atomic.Bool
}

// NewCollection assembles a collection from the given models. All models
// must agree on dimensionality and window size; this is a design invariant
// of the engine, not merely a convention.
func NewCollection(models []*Model) (*Collection, error) {
	if len(models) == 0 {
		return &Collection{}, nil
	}

	dim := models[0].Dim
	windowSize := models[0].WindowSize
	for _, m := range models {
		if m.Dim != dim {
			return nil, fmt.Errorf("model %q: dimension %d differs from collection dimension %d", m.Name, m.Dim, dim)
		}
		if m.WindowSize != windowSize {
			return nil, fmt.Errorf("model %q: window size %d differs from collection window size %d", m.Name, m.WindowSize, windowSize)
		}
	}

	return &Collection{
		models:     models,
		dim:        dim,
		windowSize: windowSize,
	}, nil
}

// NumModels returns the number of models, or 0 after Close.
func (c *Collection) NumModels() int {
	if c == nil || c.closed.Load() {
		return 0
	}
	return len(c.models)
}

// Dim returns the shared feature dimensionality, or 0 for an empty or
// closed collection.
func (c *Collection) Dim() int {
	if c == nil || c.closed.Load() {
		return 0
	}
	return c.dim
}

// WindowSize returns the shared sample window length, or 0 for an empty or
// closed collection.
func (c *Collection) WindowSize() int {
	if c == nil || c.closed.Load() {
		return 0
	}
	return c.windowSize
}

// Model returns the model with the given ordinal.
func (c *Collection) Model(i int) *Model {
	return c.models[i]
}

// Models returns the underlying model slice in ordinal order.
// The slice must be treated as read-only.
func (c *Collection) Models() []*Model {
	if c == nil || c.closed.Load() {
		return nil
	}
	return c.models
}

// Names returns the model names joined by sep, in ordinal order.
// A closed or empty collection yields "".
func (c *Collection) Names(sep string) string {
	if c == nil || c.closed.Load() {
		return ""
	}
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name
	}
	return strings.Join(names, sep)
}

// Closed reports whether the collection has been closed.
func (c *Collection) Closed() bool {
	return c != nil && c.closed.Load()
}

// Close releases every model index exactly once. It is idempotent; a closed
// collection reports zero models and empty names rather than failing.
func (c *Collection) Close() error {
	if c == nil || c.closed.Swap(true) {
		return nil
	}
	var firstErr error
	for _, m := range c.models {
		if m.Index == nil {
			continue
		}
		if err := m.Index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
