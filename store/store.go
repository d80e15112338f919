// Package store owns model collection persistence: loading a persisted
// model file into live search indexes, saving a collection back out, and
// releasing collection resources.
//
// Load is strongly exception safe: either the whole collection comes up or
// every partially built index is closed and nothing is exposed.
package store

import (
	"fmt"

	"github.com/hupe1980/trajgo/kdtree"
	"github.com/hupe1980/trajgo/model"
	"github.com/hupe1980/trajgo/modelfile"
)

// Options configures how a Store rebuilds search indexes on load and how it
// encodes collections on save.
type Options struct {
	// Epsilon is the approximation error bound applied to every rebuilt
	// index. 0 means exact search.
	Epsilon float64

	// BucketSize is the kd-tree leaf capacity.
	BucketSize int

	// Compression selects the model file record encoding on Save.
	Compression modelfile.Compression
}

// DefaultOptions contains the default Store configuration.
var DefaultOptions = Options{
	Epsilon:     0,
	BucketSize:  kdtree.DefaultOptions.BucketSize,
	Compression: modelfile.CompressionNone,
}

// Store loads and saves model collections.
type Store struct {
	opts Options
}

// New creates a new Store.
func New(optFns ...func(o *Options)) *Store {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{opts: opts}
}

// Load reads the model file at path and rebuilds one search index per
// persisted model. On any failure the prior state of the caller is left
// untouched: no partially built collection escapes.
func (s *Store) Load(path string) (*model.Collection, error) {
	snap, err := modelfile.Load(path)
	if err != nil {
		return nil, err
	}

	c, err := s.Collection(snap)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

// Collection rebuilds a live collection from a snapshot.
func (s *Store) Collection(snap *modelfile.Snapshot) (*model.Collection, error) {
	models := make([]*model.Model, 0, len(snap.Models))

	closeAll := func() {
		for _, m := range models {
			_ = m.Index.Close()
		}
	}

	for _, rec := range snap.Models {
		tree, err := kdtree.New(func(o *kdtree.Options) {
			o.Dimension = snap.Dimension
			o.Epsilon = s.opts.Epsilon
			o.BucketSize = s.opts.BucketSize
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("model %q: %w", rec.Name, err)
		}
		if err := tree.Build(rec.Points); err != nil {
			_ = tree.Close()
			closeAll()
			return nil, fmt.Errorf("model %q: %w", rec.Name, err)
		}

		models = append(models, &model.Model{
			Name:       rec.Name,
			Dim:        snap.Dimension,
			WindowSize: snap.WindowSize,
			Centroid:   rec.Centroid,
			Index:      tree,
		})
	}

	c, err := model.NewCollection(models)
	if err != nil {
		closeAll()
		return nil, err
	}
	return c, nil
}

// Save persists a collection to path.
func (s *Store) Save(path string, c *model.Collection) error {
	snap, err := Snapshot(c)
	if err != nil {
		return err
	}
	return modelfile.Save(path, snap, s.opts.Compression)
}

// Snapshot extracts the serializable form of a live collection.
func Snapshot(c *model.Collection) (*modelfile.Snapshot, error) {
	if c.Closed() {
		return nil, fmt.Errorf("store: collection is closed")
	}

	snap := &modelfile.Snapshot{
		Dimension:  c.Dim(),
		WindowSize: c.WindowSize(),
		Models:     make([]modelfile.ModelRecord, 0, c.NumModels()),
	}

	for _, m := range c.Models() {
		points := make([][]float32, m.Index.Len())
		for i := range points {
			points[i] = m.Index.Point(i)
		}
		snap.Models = append(snap.Models, modelfile.ModelRecord{
			Name:     m.Name,
			Centroid: m.Centroid,
			Points:   points,
		})
	}
	return snap, nil
}

// Unload releases all index resources owned by the collection. Unloading
// twice is a no-op; the collection reports zero models afterwards.
func (s *Store) Unload(c *model.Collection) error {
	return c.Close()
}
