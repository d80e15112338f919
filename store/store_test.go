package store

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trajgo/modelfile"
	"github.com/hupe1980/trajgo/testutil"
)

func testSnapshot(t *testing.T) *modelfile.Snapshot {
	t.Helper()
	rng := testutil.NewRNG(9)
	return &modelfile.Snapshot{
		Dimension:  2,
		WindowSize: 5,
		Models: []modelfile.ModelRecord{
			{Name: "stationary", Centroid: []float32{0, 0}, Points: rng.VectorsAround([]float32{0, 0}, 20, 0.1)},
			{Name: "walking", Centroid: []float32{10, 0}, Points: rng.VectorsAround([]float32{10, 0}, 20, 0.1)},
		},
	}
}

// pointSet normalizes points for order-independent comparison.
func pointSet(points [][]float32) [][]float32 {
	out := make([][]float32, len(points))
	copy(out, points)
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

func TestLoadSaveRoundTrip(t *testing.T) {
	s := New()
	path := filepath.Join(t.TempDir(), "models.trj")

	want := testSnapshot(t)
	c, err := s.Collection(want)
	require.NoError(t, err)
	defer s.Unload(c)

	require.NoError(t, s.Save(path, c))

	loaded, err := s.Load(path)
	require.NoError(t, err)
	defer s.Unload(loaded)

	assert.Equal(t, c.NumModels(), loaded.NumModels())
	assert.Equal(t, c.WindowSize(), loaded.WindowSize())
	assert.Equal(t, "stationary,walking", loaded.Names(","))

	got, err := Snapshot(loaded)
	require.NoError(t, err)
	for i := range want.Models {
		assert.Equal(t, pointSet(want.Models[i].Points), pointSet(got.Models[i].Points))
	}
}

func TestLoadFailures(t *testing.T) {
	s := New()

	t.Run("MissingFile", func(t *testing.T) {
		_, err := s.Load(filepath.Join(t.TempDir(), "nope.trj"))
		assert.Error(t, err)
	})

	t.Run("CorruptSnapshot", func(t *testing.T) {
		snap := testSnapshot(t)
		snap.Models[1].Points[0] = []float32{1} // wrong dimensionality
		_, err := s.Collection(snap)
		assert.Error(t, err)
	})
}

func TestUnloadIdempotent(t *testing.T) {
	s := New()
	c, err := s.Collection(testSnapshot(t))
	require.NoError(t, err)

	require.NoError(t, s.Unload(c))
	require.NoError(t, s.Unload(c))
	assert.Zero(t, c.NumModels())
}

func TestSaveClosedCollection(t *testing.T) {
	s := New()
	c, err := s.Collection(testSnapshot(t))
	require.NoError(t, err)
	require.NoError(t, s.Unload(c))

	err = s.Save(filepath.Join(t.TempDir(), "models.trj"), c)
	assert.Error(t, err)
}
