package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trajgo/kdtree"
)

func testModel(t *testing.T, name string, dim, windowSize int) *Model {
	t.Helper()
	tree, err := kdtree.New(func(o *kdtree.Options) { o.Dimension = dim })
	require.NoError(t, err)
	require.NoError(t, tree.Build([][]float32{make([]float32, dim)}))
	return &Model{
		Name:       name,
		Dim:        dim,
		WindowSize: windowSize,
		Centroid:   make([]float32, dim),
		Index:      tree,
	}
}

func TestNewCollection(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		c, err := NewCollection(nil)
		require.NoError(t, err)
		assert.Zero(t, c.NumModels())
		assert.Zero(t, c.WindowSize())
		assert.Empty(t, c.Names(","))
	})

	t.Run("UniformInvariants", func(t *testing.T) {
		_, err := NewCollection([]*Model{
			testModel(t, "walk", 2, 5),
			testModel(t, "run", 3, 5),
		})
		assert.Error(t, err)

		_, err = NewCollection([]*Model{
			testModel(t, "walk", 2, 5),
			testModel(t, "run", 2, 6),
		})
		assert.Error(t, err)
	})

	t.Run("OrdinalOrder", func(t *testing.T) {
		c, err := NewCollection([]*Model{
			testModel(t, "walk", 2, 5),
			testModel(t, "run", 2, 5),
		})
		require.NoError(t, err)

		assert.Equal(t, 2, c.NumModels())
		assert.Equal(t, 5, c.WindowSize())
		assert.Equal(t, "walk,run", c.Names(","))
		assert.Equal(t, "walk", c.Model(0).Name)
	})
}

func TestCollectionClose(t *testing.T) {
	c, err := NewCollection([]*Model{testModel(t, "walk", 2, 5)})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close()) // idempotent

	assert.True(t, c.Closed())
	assert.Zero(t, c.NumModels())
	assert.Zero(t, c.WindowSize())
	assert.Empty(t, c.Names(","))
	assert.Nil(t, c.Models())
}
