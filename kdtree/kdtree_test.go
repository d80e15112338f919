package kdtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trajgo/testutil"
)

func newTree(t *testing.T, dim int, optFns ...func(o *Options)) *Tree {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) { o.Dimension = dim }}, optFns...)
	tree, err := New(fns...)
	require.NoError(t, err)
	return tree
}

func TestNew(t *testing.T) {
	t.Run("RequiresDimension", func(t *testing.T) {
		_, err := New()
		assert.Error(t, err)
	})

	t.Run("RejectsNegativeEpsilon", func(t *testing.T) {
		_, err := New(func(o *Options) {
			o.Dimension = 2
			o.Epsilon = -0.5
		})
		assert.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	t.Run("DimensionMismatch", func(t *testing.T) {
		tree := newTree(t, 3)
		err := tree.Build([][]float32{{1, 2}})
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
	})

	t.Run("RejectsDoubleBuild", func(t *testing.T) {
		tree := newTree(t, 2)
		require.NoError(t, tree.Build(nil))
		assert.ErrorIs(t, tree.Build(nil), ErrAlreadyBuilt)
	})

	t.Run("CopiesInput", func(t *testing.T) {
		tree := newTree(t, 2)
		points := [][]float32{{1, 1}}
		require.NoError(t, tree.Build(points))
		points[0][0] = 99

		got, err := tree.QueryNearest([]float32{1, 1}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Zero(t, got[0].Distance)
	})
}

func TestQueryNearest(t *testing.T) {
	t.Run("EmptyTree", func(t *testing.T) {
		tree := newTree(t, 2)
		require.NoError(t, tree.Build(nil))

		got, err := tree.QueryNearest([]float32{0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("InvalidK", func(t *testing.T) {
		tree := newTree(t, 2)
		require.NoError(t, tree.Build(nil))
		_, err := tree.QueryNearest([]float32{0, 0}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		tree := newTree(t, 2)
		require.NoError(t, tree.Build([][]float32{{1, 1}}))
		_, err := tree.QueryNearest([]float32{0, 0, 0}, 1)
		var dm *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("MatchesBruteForce", func(t *testing.T) {
		rng := testutil.NewRNG(7)
		const dim, n, k = 4, 500, 10

		points := rng.UniformVectors(n, dim)
		tree := newTree(t, dim, func(o *Options) { o.BucketSize = 4 })
		require.NoError(t, tree.Build(points))

		for range 50 {
			q := make([]float32, dim)
			rng.FillUniform(q)

			want := testutil.BruteForceSearch(points, q, k)
			got, err := tree.QueryNearest(q, k)
			require.NoError(t, err)
			require.Len(t, got, k)

			for i := range want {
				assert.Equal(t, want[i].Index, got[i].Index)
			}
		}
	})

	t.Run("TiesBrokenByInsertionOrder", func(t *testing.T) {
		tree := newTree(t, 2, func(o *Options) { o.BucketSize = 1 })
		// Two points equidistant from the query.
		require.NoError(t, tree.Build([][]float32{{2, 0}, {-2, 0}, {10, 10}}))

		got, err := tree.QueryNearest([]float32{0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0].Index)
		assert.Equal(t, 1, got[1].Index)
	})

	t.Run("KLargerThanTree", func(t *testing.T) {
		tree := newTree(t, 2)
		require.NoError(t, tree.Build([][]float32{{1, 0}, {0, 1}}))

		got, err := tree.QueryNearest([]float32{0, 0}, 5)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("EpsilonBound", func(t *testing.T) {
		rng := testutil.NewRNG(11)
		const dim, n, eps = 3, 1000, 0.5

		points := rng.UniformVectors(n, dim)
		tree := newTree(t, dim, func(o *Options) {
			o.Epsilon = eps
			o.BucketSize = 4
		})
		require.NoError(t, tree.Build(points))

		for range 100 {
			q := make([]float32, dim)
			rng.FillUniform(q)

			exact := testutil.BruteForceSearch(points, q, 1)
			got, err := tree.QueryNearest(q, 1)
			require.NoError(t, err)
			require.Len(t, got, 1)

			// Returned distance is Euclidean; ground truth is squared L2.
			gotSq := float64(got[0].Distance) * float64(got[0].Distance)
			bound := float64(exact[0].Distance) * (1 + eps) * (1 + eps)
			assert.LessOrEqual(t, gotSq, bound*(1+1e-4))
		}
	})

	t.Run("DuplicatePoints", func(t *testing.T) {
		same := []float32{1, 1}
		points := make([][]float32, 20)
		for i := range points {
			points[i] = same
		}

		tree := newTree(t, 2, func(o *Options) { o.BucketSize = 2 })
		require.NoError(t, tree.Build(points))

		got, err := tree.QueryNearest([]float32{1, 1}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int{0, 1, 2}, []int{got[0].Index, got[1].Index, got[2].Index})
	})
}

func TestClose(t *testing.T) {
	tree := newTree(t, 2)
	require.NoError(t, tree.Build([][]float32{{1, 1}}))

	require.NoError(t, tree.Close())
	require.NoError(t, tree.Close()) // idempotent

	got, err := tree.QueryNearest([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, tree.Len())
}
