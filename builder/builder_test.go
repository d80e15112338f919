package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trajgo/resource"
	"github.com/hupe1980/trajgo/store"
	"github.com/hupe1980/trajgo/testutil"
)

// writeTrainingFile emits "label v1 v2" lines for clusters around fixed
// centers.
func writeTrainingFile(t *testing.T, clusters map[string][][]float32, order []string) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("# synthetic training data\n\n")
	for _, label := range order {
		for _, p := range clusters[label] {
			sb.WriteString(label)
			for _, v := range p {
				fmt.Fprintf(&sb, " %g", v)
			}
			sb.WriteByte('\n')
		}
	}

	path := filepath.Join(t.TempDir(), "train.txt")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func trainingClusters(t *testing.T) (map[string][][]float32, []string) {
	t.Helper()
	rng := testutil.NewRNG(21)
	clusters := map[string][][]float32{
		"stationary": rng.VectorsAround([]float32{0, 0}, 30, 0.2),
		"walking":    rng.VectorsAround([]float32{10, 0}, 30, 0.2),
		"running":    rng.VectorsAround([]float32{0, 10}, 30, 0.2),
	}
	return clusters, []string{"stationary", "walking", "running"}
}

func TestBuild(t *testing.T) {
	clusters, order := trainingClusters(t)
	path := writeTrainingFile(t, clusters, order)

	b := New(WithController(resource.NewController(resource.Config{MaxConcurrentBuilds: 2})))
	c, report, err := b.Build(context.Background(), path, Config{
		Dim:       2,
		MinPoints: 5,
		MaxPoints: 100,
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 3, c.NumModels())
	assert.Equal(t, "stationary,walking,running", c.Names(","))
	assert.Equal(t, 5, c.WindowSize())
	assert.Equal(t, 90, report.Records)
	require.Len(t, report.Models, 3)
	assert.Equal(t, 30, report.Models[0].KeptPoints)
	assert.EqualValues(t, 30, report.Models[0].Retained.GetCardinality())
	assert.Empty(t, report.Skipped)
}

func TestBuildSkipsSmallLabels(t *testing.T) {
	clusters, order := trainingClusters(t)
	rng := testutil.NewRNG(4)
	clusters["rare"] = rng.VectorsAround([]float32{5, 5}, 2, 0.1)
	order = append(order, "rare")
	path := writeTrainingFile(t, clusters, order)

	b := New()
	c, report, err := b.Build(context.Background(), path, Config{
		Dim:       2,
		MinPoints: 5,
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 3, c.NumModels())
	assert.NotContains(t, c.Names(","), "rare")
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "rare", report.Skipped[0].Label)
	assert.Equal(t, 2, report.Skipped[0].Points)
}

func TestBuildSubsamplesDeterministically(t *testing.T) {
	clusters, order := trainingClusters(t)
	path := writeTrainingFile(t, clusters, order)

	b := New()
	cfg := Config{Dim: 2, MinPoints: 5, MaxPoints: 10}

	c1, r1, err := b.Build(context.Background(), path, cfg)
	require.NoError(t, err)
	defer c1.Close()
	c2, r2, err := b.Build(context.Background(), path, cfg)
	require.NoError(t, err)
	defer c2.Close()

	for i := range r1.Models {
		assert.Equal(t, 10, r1.Models[i].KeptPoints)
		assert.True(t, r1.Models[i].Retained.Equals(r2.Models[i].Retained))
	}

	s1, err := store.Snapshot(c1)
	require.NoError(t, err)
	s2, err := store.Snapshot(c2)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestBuildDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.txt")
	require.NoError(t, os.WriteFile(path, []byte("walk 1 2\nwalk 1 2 3\n"), 0644))

	b := New()
	_, _, err := b.Build(context.Background(), path, Config{Dim: 2})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Record)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
}

func TestBuildPersists(t *testing.T) {
	clusters, order := trainingClusters(t)
	path := writeTrainingFile(t, clusters, order)
	out := filepath.Join(t.TempDir(), "models.trj")

	b := New()
	c, _, err := b.Build(context.Background(), path, Config{
		Dim:        2,
		MinPoints:  5,
		OutputPath: out,
	})
	require.NoError(t, err)
	defer c.Close()

	loaded, err := store.New().Load(out)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, 3, loaded.NumModels())
	assert.Equal(t, c.Names(","), loaded.Names(","))
}

func TestBuildCanceled(t *testing.T) {
	clusters, order := trainingClusters(t)
	path := writeTrainingFile(t, clusters, order)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New()
	_, _, err := b.Build(ctx, path, Config{Dim: 2, MinPoints: 5})
	assert.Error(t, err)
}
