// Package kdtree provides a bucketed kd-tree for exact and eps-approximate
// nearest neighbor search by Euclidean distance.
package kdtree

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hupe1980/trajgo/internal/math32"
	"github.com/hupe1980/trajgo/internal/queue"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrAlreadyBuilt is returned when Build is called twice on the same tree.
	ErrAlreadyBuilt = errors.New("tree already built")
)

// ErrDimensionMismatch indicates a point/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options contains configuration options for the kd-tree.
type Options struct {
	// Dimension is the fixed point dimensionality for this tree.
	// It must be > 0 and is enforced for all builds and queries.
	Dimension int

	// Epsilon is the approximation error bound. A returned neighbor's
	// distance d satisfies d <= (1+Epsilon)*d* where d* is the true
	// nearest distance. 0 means exact search.
	Epsilon float64

	// BucketSize is the maximum number of points stored in a leaf.
	BucketSize int
}

// DefaultOptions contains the default configuration options for the kd-tree.
var DefaultOptions = Options{
	Dimension:  0,
	Epsilon:    0,
	BucketSize: 8,
}

// Neighbor is a single nearest-neighbor result.
type Neighbor struct {
	// Distance is the exact Euclidean distance to the query.
	Distance float32

	// Index is the insertion index of the reference point.
	Index int
}

type node struct {
	// Leaf payload: insertion indexes of the bucketed points.
	bucket []int

	// Interior payload.
	splitDim int
	splitVal float32
	lo, hi   *node
}

func (n *node) leaf() bool { return n.lo == nil && n.hi == nil }

// Tree is a kd-tree over a fixed set of reference points.
// Queries are read-only and safe for concurrent use once built;
// Build and Close must be serialized by the caller.
type Tree struct {
	opts   Options
	maxErr float32 // (1+eps)^2, applied to squared distances
	points [][]float32
	root   *node
	built  bool
	closed atomic.Bool
}

// New creates a new kd-tree. Dimension is required.
func New(optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("kdtree: invalid dimension: %d", opts.Dimension)
	}
	if opts.Epsilon < 0 {
		return nil, fmt.Errorf("kdtree: invalid epsilon: %g", opts.Epsilon)
	}
	if opts.BucketSize < 1 {
		return nil, fmt.Errorf("kdtree: invalid bucket size: %d", opts.BucketSize)
	}

	e := 1 + float32(opts.Epsilon)

	return &Tree{
		opts:   opts,
		maxErr: e * e,
	}, nil
}

// Build constructs the tree from the given reference points. The points are
// copied; the caller keeps ownership of the input. Building with zero points
// leaves the tree in an explicit empty state where all queries return an
// empty result.
func (t *Tree) Build(points [][]float32) error {
	if t.built {
		return ErrAlreadyBuilt
	}

	owned := make([][]float32, len(points))
	backing := make([]float32, len(points)*t.opts.Dimension)
	for i, p := range points {
		if len(p) != t.opts.Dimension {
			return &ErrDimensionMismatch{Expected: t.opts.Dimension, Actual: len(p)}
		}
		vec := backing[i*t.opts.Dimension : (i+1)*t.opts.Dimension]
		copy(vec, p)
		owned[i] = vec
	}
	t.points = owned

	if len(owned) > 0 {
		indexes := make([]int, len(owned))
		for i := range indexes {
			indexes[i] = i
		}
		t.root = t.build(indexes)
	}

	t.built = true
	return nil
}

// build recursively splits on the dimension of maximum spread at the median.
// Sorting (rather than selection) keeps the construction fully deterministic,
// which model builds rely on for reproducibility.
func (t *Tree) build(indexes []int) *node {
	if len(indexes) <= t.opts.BucketSize {
		return &node{bucket: indexes}
	}

	dim := t.widestDimension(indexes)

	sort.Slice(indexes, func(i, j int) bool {
		a, b := t.points[indexes[i]][dim], t.points[indexes[j]][dim]
		if a != b {
			return a < b
		}
		return indexes[i] < indexes[j]
	})

	mid := len(indexes) / 2
	splitVal := t.points[indexes[mid]][dim]

	// All duplicates of the median value can end up on one side. If the
	// split degenerates, fall back to a leaf covering the whole range.
	if t.points[indexes[0]][dim] == t.points[indexes[len(indexes)-1]][dim] {
		return &node{bucket: indexes}
	}

	return &node{
		splitDim: dim,
		splitVal: splitVal,
		lo:       t.build(indexes[:mid]),
		hi:       t.build(indexes[mid:]),
	}
}

func (t *Tree) widestDimension(indexes []int) int {
	dim := 0
	var widest float32 = -1
	for d := 0; d < t.opts.Dimension; d++ {
		lo := t.points[indexes[0]][d]
		hi := lo
		for _, i := range indexes[1:] {
			v := t.points[i][d]
			if v < lo {
				lo = v
			} else if v > hi {
				hi = v
			}
		}
		if spread := hi - lo; spread > widest {
			widest = spread
			dim = d
		}
	}
	return dim
}

// QueryNearest returns the k nearest reference points to q, ordered by
// ascending Euclidean distance, ties broken by insertion order. An empty or
// closed tree deterministically returns an empty result.
func (t *Tree) QueryNearest(q []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(q) != t.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: t.opts.Dimension, Actual: len(q)}
	}
	if t.closed.Load() || t.root == nil {
		return []Neighbor{}, nil
	}

	best := queue.NewKBest(k)
	t.search(t.root, q, best)

	candidates := best.Drain()
	out := make([]Neighbor, len(candidates))
	for i, c := range candidates {
		out[i] = Neighbor{
			Distance: math32.Sqrt(c.Distance),
			Index:    c.Index,
		}
	}
	return out, nil
}

// search descends to the near side first, then visits the far side only if
// its boundary could still hold a neighbor within the (1+eps) error bound.
func (t *Tree) search(n *node, q []float32, best *queue.KBest) {
	if n.leaf() {
		for _, i := range n.bucket {
			best.Offer(queue.Candidate{
				Index:    i,
				Distance: math32.SquaredL2(q, t.points[i]),
			})
		}
		return
	}

	diff := q[n.splitDim] - n.splitVal
	near, far := n.lo, n.hi
	if diff >= 0 {
		near, far = n.hi, n.lo
	}

	t.search(near, q, best)

	// Squared plane distance inflated by (1+eps)^2: pruning the far side is
	// allowed exactly when no point behind the plane can beat the current
	// worst by more than the approximation factor.
	if !best.Full() || diff*diff*t.maxErr < best.Worst() {
		t.search(far, q, best)
	}
}

// Len returns the number of indexed reference points.
func (t *Tree) Len() int {
	if t.closed.Load() {
		return 0
	}
	return len(t.points)
}

// Dimension returns the fixed point dimensionality.
func (t *Tree) Dimension() int { return t.opts.Dimension }

// Epsilon returns the approximation error bound the tree was built with.
func (t *Tree) Epsilon() float64 { return t.opts.Epsilon }

// Point returns the reference point at the given insertion index.
// The returned slice must be treated as read-only.
func (t *Tree) Point(i int) []float32 { return t.points[i] }

// Close releases the node and point storage. It is idempotent; queries after
// Close return empty results.
func (t *Tree) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.root = nil
	t.points = nil
	return nil
}
