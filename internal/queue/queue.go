// Package queue provides a bounded k-best heap for nearest neighbor search.
package queue

// Candidate is a search candidate held by the heap.
// Value-based (no pointers) for cache locality and zero allocations per push.
type Candidate struct {
	Index    int     // Insertion index of the reference point.
	Distance float32 // Squared distance to the query.
}

// KBest keeps the k candidates with the smallest distance seen so far.
// Internally a max-heap: the root is the current worst of the best k.
type KBest struct {
	k     int
	items []Candidate
}

// NewKBest creates a KBest heap holding at most k candidates.
func NewKBest(k int) *KBest {
	return &KBest{
		k:     k,
		items: make([]Candidate, 0, k),
	}
}

// Len returns the number of candidates currently held.
func (q *KBest) Len() int { return len(q.items) }

// Full reports whether k candidates are held.
func (q *KBest) Full() bool { return len(q.items) == q.k }

// Worst returns the largest distance among the held candidates.
// Only meaningful when Len() > 0.
func (q *KBest) Worst() float32 {
	return q.items[0].Distance
}

// Offer considers a candidate. It is kept if the heap is not yet full or if
// it beats the current worst candidate. Ties prefer the earlier insertion
// index so result order is deterministic.
func (q *KBest) Offer(c Candidate) {
	if len(q.items) < q.k {
		q.items = append(q.items, c)
		q.siftUp(len(q.items) - 1)
		return
	}
	if !q.beats(c, q.items[0]) {
		return
	}
	q.items[0] = c
	q.siftDown(0)
}

// beats reports whether a should replace b in the result set.
func (q *KBest) beats(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

// less orders the max-heap: the "largest" candidate sits at the root.
func (q *KBest) less(i, j int) bool {
	return q.beats(q.items[j], q.items[i])
}

func (q *KBest) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *KBest) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}

// Drain removes all candidates and returns them ordered by ascending
// distance, ties by insertion index.
func (q *KBest) Drain() []Candidate {
	out := make([]Candidate, len(q.items))
	for i := len(q.items) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

// pop removes and returns the worst candidate.
func (q *KBest) pop() Candidate {
	n := len(q.items)
	root := q.items[0]
	last := q.items[n-1]
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root
}

// Reset clears the heap for reuse.
func (q *KBest) Reset() {
	q.items = q.items[:0]
}
