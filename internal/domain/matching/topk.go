package matching

import (
	"container/heap"

	"github.com/okian/nestmatch/internal/domain/model"
)

// Selector keeps the best k results offered to it. Offer is O(log k).
// A Selector is not safe for concurrent use.
type Selector struct {
	k int
	h resultHeap
}

// NewSelector returns a Selector of capacity k. k <= 0 keeps nothing.
func NewSelector(k int) *Selector {
	if k < 0 {
		k = 0
	}
	return &Selector{k: k, h: make(resultHeap, 0, k)}
}

// Offer considers r for the top k.
func (s *Selector) Offer(r model.MatchResult) {
	switch {
	case s.k == 0:
	case len(s.h) < s.k:
		heap.Push(&s.h, r)
	case model.Ranks(r, s.h[0]):
		s.h[0] = r
		heap.Fix(&s.h, 0)
	}
}

// Len returns the number of retained results.
func (s *Selector) Len() int { return len(s.h) }

// Drain returns the retained results best first and empties the Selector.
func (s *Selector) Drain() []model.MatchResult {
	out := make([]model.MatchResult, len(s.h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&s.h).(model.MatchResult)
	}
	return out
}

// resultHeap is a min-heap on rank: the root is the worst retained result.
type resultHeap []model.MatchResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return model.Ranks(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(model.MatchResult)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}
