package ranker

import "container/heap"

// TopK returns the indices of the k largest scores, highest first. Ties are
// ordered by lower index first.
func TopK(scores []float32, k int) []int {
	if k <= 0 || len(scores) == 0 {
		return []int{}
	}
	if k > len(scores) {
		k = len(scores)
	}
	h := &candidateHeap{scores: scores, idx: make([]int, 0, k)}
	for i := range scores {
		if h.Len() < k {
			heap.Push(h, i)
			continue
		}
		if below(scores, h.idx[0], i) {
			h.idx[0] = i
			heap.Fix(h, 0)
		}
	}
	result := make([]int, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(int)
	}
	return result
}

// below reports whether document i ranks below document j.
func below(scores []float32, i, j int) bool {
	if scores[i] != scores[j] {
		return scores[i] < scores[j]
	}
	return i > j
}

// candidateHeap is a min-heap of document indices; the root is the weakest
// candidate kept so far.
type candidateHeap struct {
	scores []float32
	idx    []int
}

func (h *candidateHeap) Len() int { return len(h.idx) }

func (h *candidateHeap) Less(a, b int) bool { return below(h.scores, h.idx[a], h.idx[b]) }

func (h *candidateHeap) Swap(a, b int) { h.idx[a], h.idx[b] = h.idx[b], h.idx[a] }

func (h *candidateHeap) Push(x any) {
	h.idx = append(h.idx, x.(int))
}

func (h *candidateHeap) Pop() any {
	old := h.idx
	n := len(old)
	item := old[n-1]
	h.idx = old[:n-1]
	return item
}
