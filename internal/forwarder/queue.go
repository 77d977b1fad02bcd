package forwarder

import "github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"

// task is one pending forward of a bundle to one endpoint.
type task struct {
	bundle     *bundlepool.Bundle
	retryCount uint64
	sequence   uint64
	index      int // heap.Interface bookkeeping
}

// priorityKey implements the ordering (block_number + retry_count,
// retry_count, sequence): low-block-number work surfaces first, and a
// retried task goes to the back of its block-number group rather than
// starving fresh admissions.
func (t *task) priorityKey() uint64 {
	return t.bundle.BlockNumber + t.retryCount
}

// taskHeap is a container/heap min-heap over pending forward tasks for a
// single endpoint.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if ak, bk := a.priorityKey(), b.priorityKey(); ak != bk {
		return ak < bk
	}
	if a.retryCount != b.retryCount {
		return a.retryCount < b.retryCount
	}
	return a.sequence < b.sequence
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
