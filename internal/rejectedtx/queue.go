package rejectedtx

import "time"

// retryItem is one pending or scheduled resubmission of a persisted
// report file.
type retryItem struct {
	path         string
	backoff      time.Duration
	readyAt      time.Time
	firstAttempt time.Time
	index        int // heap.Interface bookkeeping
}

// retryHeap is a container/heap min-heap ordered by readyAt: the
// scheduler goroutine only ever needs to know which file is due next.
type retryHeap []*retryItem

func (h retryHeap) Len() int            { return len(h) }
func (h retryHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h retryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *retryHeap) Push(x interface{}) {
	item := x.(*retryItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *retryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
