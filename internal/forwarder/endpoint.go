package forwarder

import (
	"bytes"
	"container/heap"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
)

// endpointWorker is the single-threaded worker draining one endpoint's
// priority queue. It owns no shared state with other endpoints: a slow
// or unreachable upstream never blocks forwarding to the others.
type endpointWorker struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	pending taskHeap
	wake    chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newEndpointWorker(url string, client *http.Client) *endpointWorker {
	w := &endpointWorker{
		url:    url,
		client: client,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *endpointWorker) enqueue(b *bundlepool.Bundle, sequence uint64) {
	w.mu.Lock()
	heap.Push(&w.pending, &task{bundle: b, sequence: sequence})
	QueueDepthGauge.Update(int64(len(w.pending)))
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *endpointWorker) stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *endpointWorker) run() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			select {
			case <-w.wake:
				continue
			case <-w.stopCh:
				return
			}
		}
		t := heap.Pop(&w.pending).(*task)
		QueueDepthGauge.Update(int64(len(w.pending)))
		w.mu.Unlock()

		if w.send(t) {
			continue
		}

		t.retryCount++
		w.mu.Lock()
		heap.Push(&w.pending, t)
		w.mu.Unlock()

		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// send POSTs a bundle to the endpoint and reports whether it was
// delivered. HTTP failures (including non-2xx) are the only retry
// trigger: the forwarder does not interpret the response body.
func (w *endpointWorker) send(t *task) bool {
	body, err := buildSendBundleBody(t.bundle, t.sequence)
	if err != nil {
		// A malformed in-memory bundle cannot be fixed by retrying.
		return true
	}

	start := time.Now()
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	SubmitTimer.UpdateSince(start)
	if err != nil {
		log.Warn("bundle forward failed", "url", w.url, "bundle", t.bundle.ID, "retry", t.retryCount, "err", err)
		SubmitFailureMeter.Mark(1)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("bundle forward rejected", "url", w.url, "bundle", t.bundle.ID, "status", resp.StatusCode)
		SubmitFailureMeter.Mark(1)
		return false
	}

	SubmitSuccessMeter.Mark(1)
	return true
}
