// Package forwarder implements the BundleForwarder: for each configured
// upstream URL, forward every newly admitted bundle via a JSON-RPC POST,
// with a per-endpoint priority queue and independent retry-on-failure.
package forwarder

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
)

// Forwarder owns one endpointWorker per configured URL and dispatches
// every bundle admission to all of them.
type Forwarder struct {
	endpoints []*endpointWorker
	sequence  atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewForwarder constructs a Forwarder with one worker per URL. A nil
// client defaults to a 5 s timeout, matching the external interface's
// HTTP call timeout.
func NewForwarder(urls []string, client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	f := &Forwarder{stopCh: make(chan struct{})}
	for _, url := range urls {
		f.endpoints = append(f.endpoints, newEndpointWorker(url, client))
	}
	return f
}

// Subscribe registers the forwarder as a listener on pool's admission
// channel and begins dispatching every subsequent admission to every
// configured endpoint.
func (f *Forwarder) Subscribe(pool *bundlepool.Pool) {
	ch := make(chan bundlepool.Admission, 256)
	pool.Subscribe(ch)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case a, ok := <-ch:
				if !ok {
					return
				}
				f.enqueueAll(a.Bundle)
			case <-f.stopCh:
				return
			}
		}
	}()
}

func (f *Forwarder) enqueueAll(b *bundlepool.Bundle) {
	seq := f.sequence.Add(1)
	for _, ep := range f.endpoints {
		ep.enqueue(b, seq)
	}
}

// Stop halts every endpoint worker and the dispatch loop.
func (f *Forwarder) Stop() {
	close(f.stopCh)
	for _, ep := range f.endpoints {
		ep.stop()
	}
	f.wg.Wait()
}
