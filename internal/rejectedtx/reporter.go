// Package rejectedtx durably queues and forwards rejection notifications
// to an external JSON endpoint, surviving process restarts.
package rejectedtx

import (
	"bytes"
	"container/heap"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"

	"github.com/mantlenetworkio/sequencer-selector/internal/rejection"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	abandonAfter   = 2 * time.Hour
)

func maxWorkers() int {
	n := 2 * runtime.NumCPU()
	if n > 32 {
		n = 32
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Reporter is the RejectedTxReporter: one instance owns a report
// directory exclusively (enforced with a gofrs/flock lock file) and runs
// a single scheduler goroutine plus a fixed worker pool that perform the
// actual disk and HTTP I/O.
type Reporter struct {
	dir      string
	endpoint string
	client   *http.Client
	lock     *flock.Flock

	sequence atomic.Uint64

	mu      sync.Mutex
	pending retryHeap
	wake    chan struct{}

	submitCh chan *retryItem
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReporter constructs a Reporter rooted at dir, acquires the
// directory's exclusive lock, re-enqueues any report files left over from
// a prior process, and starts its scheduler and worker pool.
func NewReporter(dir, endpoint string, client *http.Client) (*Reporter, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, ".rejectedtx.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errDirLocked(dir)
	}

	r := &Reporter{
		dir:      dir,
		endpoint: endpoint,
		client:   client,
		lock:     lock,
		wake:     make(chan struct{}, 1),
		submitCh: make(chan *retryItem),
		stopCh:   make(chan struct{}),
	}

	existing, err := scanDir(dir)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	now := time.Now()
	for _, path := range existing {
		heap.Push(&r.pending, &retryItem{path: path, backoff: initialBackoff, readyAt: now, firstAttempt: now})
	}
	log.Info("rejected-tx reporter recovered pending reports", "dir", dir, "count", len(existing))

	r.wg.Add(1)
	go r.scheduleLoop()
	for i := 0; i < maxWorkers(); i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r, nil
}

// Report persists rep and schedules it for immediate submission. It
// implements the selector package's RejectionSink interface. Persistence
// failures are logged. The report file is written synchronously on the
// caller's goroutine; only the HTTP submission runs on the worker pool.
func (r *Reporter) Report(rep rejection.Report) {
	seq := r.sequence.Add(1)
	now := time.Now()
	path, err := writeReportFile(r.dir, now.UnixMilli(), seq, rep)
	if err != nil {
		log.Error("failed to persist rejection report", "err", err)
		return
	}

	r.mu.Lock()
	heap.Push(&r.pending, &retryItem{path: path, backoff: initialBackoff, readyAt: now, firstAttempt: now})
	QueueDepthGauge.Update(int64(len(r.pending)))
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stop halts the scheduler and worker pool and releases the directory
// lock. In-flight submissions finish; unsubmitted files remain on disk
// for the next process to recover.
func (r *Reporter) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	if err := r.lock.Unlock(); err != nil {
		log.Error("failed to release rejected-tx reporter lock", "err", err)
	}
}

// scheduleLoop is the single-threaded scheduler: it performs no I/O
// itself, only ever popping the next-due item off the heap and handing
// its filename to the worker pool via submitCh.
func (r *Reporter) scheduleLoop() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			select {
			case <-r.wake:
				continue
			case <-r.stopCh:
				return
			}
		}

		next := r.pending[0]
		wait := time.Until(next.readyAt)
		if wait > 0 {
			r.mu.Unlock()
			select {
			case <-time.After(wait):
				continue
			case <-r.wake:
				continue
			case <-r.stopCh:
				return
			}
		}

		item := heap.Pop(&r.pending).(*retryItem)
		QueueDepthGauge.Update(int64(len(r.pending)))
		r.mu.Unlock()

		select {
		case r.submitCh <- item:
		case <-r.stopCh:
			return
		}
	}
}

// worker performs the report directory's actual disk and HTTP I/O: read
// the persisted request body, POST it, and either delete the file on
// success or reschedule it with exponential backoff.
func (r *Reporter) worker() {
	defer r.wg.Done()
	for {
		select {
		case item := <-r.submitCh:
			r.attempt(item)
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reporter) attempt(item *retryItem) {
	start := time.Now()
	ok := r.submitFile(item.path)
	SubmitTimer.UpdateSince(start)

	if ok {
		SubmitSuccessMeter.Mark(1)
		if err := removeFile(item.path); err != nil {
			log.Error("failed to delete acknowledged rejection report", "path", item.path, "err", err)
		}
		return
	}

	SubmitFailureMeter.Mark(1)
	if time.Since(item.firstAttempt) > abandonAfter {
		log.Error("abandoning rejection report after exceeding retry deadline", "path", item.path, "age", time.Since(item.firstAttempt))
		AbandonedMeter.Mark(1)
		if err := removeFile(item.path); err != nil {
			log.Error("failed to delete abandoned rejection report", "path", item.path, "err", err)
		}
		return
	}

	item.readyAt = time.Now().Add(item.backoff)
	item.backoff *= 2
	if item.backoff > maxBackoff {
		item.backoff = maxBackoff
	}

	r.mu.Lock()
	heap.Push(&r.pending, item)
	QueueDepthGauge.Update(int64(len(r.pending)))
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// submitFile POSTs the persisted request body and reports whether the
// endpoint acknowledged it: HTTP 2xx and a response body with
// result.status, per the rejected-tx endpoint's success criterion.
func (r *Reporter) submitFile(path string) bool {
	body, err := readFile(path)
	if err != nil {
		log.Error("failed to read pending rejection report", "path", path, "err", err)
		return false
	}

	resp, err := r.client.Post(r.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn("rejection report submission failed", "path", path, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("rejection report submission rejected", "path", path, "status", resp.StatusCode)
		return false
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("failed to read rejection report response", "path", path, "err", err)
		return false
	}

	var parsed struct {
		Result *struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Result == nil || parsed.Result.Status == "" {
		log.Warn("rejection report response missing result.status", "path", path)
		return false
	}
	return true
}
