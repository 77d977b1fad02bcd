package bundlepool

import (
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

type slot uint64

// Admission is the value delivered to subscribers on every successful
// put_or_replace, synchronously with the call that admitted it but
// outside the pool's write lock.
type Admission struct {
	Bundle   *Bundle
	Replaced bool
}

// PutResult reports whether a put_or_replace call admitted a brand new
// entry or replaced an existing one in place.
type PutResult int

const (
	Admitted PutResult = iota
	Replaced
	// Duplicate is returned when a content-derived key collides with an
	// already-admitted bundle and no replacement UUID was supplied: per
	// spec.md §4.3 this is a pure duplicate and a no-op, not a replace.
	Duplicate
)

// Pool is a bounded, weighted cache of Bundles indexed both by content/
// replacement-derived key and by target block number. It implements the
// Design Notes' "arena/slab plus two non-owning index maps" pattern: the
// slab owns the Bundle values, the indices only ever store slot ids.
type Pool struct {
	mu sync.RWMutex

	capacityBytes int
	usedBytes     int
	nextSlot      slot
	nextSequence  uint64

	slab    map[slot]*Bundle
	byID    map[Key]slot
	byBlock map[uint64][]slot

	// admissionOrder records slots in the order they were admitted, for
	// least-recently-admitted eviction. A replacement counts as a fresh
	// admission: the old slot is dropped and the new one goes to the end.
	admissionOrder []slot

	subscribers []chan Admission
}

// NewPool constructs an empty Pool with the given byte capacity.
func NewPool(capacityBytes int) *Pool {
	return &Pool{
		capacityBytes: capacityBytes,
		slab:          make(map[slot]*Bundle),
		byID:          make(map[Key]slot),
		byBlock:       make(map[uint64][]slot),
	}
}

// Subscribe registers a listener channel that receives every admission.
// The channel is buffered by the caller; a full channel causes the
// notification for that subscriber to be dropped with a warning log
// rather than blocking the pool.
func (p *Pool) Subscribe(ch chan Admission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, ch)
}

// GetByID returns the bundle for a content-derived or replacement key.
func (p *Pool) GetByID(id Key) (*Bundle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	return p.slab[s], true
}

// GetByUUID returns the bundle registered under a replacement UUID.
func (p *Pool) GetByUUID(id uuid.UUID) (*Bundle, bool) {
	return p.GetByID(KeyForUUID(id))
}

// BundlesForBlock returns the bundles targeting block n, in insertion
// order.
func (p *Pool) BundlesForBlock(n uint64) []*Bundle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	slots := p.byBlock[n]
	out := make([]*Bundle, 0, len(slots))
	for _, s := range slots {
		if b, ok := p.slab[s]; ok {
			out = append(out, b)
		}
	}
	return out
}

// FindForTx returns the bundle targeting block n that contains pendingTx,
// if any.
func (p *Pool) FindForTx(n uint64, pendingTx *types.Transaction) (*Bundle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hash := pendingTx.Hash()
	for _, s := range p.byBlock[n] {
		b, ok := p.slab[s]
		if !ok {
			continue
		}
		for _, ptx := range b.PendingTxs {
			if ptx.Tx.Hash() == hash {
				return b, true
			}
		}
	}
	return nil, false
}

// PutOrReplace admits bundle under key, replacing any existing entry for
// that key atomically. Absent a replacement UUID, a pure content
// duplicate (same key, identical bundle already present) is a no-op.
func (p *Pool) PutOrReplace(key Key, b *Bundle) PutResult {
	var (
		admission Admission
		notify    []chan Admission
	)

	p.mu.Lock()
	existingSlot, existed := p.byID[key]
	if existed && b.ReplacementUUID == nil {
		// Absent a UUID, key is content-derived, so a collision here is a
		// byte-identical resubmission: spec.md §4.3 makes this a no-op,
		// leaving sequence, admission order, and subscribers untouched.
		p.mu.Unlock()
		return Duplicate
	}

	result := Admitted
	if existed {
		result = Replaced
		p.unlinkLocked(existingSlot)
	}

	p.nextSequence++
	b.ID = key
	b.Sequence = p.nextSequence

	s := p.nextSlot
	p.nextSlot++
	p.slab[s] = b
	p.byID[key] = s
	p.byBlock[b.BlockNumber] = append(p.byBlock[b.BlockNumber], s)
	p.admissionOrder = append(p.admissionOrder, s)
	p.usedBytes += b.Weight()

	p.evictToCapacityLocked()

	admission = Admission{Bundle: b, Replaced: result == Replaced}
	notify = append(notify, p.subscribers...)
	p.mu.Unlock()

	notifySubscribers(notify, admission)
	return result
}

// Remove deletes the bundle for key, reporting whether it was present.
func (p *Pool) Remove(key Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byID[key]
	if !ok {
		return false
	}
	p.unlinkLocked(s)
	return true
}

// RemoveForBlock deletes every bundle targeting block n, returning the
// count removed. Used when the chain head advances past n.
func (p *Pool) RemoveForBlock(n uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	slots := append([]slot(nil), p.byBlock[n]...)
	for _, s := range slots {
		if b, ok := p.slab[s]; ok {
			delete(p.byID, b.ID)
			p.removeFromAdmissionOrderLocked(s)
			p.usedBytes -= b.Weight()
			delete(p.slab, s)
		}
	}
	delete(p.byBlock, n)
	return len(slots)
}

// unlinkLocked removes a slot from every index and the slab, freeing its
// weight. Callers must hold p.mu.
func (p *Pool) unlinkLocked(s slot) {
	b, ok := p.slab[s]
	if !ok {
		return
	}
	delete(p.byID, b.ID)
	p.byBlock[b.BlockNumber] = removeSlot(p.byBlock[b.BlockNumber], s)
	if len(p.byBlock[b.BlockNumber]) == 0 {
		delete(p.byBlock, b.BlockNumber)
	}
	p.removeFromAdmissionOrderLocked(s)
	p.usedBytes -= b.Weight()
	delete(p.slab, s)
}

func (p *Pool) removeFromAdmissionOrderLocked(s slot) {
	p.admissionOrder = removeSlot(p.admissionOrder, s)
}

// evictToCapacityLocked evicts entries in admission order (oldest first)
// until usedBytes is within capacity. Callers must hold p.mu.
func (p *Pool) evictToCapacityLocked() {
	for p.usedBytes > p.capacityBytes && len(p.admissionOrder) > 0 {
		victim := p.admissionOrder[0]
		if b, ok := p.slab[victim]; ok {
			log.Debug("bundlepool evicting bundle", "id", b.ID, "block", b.BlockNumber, "weight", b.Weight())
		}
		p.unlinkLocked(victim)
	}
}

func removeSlot(slots []slot, target slot) []slot {
	for i, s := range slots {
		if s == target {
			return append(slots[:i], slots[i+1:]...)
		}
	}
	return slots
}

func notifySubscribers(subs []chan Admission, a Admission) {
	for _, ch := range subs {
		select {
		case ch <- a:
		default:
			log.Warn("bundlepool subscriber channel full, dropping admission notification", "bundle", a.Bundle.ID)
		}
	}
}

// UsedBytes reports the current sum of admitted bundle weights.
func (p *Pool) UsedBytes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usedBytes
}
