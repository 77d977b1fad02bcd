// Package bundlepool implements a size-bounded, weighted cache of atomic
// transaction bundles keyed by block number, with replacement-by-
// identifier semantics and admission subscriptions.
package bundlepool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// PendingTransaction wraps a host transaction with its arrival time.
type PendingTransaction struct {
	Tx        *types.Transaction
	ArrivedAt int64 // unix seconds
}

// Bundle is an atomic, user-submitted group of transactions that must be
// included together in a specific block or not at all.
type Bundle struct {
	ID                 common.Hash
	BlockNumber        uint64
	PendingTxs         []PendingTransaction
	MinTimestamp       *int64
	MaxTimestamp       *int64
	RevertingTxHashes  map[common.Hash]struct{}
	ReplacementUUID    *uuid.UUID
	Sequence           uint64
}

// Key identifies a Bundle in the pool: either its content-derived hash,
// or the canonical hash of its replacement UUID.
type Key = common.Hash

// KeyFor computes the pool key for a bundle: content-derived unless a
// replacement UUID is present, in which case identity is derived purely
// from the UUID so that subsequent puts with the same UUID share
// identity regardless of payload.
func KeyFor(b *Bundle) Key {
	if b.ReplacementUUID != nil {
		return KeyForUUID(*b.ReplacementUUID)
	}
	return contentHash(b.PendingTxs)
}

// KeyForUUID derives the canonical bundle key for a replacement UUID.
func KeyForUUID(id uuid.UUID) Key {
	return crypto.Keccak256Hash(id[:])
}

func contentHash(txs []PendingTransaction) common.Hash {
	var buf []byte
	for _, ptx := range txs {
		enc, err := ptx.Tx.MarshalBinary()
		if err != nil {
			// Host-supplied transactions are always well-formed; a
			// marshalling failure indicates a corrupt in-memory object,
			// which is a fatal configuration/integration error.
			panic("bundlepool: malformed pending transaction: " + err.Error())
		}
		buf = append(buf, enc...)
	}
	return crypto.Keccak256Hash(buf)
}

// Weight is the sum of payload byte lengths across the bundle's
// transactions, the unit the pool's capacity is expressed in.
func (b *Bundle) Weight() int {
	w := 0
	for _, ptx := range b.PendingTxs {
		w += len(ptx.Tx.Data())
	}
	return w
}

// Validate checks the structural invariants from the data model: a
// non-empty tx list, a positive block number, and min <= max when both
// timestamps are present.
func (b *Bundle) Validate() error {
	if len(b.PendingTxs) == 0 {
		return errEmptyBundle
	}
	if b.BlockNumber == 0 {
		return errZeroBlockNumber
	}
	if b.MinTimestamp != nil && b.MaxTimestamp != nil && *b.MinTimestamp > *b.MaxTimestamp {
		return errMinAfterMax
	}
	return nil
}
