package selector

import (
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
	"github.com/mantlenetworkio/sequencer-selector/internal/rejection"
)

func nowUTC() time.Time { return time.Now().UTC() }

// reportRejectionSingle builds and forwards a rejection.Report for one
// permanently dropped, non-bundle-rollback candidate.
func (p *Pipeline) reportRejectionSingle(tx *types.Transaction, res Result, moduleCounts map[string]int64) {
	if p.rejections == nil {
		return
	}
	p.rejections.Report(rejection.Report{
		Stage:          rejection.StageSequencer,
		Timestamp:      nowUTC(),
		TransactionRLP: rlpHex(tx),
		Reason:         reasonFor(res),
		Overflows:      overflowsFor(res, p.limits, moduleCounts),
	})
}

// reportRejection builds one rejection.Report for a bundle rolled back
// because of breakingResult.
func (p *Pipeline) reportRejection(b *bundlepool.Bundle, breakingResult Result) {
	if p.rejections == nil {
		return
	}
	blockNumber := b.BlockNumber
	var rlp string
	if len(b.PendingTxs) > 0 {
		rlp = rlpHex(b.PendingTxs[0].Tx)
	}
	p.rejections.Report(rejection.Report{
		Stage:          rejection.StageSequencer,
		Timestamp:      nowUTC(),
		BlockNumber:    &blockNumber,
		TransactionRLP: rlp,
		Reason:         "bundle rolled back: " + reasonFor(breakingResult),
	})
}

func reasonFor(res Result) string {
	switch r := res.(type) {
	case Invalid:
		return r.Reason
	case TooLargeForGas:
		return "transaction gas limit exceeds configured ceiling"
	case ModuleOverflow:
		return "module " + r.Module + " exceeds per-transaction limit"
	case BlockOccupancyAboveThreshold:
		return "bundle exceeds max gas per block"
	default:
		return "rejected"
	}
}

// overflowsFor populates the RejectionReport's Overflows field for the one
// terminal result that carries line-count detail: a single transaction
// whose own delta for a module exceeds that module's per-transaction
// limit. BlockFull is a per-block deferral, never terminal, so it is
// never reported here.
func overflowsFor(res Result, limits map[string]int64, moduleCounts map[string]int64) []rejection.Overflow {
	mo, ok := res.(ModuleOverflow)
	if !ok || moduleCounts == nil {
		return nil
	}
	return []rejection.Overflow{{
		Module: mo.Module,
		Count:  moduleCounts[mo.Module],
		Limit:  limits[mo.Module],
	}}
}

func rlpHex(tx *types.Transaction) string {
	raw, err := tx.MarshalBinary()
	if err != nil {
		log.Error("failed to encode rejected transaction", "tx", tx.Hash(), "err", err)
		return ""
	}
	return "0x" + hex.EncodeToString(raw)
}
