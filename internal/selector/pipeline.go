// Package selector orchestrates evaluation of bundles and non-bundle
// pending transactions for a single pending block: ordered pre/post
// checks, profitability, deny-list, gas caps, bundle atomicity, and
// commit/rollback of the line-count accumulator.
package selector

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
	"github.com/mantlenetworkio/sequencer-selector/internal/config"
	"github.com/mantlenetworkio/sequencer-selector/internal/denylist"
	"github.com/mantlenetworkio/sequencer-selector/internal/linecount"
	"github.com/mantlenetworkio/sequencer-selector/internal/profitability"
	"github.com/mantlenetworkio/sequencer-selector/internal/rejection"
)

// Decision pairs a candidate transaction with its selection result.
type Decision struct {
	Tx     *types.Transaction
	Result Result
}

// RejectionSink receives a report for every permanently dropped
// candidate. The RejectedTxReporter implements this.
type RejectionSink interface {
	Report(report rejection.Report)
}

// Pipeline is the SelectorPipeline of spec.md §4.4. One Pipeline
// instance drives one block build at a time; BeginBlock/EndBlock bracket
// a round.
type Pipeline struct {
	cfg        config.SelectorConfig
	limits     linecount.Limits
	accumulator *linecount.Accumulator
	profit     *profitability.Calculator
	pool       *bundlepool.Pool
	denyList   *denylist.List
	signer     types.Signer
	executor   Executor
	minGas     MinGasPriceSource
	rejections RejectionSink
}

// NewPipeline wires the four leaf subsystems plus the host-provided
// Executor into one orchestrator.
func NewPipeline(
	cfg config.SelectorConfig,
	limits linecount.Limits,
	profit *profitability.Calculator,
	pool *bundlepool.Pool,
	denyList *denylist.List,
	signer types.Signer,
	executor Executor,
	minGas MinGasPriceSource,
	rejections RejectionSink,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		limits:      limits,
		accumulator: linecount.New(limits),
		profit:      profit,
		pool:        pool,
		denyList:    denyList,
		signer:      signer,
		executor:    executor,
		minGas:      minGas,
		rejections:  rejections,
	}
}

// BeginBlock resets the per-block accumulator ahead of a new round.
func (p *Pipeline) BeginBlock() {
	p.accumulator.Reset()
}

// EndBlock releases any per-round state. The core holds no tracer
// handle itself (tracing is host-owned), so this is presently a no-op
// kept for symmetry with BeginBlock and future extension.
func (p *Pipeline) EndBlock() {}

// SelectForBlock evaluates every bundle registered for header.Number, in
// insertion order, then every non-bundle pending transaction, and
// returns one Decision per candidate transaction actually evaluated.
func (p *Pipeline) SelectForBlock(ctx context.Context, header BlockHeader, pending []*types.Transaction) []Decision {
	p.BeginBlock()
	defer p.EndBlock()

	pricing := p.profit.Snapshot()
	var decisions []Decision

	for _, b := range p.pool.BundlesForBlock(header.Number) {
		decisions = append(decisions, p.evaluateBundle(ctx, header, b, pricing)...)
	}

	for _, tx := range pending {
		decisions = append(decisions, p.evaluateSingle(ctx, header, tx, pricing, nil))
	}

	return decisions
}

// bundleContext carries the bundle-scoped rules (revert tolerance,
// timestamp window) down to evaluateSingle.
type bundleContext struct {
	bundle            *bundlepool.Bundle
	revertingTxHashes map[common.Hash]struct{}
}

// evaluateBundle evaluates every member of b atomically: it snapshots
// the accumulator before the first member and commits each member's
// delta as it goes. If every member is Selected, the commits stand and
// the per-member results are returned as-is. If any member fails, the
// snapshot is restored — undoing every prior member's commit — and the
// whole bundle is returned as rolled back (and reported once, when the
// breaking result is terminal), so a member that
// was individually Selected never surfaces as included once its sibling
// breaks atomicity.
func (p *Pipeline) evaluateBundle(ctx context.Context, header BlockHeader, b *bundlepool.Bundle, pricing profitability.Inputs) []Decision {
	snapshot := p.accumulator.Snapshot()
	decisions := make([]Decision, 0, len(b.PendingTxs))
	bctx := &bundleContext{bundle: b, revertingTxHashes: b.RevertingTxHashes}

	var cumulativeBundleGas uint64
	breakingResult := Result(nil)

	for _, ptx := range b.PendingTxs {
		if breakingResult != nil {
			decisions = append(decisions, Decision{Tx: ptx.Tx, Result: breakingResult})
			continue
		}

		if cumulativeBundleGas+ptx.Tx.Gas() > p.cfg.MaxBundleGasPerBlock {
			breakingResult = BlockOccupancyAboveThreshold{}
			decisions = append(decisions, Decision{Tx: ptx.Tx, Result: breakingResult})
			continue
		}

		d := p.evaluateSingle(ctx, header, ptx.Tx, pricing, bctx)
		if _, ok := d.Result.(Selected); !ok {
			breakingResult = d.Result
			decisions = append(decisions, d)
			continue
		}
		decisions = append(decisions, d)
		cumulativeBundleGas += ptx.Tx.Gas()
	}

	if breakingResult == nil {
		return decisions
	}
	return p.rollbackBundle(b, decisions, snapshot, breakingResult)
}

// rollbackBundle restores the pre-bundle accumulator snapshot, reports
// the whole bundle as one permanent rejection keyed on the member that
// broke atomicity when that member's result is terminal, and rewrites
// every member's decision to reflect that none of them are included in
// the block.
func (p *Pipeline) rollbackBundle(b *bundlepool.Bundle, decisions []Decision, snapshot map[string]int64, breakingResult Result) []Decision {
	p.accumulator.Restore(snapshot)
	log.Debug("bundle rolled back", "bundle", b.ID, "block", b.BlockNumber, "reason", reasonFor(breakingResult))

	final := make([]Decision, len(decisions))
	for i, d := range decisions {
		if _, ok := d.Result.(Selected); ok {
			final[i] = Decision{Tx: d.Tx, Result: Invalid{Reason: "bundle rolled back"}}
			continue
		}
		final[i] = d
	}
	if breakingResult.Terminal() {
		p.reportRejection(b, breakingResult)
	}
	return final
}

// evaluateSingle runs the full pre-check -> execute -> post-check flow
// for one candidate. bctx is nil for non-bundle transactions.
func (p *Pipeline) evaluateSingle(ctx context.Context, header BlockHeader, tx *types.Transaction, pricing profitability.Inputs, bctx *bundleContext) (d Decision) {
	// Bundle members never self-report: a failing member rolls its whole
	// bundle back, and rollbackBundle reports that once as a unit. Only
	// standalone (non-bundle) candidates report for themselves here.
	reportsSelf := bctx == nil

	// A panic while evaluating one candidate drops that candidate
	// permanently instead of aborting the rest of the block.
	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected panic evaluating candidate transaction", "tx", tx.Hash(), "panic", r)
			res := Invalid{Reason: "unexpected error evaluating transaction"}
			if reportsSelf {
				p.reportRejectionSingle(tx, res, nil)
			}
			d = Decision{Tx: tx, Result: res}
		}
	}()

	if res, ok := p.preExecutionChecks(header, tx, pricing, bctx); !ok {
		if reportsSelf && res.Terminal() {
			p.reportRejectionSingle(tx, res, nil)
		}
		return Decision{Tx: tx, Result: res}
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.PerTxEvaluationDeadline > 0 {
		execCtx, cancel = context.WithTimeout(ctx, p.cfg.PerTxEvaluationDeadline)
		defer cancel()
	}

	procResult, err := p.executor.Execute(execCtx, header, tx)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return Decision{Tx: tx, Result: EvaluationTimeout{}}
		}
		log.Error("unexpected error executing candidate transaction", "tx", tx.Hash(), "err", err)
		res := Invalid{Reason: "execution error: " + err.Error()}
		if reportsSelf {
			p.reportRejectionSingle(tx, res, nil)
		}
		return Decision{Tx: tx, Result: res}
	}

	res := p.postExecutionChecks(tx, procResult, bctx)
	if reportsSelf && res.Terminal() {
		p.reportRejectionSingle(tx, res, procResult.CumulativeModuleCounts)
	}
	if _, ok := res.(Selected); ok {
		p.accumulator.Commit(procResult.CumulativeModuleCounts)
	}
	return Decision{Tx: tx, Result: res}
}

// preExecutionChecks implements spec.md §4.4 step 1 (a-e), in order,
// short-circuiting on the first failure.
func (p *Pipeline) preExecutionChecks(header BlockHeader, tx *types.Transaction, pricing profitability.Inputs, bctx *bundleContext) (Result, bool) {
	from, err := types.Sender(p.signer, tx)
	if err != nil {
		return Invalid{Reason: "invalid signature: " + err.Error()}, false
	}
	if p.denyList.Contains(from) {
		return Invalid{Reason: "sender " + from.Hex() + " is blocked as appearing on the SDN or other legally prohibited list"}, false
	}
	if to := tx.To(); to != nil {
		if p.denyList.Contains(*to) || denylist.IsPrecompile(*to) {
			return Invalid{Reason: "recipient " + to.Hex() + " is blocked"}, false
		}
	}

	allowed := p.cfg.AllowedTxTypes()
	if !allowed[tx.Type()] {
		return Invalid{Reason: "transaction type not permitted"}, false
	}

	if tx.Gas() > p.cfg.MaxTxGas {
		return TooLargeForGas{}, false
	}

	if bctx != nil {
		now := time.Now().Unix()
		b := bctx.bundle
		if b.MinTimestamp != nil && now < *b.MinTimestamp {
			return PreExecutionNotSelected{Reason: "bundle min timestamp not yet reached"}, false
		}
		if b.MaxTimestamp != nil && now > *b.MaxTimestamp {
			return Invalid{Reason: "bundle max timestamp is in the past"}, false
		}
	}

	gasPrice := effectiveGasPrice(tx, header.BaseFee)
	gas := tx.Gas()
	minGasPrice := p.minGas.MinGasPrice()
	if !p.profit.IsProfitable("pre-execution", tx, pricing, header.BaseFee, gasPrice, gas, minGasPrice) {
		return PreExecutionNotSelected{Reason: "unprofitable"}, false
	}

	return Selected{}, true
}

// postExecutionChecks implements spec.md §4.4 step 3 (a-c).
func (p *Pipeline) postExecutionChecks(tx *types.Transaction, result ProcessingResult, bctx *bundleContext) Result {
	outcome := p.accumulator.Verify(result.CumulativeModuleCounts)
	switch {
	case outcome.IsModuleUndefined():
		log.Crit("module undefined in configured limits", "module", outcome.Module())
	case outcome.IsTxOverflow():
		linecount.LogOverflow(outcome, p.limits, result.CumulativeModuleCounts)
		return ModuleOverflow{Module: outcome.Module()}
	case outcome.IsBlockFull():
		linecount.LogOverflow(outcome, p.limits, result.CumulativeModuleCounts)
		return BlockFull{Module: outcome.Module()}
	}

	for _, addr := range result.PrecompilesCalled {
		module, ok := linecount.EffectiveCallsModule(addr)
		if !ok {
			continue
		}
		if limit, ok := p.limits[module]; ok && limit == 0 {
			return Invalid{Reason: "precompile " + addr.Hex() + " has zero per-block budget"}
		}
	}

	if result.Failed {
		if bctx == nil {
			return Invalid{Reason: "transaction reverted"}
		}
		if _, reverting := bctx.revertingTxHashes[tx.Hash()]; !reverting {
			return Invalid{Reason: "failed non-revertable transaction in bundle"}
		}
	}

	return Selected{}
}

// effectiveGasPrice is the total per-gas price the transaction would pay
// at header.BaseFee: the base fee plus whatever priority tip the
// transaction's fee cap still affords.
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	tip := tx.EffectiveGasTipValue(baseFee)
	return new(big.Int).Add(baseFee, tip)
}
