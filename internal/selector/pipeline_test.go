package selector

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
	"github.com/mantlenetworkio/sequencer-selector/internal/config"
	"github.com/mantlenetworkio/sequencer-selector/internal/denylist"
	"github.com/mantlenetworkio/sequencer-selector/internal/linecount"
	"github.com/mantlenetworkio/sequencer-selector/internal/profitability"
	"github.com/mantlenetworkio/sequencer-selector/internal/rejection"
)

// --- test doubles ---

type fixedCompressor struct{ size int }

func (f fixedCompressor) CompressedSize([]byte) (int, error) { return f.size, nil }

type fakeExecutor struct {
	fn    func(tx *types.Transaction) (ProcessingResult, error)
	calls int
}

func (f *fakeExecutor) Execute(_ context.Context, _ BlockHeader, tx *types.Transaction) (ProcessingResult, error) {
	f.calls++
	return f.fn(tx)
}

type fixedMinGas struct{ price *big.Int }

func (f fixedMinGas) MinGasPrice() *big.Int { return f.price }

type recordingSink struct{ reports []rejection.Report }

func (r *recordingSink) Report(rep rejection.Report) { r.reports = append(r.reports, rep) }

// --- fixtures ---

func newSignedTx(t *testing.T, nonce uint64, gas uint64, gasPrice int64) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x0000000000000000000000000000000000000042")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: big.NewInt(gasPrice),
		Data:     nil,
	})
	signed, err := types.SignTx(tx, types.HomesteadSigner{}, key)
	require.NoError(t, err)
	return signed
}

func profitablePricing() profitability.Inputs {
	return profitability.Inputs{
		FixedCostWei:            big.NewInt(0),
		VariableCostWei:         big.NewInt(0),
		MinMarginRatio:          big.NewInt(1),
		ExtraDataPricingEnabled: true,
	}
}

func unprofitablePricing() profitability.Inputs {
	return profitability.Inputs{
		FixedCostWei:            big.NewInt(1_000_000_000_000),
		VariableCostWei:         big.NewInt(0),
		MinMarginRatio:          big.NewInt(1),
		ExtraDataPricingEnabled: true,
	}
}

func newTestPipeline(t *testing.T, pricing profitability.Inputs, executor *fakeExecutor, sink *recordingSink) (*Pipeline, *bundlepool.Pool) {
	t.Helper()
	calc := profitability.NewCalculator(fixedCompressor{size: 0}, pricing)
	pool := bundlepool.NewPool(1 << 20)
	denyList, err := denylist.NewList("")
	require.NoError(t, err)

	limits := linecount.Limits{"MODULE_X": 16}
	cfg := config.SelectorConfig{
		MaxTxGas:             1_000_000,
		MaxBundleGasPerBlock: 1_000_000,
		BlobTxEnabled:        false,
	}

	p := NewPipeline(cfg, limits, calc, pool, denyList, types.HomesteadSigner{}, executor, fixedMinGas{price: big.NewInt(1)}, sink)
	return p, pool
}

func header(n uint64) BlockHeader {
	return BlockHeader{Number: n, BaseFee: big.NewInt(0), Time: 1, GasLimit: 30_000_000}
}

// --- scenarios ---

func TestSelectForBlock_BundleFullySelected(t *testing.T) {
	exec := &fakeExecutor{fn: func(tx *types.Transaction) (ProcessingResult, error) {
		return ProcessingResult{Failed: false, GasUsed: tx.Gas(), CumulativeModuleCounts: map[string]int64{"MODULE_X": 1}}, nil
	}}
	sink := &recordingSink{}
	p, pool := newTestPipeline(t, profitablePricing(), exec, sink)

	tx1 := newSignedTx(t, 0, 21_000, 1)
	tx2 := newSignedTx(t, 1, 21_000, 1)
	b := &bundlepool.Bundle{
		BlockNumber: 10,
		PendingTxs:  []bundlepool.PendingTransaction{{Tx: tx1}, {Tx: tx2}},
	}
	pool.PutOrReplace(bundlepool.KeyFor(b), b)

	decisions := p.SelectForBlock(context.Background(), header(10), nil)
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		require.IsType(t, Selected{}, d.Result)
	}
	require.Empty(t, sink.reports)
}

func TestSelectForBlock_UnprofitableDefersWithoutReport(t *testing.T) {
	exec := &fakeExecutor{fn: func(tx *types.Transaction) (ProcessingResult, error) {
		t.Fatal("executor must not run for a candidate rejected pre-execution")
		return ProcessingResult{}, nil
	}}
	sink := &recordingSink{}
	p, _ := newTestPipeline(t, unprofitablePricing(), exec, sink)

	tx := newSignedTx(t, 0, 21_000, 1)
	decisions := p.SelectForBlock(context.Background(), header(10), []*types.Transaction{tx})

	require.Len(t, decisions, 1)
	require.Equal(t, PreExecutionNotSelected{Reason: "unprofitable"}, decisions[0].Result)
	require.False(t, decisions[0].Result.Terminal())
	require.Empty(t, sink.reports)
}

func TestSelectForBlock_PerTxModuleOverflowReported(t *testing.T) {
	exec := &fakeExecutor{fn: func(tx *types.Transaction) (ProcessingResult, error) {
		return ProcessingResult{CumulativeModuleCounts: map[string]int64{"MODULE_X": 50}}, nil
	}}
	sink := &recordingSink{}
	p, _ := newTestPipeline(t, profitablePricing(), exec, sink)

	tx := newSignedTx(t, 0, 21_000, 1)
	decisions := p.SelectForBlock(context.Background(), header(10), []*types.Transaction{tx})

	require.Len(t, decisions, 1)
	require.Equal(t, ModuleOverflow{Module: "MODULE_X"}, decisions[0].Result)
	require.True(t, decisions[0].Result.Terminal())

	require.Len(t, sink.reports, 1)
	require.Equal(t, []rejection.Overflow{{Module: "MODULE_X", Count: 50, Limit: 16}}, sink.reports[0].Overflows)
}

func TestSelectForBlock_BlockFullDefersSeventeenth(t *testing.T) {
	var total int64
	exec := &fakeExecutor{fn: func(tx *types.Transaction) (ProcessingResult, error) {
		total++
		return ProcessingResult{CumulativeModuleCounts: map[string]int64{"MODULE_X": total}}, nil
	}}
	sink := &recordingSink{}
	p, _ := newTestPipeline(t, profitablePricing(), exec, sink)

	pending := make([]*types.Transaction, 17)
	for i := range pending {
		pending[i] = newSignedTx(t, uint64(i), 21_000, 1)
	}

	decisions := p.SelectForBlock(context.Background(), header(10), pending)
	require.Len(t, decisions, 17)

	for i := 0; i < 16; i++ {
		require.IsTypef(t, Selected{}, decisions[i].Result, "decision %d", i)
	}
	require.Equal(t, BlockFull{Module: "MODULE_X"}, decisions[16].Result)
	require.False(t, decisions[16].Result.Terminal())
	require.Empty(t, sink.reports, "BlockFull defers rather than permanently rejects, so it must not be reported")
}

func TestSelectForBlock_ZeroBudgetPrecompileCallRejected(t *testing.T) {
	modexp := common.BytesToAddress([]byte{0x05})
	exec := &fakeExecutor{fn: func(tx *types.Transaction) (ProcessingResult, error) {
		return ProcessingResult{
			CumulativeModuleCounts: map[string]int64{"MODULE_X": 1},
			PrecompilesCalled:      []common.Address{modexp},
		}, nil
	}}
	sink := &recordingSink{}
	calc := profitability.NewCalculator(fixedCompressor{size: 0}, profitablePricing())
	pool := bundlepool.NewPool(1 << 20)
	denyList, err := denylist.NewList("")
	require.NoError(t, err)

	limits := linecount.Limits{"MODULE_X": 16, "PRECOMPILE_MODEXP_EFFECTIVE_CALLS": 0}
	cfg := config.SelectorConfig{MaxTxGas: 1_000_000, MaxBundleGasPerBlock: 1_000_000}
	p := NewPipeline(cfg, limits, calc, pool, denyList, types.HomesteadSigner{}, exec, fixedMinGas{price: big.NewInt(1)}, sink)

	tx := newSignedTx(t, 0, 21_000, 1)
	decisions := p.SelectForBlock(context.Background(), header(10), []*types.Transaction{tx})

	require.Len(t, decisions, 1)
	require.Equal(t, Invalid{Reason: "precompile " + modexp.Hex() + " has zero per-block budget"}, decisions[0].Result)
	require.True(t, decisions[0].Result.Terminal())
	require.Len(t, sink.reports, 1)
}

func TestSelectForBlock_BundleAtomicityOnUnexpectedRevert(t *testing.T) {
	exec := &fakeExecutor{fn: func(tx *types.Transaction) (ProcessingResult, error) {
		if tx.Nonce() == 1 {
			return ProcessingResult{Failed: true, CumulativeModuleCounts: map[string]int64{"MODULE_X": 1}}, nil
		}
		return ProcessingResult{Failed: false, CumulativeModuleCounts: map[string]int64{"MODULE_X": 1}}, nil
	}}
	sink := &recordingSink{}
	p, pool := newTestPipeline(t, profitablePricing(), exec, sink)

	tx1 := newSignedTx(t, 0, 21_000, 1)
	tx2 := newSignedTx(t, 1, 21_000, 1)
	b := &bundlepool.Bundle{
		BlockNumber:       10,
		PendingTxs:        []bundlepool.PendingTransaction{{Tx: tx1}, {Tx: tx2}},
		RevertingTxHashes: map[common.Hash]struct{}{},
	}
	pool.PutOrReplace(bundlepool.KeyFor(b), b)

	decisions := p.SelectForBlock(context.Background(), header(10), nil)
	require.Len(t, decisions, 2)

	for _, d := range decisions {
		require.NotEqual(t, Selected{}, d.Result, "no bundle member may surface as included once a sibling breaks atomicity")
		require.IsType(t, Invalid{}, d.Result, "rolled-back members must report Invalid")
	}
	require.Equal(t, Invalid{Reason: "bundle rolled back"}, decisions[0].Result)
	require.Equal(t, Invalid{Reason: "failed non-revertable transaction in bundle"}, decisions[1].Result)

	require.Len(t, sink.reports, 1, "a rolled-back bundle is reported exactly once, not per member")
	require.NotNil(t, sink.reports[0].BlockNumber)
	require.Equal(t, uint64(10), *sink.reports[0].BlockNumber)
}
