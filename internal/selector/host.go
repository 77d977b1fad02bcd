package selector

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockHeader is the opaque pending block header the host invokes the
// selector with. The core never constructs or mutates it.
type BlockHeader struct {
	Number   uint64
	BaseFee  *big.Int
	Time     uint64
	GasLimit uint64
}

// ProcessingResult is what the host returns after tentatively executing
// a candidate against its state delta.
type ProcessingResult struct {
	Failed                 bool
	GasUsed                uint64
	CumulativeModuleCounts map[string]int64
	// PrecompilesCalled lists every precompile address the transaction
	// invoked, as observed by the host's execution tracer.
	PrecompilesCalled []common.Address
}

// Executor runs a candidate transaction against a tentative state delta
// and reports the outcome. The EVM itself is an explicit non-goal of
// this core; Executor is the seam the host implements.
type Executor interface {
	Execute(ctx context.Context, header BlockHeader, tx *types.Transaction) (ProcessingResult, error)
}

// MinGasPriceSource supplies the current minimum gas price, used by the
// profitability calculator when extra-data pricing is disabled.
type MinGasPriceSource interface {
	MinGasPrice() *big.Int
}
