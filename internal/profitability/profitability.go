// Package profitability computes the lower-bound profitable priority fee
// per gas for a candidate transaction and decides whether an offered
// price clears that bound.
package profitability

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var ratioHistogram = metrics.NewRegisteredHistogram("sequencer/selector/profitability/ratio", nil, metrics.NewExpDecaySample(1028, 0.015))

// Compressor reduces a signed transaction's RLP encoding to its
// compressed byte size. The concrete compression algorithm (e.g. the
// sequencer's batch-submission compressor) lives outside the core; it is
// supplied by the host.
type Compressor interface {
	CompressedSize(txRLP []byte) (int, error)
}

// Inputs is the current pricing snapshot. FixedCostWei and
// VariableCostWei are always updated together by ReplacePricing so that
// readers never observe a torn pair.
type Inputs struct {
	FixedCostWei           *big.Int
	VariableCostWei        *big.Int
	MinMarginRatio         *big.Int
	ExtraDataPricingEnabled bool
}

// Calculator is safe for concurrent use: pricing Inputs are held behind
// an atomic pointer so a selection round can take a consistent snapshot
// while a pricing update from a new block header swaps in concurrently.
type Calculator struct {
	compressor Compressor
	pricing    atomicInputs
}

func NewCalculator(compressor Compressor, initial Inputs) *Calculator {
	c := &Calculator{compressor: compressor}
	c.ReplacePricing(initial)
	return c
}

// ReplacePricing atomically swaps the fixed+variable cost pair and the
// margin/flag fields together.
func (c *Calculator) ReplacePricing(in Inputs) {
	c.pricing.store(&in)
}

// Snapshot returns the pricing Inputs in effect for the current
// selection round. Callers should take one snapshot per round rather
// than re-reading per transaction, per the design notes on atomically
// updated pricing.
func (c *Calculator) Snapshot() Inputs {
	return *c.pricing.load()
}

// ProfitablePriorityFee computes the minimum per-gas tip a transaction
// must offer to be considered profitable under pricing.
//
//	profitable = minMargin * (variableCost * compressedSize / gas + fixedCost)
//
// gas is the gas used if known post-execution, else the transaction's
// gas limit. minGasPrice is used as the variable cost in place of
// pricing.VariableCostWei when extra-data pricing is disabled.
func (c *Calculator) ProfitablePriorityFee(tx *types.Transaction, pricing Inputs, gas uint64, minGasPrice *big.Int) (*big.Int, error) {
	compressedSize, err := c.compressor.CompressedSize(txRLP(tx))
	if err != nil {
		// The compressor is a fixed configuration dependency; a failure
		// to compress is a configuration error, not a per-tx outcome.
		log.Crit("transaction compressor failed", "tx", tx.Hash(), "err", err)
		return nil, err
	}

	variableCost := pricing.VariableCostWei
	if !pricing.ExtraDataPricingEnabled {
		variableCost = minGasPrice
	}

	gasBig := new(big.Int).SetUint64(gas)
	if gasBig.Sign() == 0 {
		gasBig = big.NewInt(1)
	}

	variableComponent := new(big.Int).Mul(variableCost, big.NewInt(int64(compressedSize)))
	variableComponent.Div(variableComponent, gasBig)

	total := new(big.Int).Add(variableComponent, pricing.FixedCostWei)
	total.Mul(total, pricing.MinMarginRatio)
	return total, nil
}

// IsProfitable returns whether payingGasPrice clears baseFee plus the
// profitable priority fee. It never returns an error: a compressor
// failure is fatal, since log.Crit inside ProfitablePriorityFee exits the
// process.
func (c *Calculator) IsProfitable(ctxLabel string, tx *types.Transaction, pricing Inputs, baseFee, payingGasPrice *big.Int, gas uint64, minGasPrice *big.Int) bool {
	fee, err := c.ProfitablePriorityFee(tx, pricing, gas, minGasPrice)
	if err != nil {
		return false
	}
	required := new(big.Int).Add(baseFee, fee)
	profitable := payingGasPrice.Cmp(required) >= 0

	recordRatio(ctxLabel, payingGasPrice, required)
	return profitable
}

func recordRatio(ctxLabel string, payingGasPrice, required *big.Int) {
	if required.Sign() == 0 {
		return
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(payingGasPrice), new(big.Float).SetInt(required))
	f64, _ := ratio.Float64()
	// Scale to basis points so the histogram deals in integers.
	ratioHistogram.Update(int64(f64 * 10_000))
	log.Trace("recorded profitability ratio", "ctx", ctxLabel, "ratio", f64)
}

func txRLP(tx *types.Transaction) []byte {
	raw, err := tx.MarshalBinary()
	if err != nil {
		// Transactions supplied by the host are always well-formed;
		// marshalling failure here indicates a corrupt in-memory object.
		log.Crit("failed to encode transaction for compression", "tx", tx.Hash(), "err", err)
	}
	return raw
}
