package profitability

import (
	"math/big"
	"sync/atomic"
)

func zero() *big.Int { return big.NewInt(0) }
func one() *big.Int  { return big.NewInt(1) }

// atomicInputs wraps atomic.Pointer[Inputs] so Inputs is always read and
// written as a whole snapshot, never field-by-field.
type atomicInputs struct {
	ptr atomic.Pointer[Inputs]
}

func (a *atomicInputs) store(in *Inputs) { a.ptr.Store(in) }

func (a *atomicInputs) load() *Inputs {
	if v := a.ptr.Load(); v != nil {
		return v
	}
	return &Inputs{FixedCostWei: zero(), VariableCostWei: zero(), MinMarginRatio: one()}
}
