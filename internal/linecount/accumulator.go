// Package linecount maintains the per-block cumulative zero-knowledge
// proving "line count" for every traces module and decides, for each
// post-execution candidate transaction, whether the block can still
// absorb it.
package linecount

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// precompileNames maps the standard Ethereum precompile addresses
// (0x01-0x0a) to the name used in their module's limits-file key. This
// is the address->name table the execution tracer's limits file and
// spec.md's own worked examples assume (e.g. address 0x05 is MODEXP, the
// module behind PRECOMPILE_MODEXP_EFFECTIVE_CALLS).
var precompileNames = map[common.Address]string{
	common.BytesToAddress([]byte{0x01}): "ECRECOVER",
	common.BytesToAddress([]byte{0x02}): "SHA256",
	common.BytesToAddress([]byte{0x03}): "RIPEMD160",
	common.BytesToAddress([]byte{0x04}): "IDENTITY",
	common.BytesToAddress([]byte{0x05}): "MODEXP",
	common.BytesToAddress([]byte{0x06}): "ECADD",
	common.BytesToAddress([]byte{0x07}): "ECMUL",
	common.BytesToAddress([]byte{0x08}): "ECPAIRING",
	common.BytesToAddress([]byte{0x09}): "BLAKE2F",
	common.BytesToAddress([]byte{0x0a}): "POINT_EVALUATION",
}

// EffectiveCallsModule returns the PRECOMPILE_<NAME>_EFFECTIVE_CALLS
// module key for a called precompile address, and whether addr is one
// of the recognized precompiles. An unrecognized address (not a
// precompile, or one this core does not track) reports ok=false so
// callers can skip it rather than probe a limits map with a bogus key.
func EffectiveCallsModule(addr common.Address) (module string, ok bool) {
	name, ok := precompileNames[addr]
	if !ok {
		return "", false
	}
	return "PRECOMPILE_" + name + "_EFFECTIVE_CALLS", true
}

// Limits is the fixed, immutable-after-load mapping from module name to
// its positive per-block ceiling.
type Limits map[string]int64

// Outcome is the tagged result of Verify. Exactly one of the Is* methods
// is true for any given (module, totals) pair.
type Outcome struct {
	kind   outcomeKind
	module string
}

type outcomeKind int

const (
	kindValid outcomeKind = iota
	kindTxOverflow
	kindBlockFull
	kindModuleUndefined
)

func (o Outcome) IsValid() bool           { return o.kind == kindValid }
func (o Outcome) IsTxOverflow() bool      { return o.kind == kindTxOverflow }
func (o Outcome) IsBlockFull() bool       { return o.kind == kindBlockFull }
func (o Outcome) IsModuleUndefined() bool { return o.kind == kindModuleUndefined }

// Module returns the module name associated with a non-Valid outcome.
func (o Outcome) Module() string { return o.module }

func valid() Outcome                    { return Outcome{kind: kindValid} }
func txOverflow(module string) Outcome  { return Outcome{kind: kindTxOverflow, module: module} }
func blockFull(module string) Outcome   { return Outcome{kind: kindBlockFull, module: module} }
func undefined(module string) Outcome   { return Outcome{kind: kindModuleUndefined, module: module} }

// Accumulator holds the running per-module totals for the block currently
// under construction. It is not safe for concurrent use; the selector
// pipeline owns a single accumulator per in-flight block build.
type Accumulator struct {
	limits  Limits
	current map[string]int64
}

// New constructs an Accumulator with zeroed totals for the given limits.
// limits must not be mutated afterwards.
func New(limits Limits) *Accumulator {
	return &Accumulator{
		limits:  limits,
		current: make(map[string]int64, len(limits)),
	}
}

// Verify is purely functional: it never mutates the accumulator. newTotals
// is the full set of cumulative counts the block would have if the
// current candidate were committed; modules it omits are treated as
// unchanged since the last commit.
func (a *Accumulator) Verify(newTotals map[string]int64) Outcome {
	for module, total := range newTotals {
		limit, ok := a.limits[module]
		if !ok {
			return undefined(module)
		}
		delta := total - a.current[module]
		if delta > limit {
			return txOverflow(module)
		}
		if total > limit {
			return blockFull(module)
		}
	}
	return valid()
}

// Commit replaces the current totals with newTotals. Callers must only
// invoke Commit after a Valid Verify result and after the host has
// confirmed the underlying transaction actually executed.
func (a *Accumulator) Commit(newTotals map[string]int64) {
	for module, total := range newTotals {
		a.current[module] = total
	}
}

// Reset zeroes all totals for a new block.
func (a *Accumulator) Reset() {
	a.current = make(map[string]int64, len(a.limits))
}

// Snapshot returns a copy of the current totals, used by the selector to
// roll a bundle group back to a known-good point.
func (a *Accumulator) Snapshot() map[string]int64 {
	snap := make(map[string]int64, len(a.current))
	for k, v := range a.current {
		snap[k] = v
	}
	return snap
}

// Restore replaces the current totals wholesale, used to roll back a
// failed bundle group to a prior Snapshot.
func (a *Accumulator) Restore(snapshot map[string]int64) {
	a.current = snapshot
}

// Current returns the committed total for a single module.
func (a *Accumulator) Current(module string) int64 {
	return a.current[module]
}

// LogOverflow writes the structured warning lines spec.md's end-to-end
// scenarios expect for the two permanent/deferred overflow outcomes.
// totals is the new_totals map passed to the Verify call that produced o.
func LogOverflow(o Outcome, limits Limits, totals map[string]int64) {
	switch {
	case o.IsTxOverflow():
		log.Warn(fmt.Sprintf("line count for module %s=%d is above the limit %d", o.module, totals[o.module], limits[o.module]))
	case o.IsBlockFull():
		log.Warn(fmt.Sprintf("Cumulated line count for module %s=%d is above the limit %d, stopping selection", o.module, totals[o.module], limits[o.module]))
	}
}
