package selector

// Result is the tagged union spec.md calls TransactionSelectionResult.
// It is modeled as a Go interface with concrete result types rather than
// a mutable "result plus reason string", per the Design Notes.
type Result interface {
	isResult()
	// Terminal reports whether this result permanently removes the
	// candidate from the host pool (true) or merely defers it to a
	// later block (false).
	Terminal() bool
}

type (
	// Selected means the transaction was executed and committed into
	// the block being built.
	Selected struct{}

	// Invalid permanently drops the transaction from the host pool.
	Invalid struct{ Reason string }

	// TooLargeForGas permanently drops a transaction whose gas limit
	// alone exceeds the configured per-transaction ceiling.
	TooLargeForGas struct{}

	// ModuleOverflow permanently drops a transaction whose own line-count
	// delta for Module exceeds that module's per-transaction limit. Unlike
	// BlockFull, no later block can admit it, so this never defers.
	ModuleOverflow struct{ Module string }

	// BlockOccupancyAboveThreshold defers the remaining members of a
	// bundle once admitting the next one would exceed the bundle's
	// configured cumulative gas ceiling.
	BlockOccupancyAboveThreshold struct{}

	// BlobsFull defers a blob transaction when blob capacity for this
	// block is exhausted.
	BlobsFull struct{}

	// EvaluationTimeout defers a candidate whose host execution did not
	// complete within the configured per-transaction deadline.
	EvaluationTimeout struct{}

	// BlockFull defers a candidate because a module's cumulative total
	// would exceed its per-block ceiling, even though the candidate's
	// own delta is within the per-transaction ceiling.
	BlockFull struct{ Module string }

	// PreExecutionNotSelected defers a candidate for this block only,
	// for a reason determined before host execution (unprofitable,
	// bundle not yet active, etc).
	PreExecutionNotSelected struct{ Reason string }
)

func (Selected) isResult()                     {}
func (Invalid) isResult()                      {}
func (TooLargeForGas) isResult()               {}
func (ModuleOverflow) isResult()               {}
func (BlockOccupancyAboveThreshold) isResult() {}
func (BlobsFull) isResult()                    {}
func (EvaluationTimeout) isResult()            {}
func (BlockFull) isResult()                    {}
func (PreExecutionNotSelected) isResult()      {}

func (Selected) Terminal() bool                     { return false }
func (Invalid) Terminal() bool                      { return true }
func (TooLargeForGas) Terminal() bool               { return true }
func (ModuleOverflow) Terminal() bool               { return true }
func (BlockOccupancyAboveThreshold) Terminal() bool { return false }
func (BlobsFull) Terminal() bool                    { return false }
func (EvaluationTimeout) Terminal() bool            { return false }
func (BlockFull) Terminal() bool                    { return false }
func (PreExecutionNotSelected) Terminal() bool      { return false }
