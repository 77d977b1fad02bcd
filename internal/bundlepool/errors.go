package bundlepool

import "errors"

var (
	errEmptyBundle     = errors.New("malformed bundle, no bundle transactions present")
	errZeroBlockNumber = errors.New("bundle block number must be greater than zero")
	errMinAfterMax     = errors.New("bundle max timestamp is before min timestamp")
)
