package rejectedtx

import "github.com/ethereum/go-ethereum/metrics"

// metrics
var (
	QueueDepthGauge   = metrics.NewRegisteredGauge("rejectedtx/queue/depth", nil)
	SubmitSuccessMeter = metrics.NewRegisteredMeter("rejectedtx/submit/success", nil)
	SubmitFailureMeter = metrics.NewRegisteredMeter("rejectedtx/submit/failure", nil)
	AbandonedMeter     = metrics.NewRegisteredMeter("rejectedtx/abandoned", nil)
	SubmitTimer        = metrics.NewRegisteredTimer("rejectedtx/submit", nil)
)
