package forwarder

import "github.com/ethereum/go-ethereum/metrics"

// metrics
var (
	QueueDepthGauge    = metrics.NewRegisteredGauge("forwarder/queue/depth", nil)
	SubmitSuccessMeter = metrics.NewRegisteredMeter("forwarder/submit/success", nil)
	SubmitFailureMeter = metrics.NewRegisteredMeter("forwarder/submit/failure", nil)
	SubmitTimer        = metrics.NewRegisteredTimer("forwarder/submit", nil)
)
