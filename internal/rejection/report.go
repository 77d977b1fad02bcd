// Package rejection defines the RejectionReport shared between the
// selector pipeline (producer) and the rejected-tx reporter (consumer).
package rejection

import "time"

// Stage identifies where in the pipeline a transaction was rejected.
type Stage string

const (
	StageSequencer Stage = "SEQUENCER"
	StageRPC       Stage = "RPC"
	StageP2P       Stage = "P2P"
)

// Overflow records a single module's observed count against its limit,
// for rejections caused by a line-count overflow.
type Overflow struct {
	Module string `json:"module"`
	Count  int64  `json:"count"`
	Limit  int64  `json:"limit"`
}

// Report is the durable record the RejectedTxReporter persists and
// forwards for every permanently dropped transaction.
type Report struct {
	Stage          Stage      `json:"stage"`
	Timestamp      time.Time  `json:"timestamp"`
	BlockNumber    *uint64    `json:"blockNumber,omitempty"`
	TransactionRLP string     `json:"transactionRlp"`
	Reason         string     `json:"reason"`
	Overflows      []Overflow `json:"overflows,omitempty"`
}
