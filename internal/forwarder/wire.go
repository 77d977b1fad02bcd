package forwarder

import (
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/sequencer-selector/api"
	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
)

const sendBundleMethod = "linea_sendBundle"

// buildSendBundleBody encodes b as a linea_sendBundle JSON-RPC request,
// the same shape used for inbound admission, per the bundle forward
// endpoint's external-interface contract.
func buildSendBundleBody(b *bundlepool.Bundle, id uint64) ([]byte, error) {
	params := api.SendBundleParams{
		BlockNumber: "0x" + strconv.FormatUint(b.BlockNumber, 16),
	}

	for _, ptx := range b.PendingTxs {
		raw, err := ptx.Tx.MarshalBinary()
		if err != nil {
			log.Error("failed to encode bundle transaction for forwarding", "tx", ptx.Tx.Hash(), "err", err)
			return nil, err
		}
		params.Txs = append(params.Txs, "0x"+hex.EncodeToString(raw))
	}

	if b.MinTimestamp != nil {
		v := *b.MinTimestamp
		params.MinTimestamp = &v
	}
	if b.MaxTimestamp != nil {
		v := *b.MaxTimestamp
		params.MaxTimestamp = &v
	}
	for h := range b.RevertingTxHashes {
		params.RevertingTxHashes = append(params.RevertingTxHashes, h.Hex())
	}
	if b.ReplacementUUID != nil {
		s := b.ReplacementUUID.String()
		params.ReplacementUUID = &s
	}

	return json.Marshal(struct {
		JSONRPC string                 `json:"jsonrpc"`
		Method  string                 `json:"method"`
		Params  []api.SendBundleParams `json:"params"`
		ID      uint64                 `json:"id"`
	}{
		JSONRPC: "2.0",
		Method:  sendBundleMethod,
		Params:  []api.SendBundleParams{params},
		ID:      id,
	})
}
