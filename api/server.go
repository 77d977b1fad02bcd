package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
	"github.com/mantlenetworkio/sequencer-selector/internal/denylist"
)

var errMalformedBundle = errors.New("Malformed bundle, no bundle transactions present")

// Server exposes the admission-side JSON-RPC method set: SendBundle,
// CancelBundle, and ReloadPluginConfig. It holds no transport state of
// its own; a net/rpc- or net/http-based dispatcher wires these methods
// up to the wire per the host's existing RPC stack.
type Server struct {
	pool     *bundlepool.Pool
	denyList *denylist.List
	signer   types.Signer
}

func NewServer(pool *bundlepool.Pool, denyList *denylist.List, signer types.Signer) *Server {
	return &Server{pool: pool, denyList: denyList, signer: signer}
}

// SendBundle implements linea_sendBundle: decode and validate every
// member transaction, reject an already-expired bundle, and admit it
// into the pool under its content- or replacement-derived key.
func (s *Server) SendBundle(params SendBundleParams) (*SendBundleResult, error) {
	if len(params.Txs) == 0 {
		return nil, errMalformedBundle
	}

	blockNumber, err := hexutil.DecodeUint64(params.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("malformed linea_sendBundle json param: %w", err)
	}

	now := time.Now().Unix()
	ptxs := make([]bundlepool.PendingTransaction, len(params.Txs))
	for i, raw := range params.Txs {
		data, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed linea_sendBundle json param: %w", err)
		}
		var tx types.Transaction
		if err := tx.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("Invalid transaction: idx=%d,hash=%s,reason=%s", i, tx.Hash().Hex(), err)
		}
		from, err := types.Sender(s.signer, &tx)
		if err != nil {
			return nil, fmt.Errorf("Invalid transaction: idx=%d,hash=%s,reason=%s", i, tx.Hash().Hex(), err)
		}
		if s.denyList.Contains(from) {
			return nil, fmt.Errorf("sender %s is blocked as appearing on the SDN or other legally prohibited list", from.Hex())
		}
		ptxs[i] = bundlepool.PendingTransaction{Tx: &tx, ArrivedAt: now}
	}

	if params.MaxTimestamp != nil && *params.MaxTimestamp < now {
		return nil, errors.New("bundle max timestamp is in the past")
	}

	b := &bundlepool.Bundle{
		BlockNumber:  blockNumber,
		PendingTxs:   ptxs,
		MinTimestamp: params.MinTimestamp,
		MaxTimestamp: params.MaxTimestamp,
	}

	if len(params.RevertingTxHashes) > 0 {
		b.RevertingTxHashes = make(map[common.Hash]struct{}, len(params.RevertingTxHashes))
		for _, h := range params.RevertingTxHashes {
			b.RevertingTxHashes[common.HexToHash(h)] = struct{}{}
		}
	}

	if params.ReplacementUUID != nil {
		id, err := uuid.Parse(*params.ReplacementUUID)
		if err != nil {
			return nil, fmt.Errorf("malformed linea_sendBundle json param: %w", err)
		}
		b.ReplacementUUID = &id
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("malformed linea_sendBundle json param: %w", err)
	}

	key := bundlepool.KeyFor(b)
	s.pool.PutOrReplace(key, b)
	return &SendBundleResult{BundleHash: key.Hex()}, nil
}

// CancelBundle implements linea_cancelBundle: remove the bundle
// registered under the given replacement UUID, reporting whether one was
// found.
func (s *Server) CancelBundle(params CancelBundleParams) (bool, error) {
	id, err := uuid.Parse(params.ReplacementUUID)
	if err != nil {
		return false, fmt.Errorf("malformed linea_cancelBundle json param: %w", err)
	}
	return s.pool.Remove(bundlepool.KeyForUUID(id)), nil
}

// ReloadPluginConfig implements plugins_reloadPluginConfig: re-reads the
// deny-list file without restarting. pluginName is accepted for
// signature compatibility but this server only hosts the one plugin.
func (s *Server) ReloadPluginConfig(pluginName string) (string, error) {
	if err := s.denyList.Reload(); err != nil {
		return "", fmt.Errorf("failed to reload plugin %q: %w", pluginName, err)
	}
	return "Success", nil
}
