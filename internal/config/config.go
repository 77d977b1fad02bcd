package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultSelectorConfig mirrors the teacher's convention of a package-
// level Default<X>Config value alongside the struct it configures.
var DefaultSelectorConfig = SelectorConfig{
	ModuleLimitFilePath:           "",
	DenyListPath:                  "",
	BundlesForwardURLs:            nil,
	RejectedTxEndpoint:            "",
	BlobTxEnabled:                 false,
	ChainID:                       1,
	MaxTxGas:                      30_000_000,
	MaxBundleGasPerBlock:          30_000_000,
	PerTxEvaluationDeadline:       2 * time.Second,
	TxPoolSimulationCheckAPIEnabled: false,
}

// SelectorConfig is the selector's runtime configuration, assembled at
// the composition root from CLI flags (see cmd/sequencer-selector).
type SelectorConfig struct {
	ModuleLimitFilePath             string
	DenyListPath                    string
	BundlesForwardURLs              []string
	RejectedTxEndpoint              string
	BlobTxEnabled                   bool
	// ChainID selects the signer used for sender recovery (see Signer
	// below): it must match the chain the submitted transactions were
	// signed for, or every EIP-155 transaction fails recovery.
	ChainID                         uint64
	MaxTxGas                        uint64
	MaxBundleGasPerBlock            uint64
	PerTxEvaluationDeadline         time.Duration
	TxPoolSimulationCheckAPIEnabled bool
}

func (c *SelectorConfig) String() string {
	return fmt.Sprintf(
		"ModuleLimitFilePath: %s, DenyListPath: %s, BundlesForwardURLs: %v, RejectedTxEndpoint: %s, BlobTxEnabled: %t, ChainID: %d, MaxTxGas: %d, MaxBundleGasPerBlock: %d, PerTxEvaluationDeadline: %s",
		c.ModuleLimitFilePath, c.DenyListPath, c.BundlesForwardURLs, c.RejectedTxEndpoint, c.BlobTxEnabled, c.ChainID, c.MaxTxGas, c.MaxBundleGasPerBlock, c.PerTxEvaluationDeadline)
}

// Signer returns the chain-ID-aware signer sender recovery must use for
// this configuration. types.HomesteadSigner cannot recover a sender for
// access-list, dynamic-fee, or blob transactions, three of the four
// transaction types this core must accept, so every call site that needs
// a Signer is threaded through here rather than hardcoding one.
func (c *SelectorConfig) Signer() types.Signer {
	return types.LatestSignerForChainID(new(big.Int).SetUint64(c.ChainID))
}

// AllowedTxTypes returns the transaction-type whitelist: blob
// transactions are gated by BlobTxEnabled, everything else pre-Cancun is
// always allowed.
func (c *SelectorConfig) AllowedTxTypes() map[uint8]bool {
	allowed := map[uint8]bool{
		types.LegacyTxType:     true,
		types.AccessListTxType: true,
		types.DynamicFeeTxType: true,
		types.BlobTxType:       c.BlobTxEnabled,
	}
	return allowed
}
