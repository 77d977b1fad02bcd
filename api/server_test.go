package api

import (
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
	"github.com/mantlenetworkio/sequencer-selector/internal/denylist"
)

func newTestServer(t *testing.T, denyListPath string) (*Server, *bundlepool.Pool) {
	t.Helper()
	pool := bundlepool.NewPool(1 << 20)
	dl, err := denylist.NewList(denyListPath)
	require.NoError(t, err)
	return NewServer(pool, dl, types.HomesteadSigner{}), pool
}

func signedTxHex(t *testing.T, nonce uint64) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x0000000000000000000000000000000000000099")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      21_000,
		GasPrice: big.NewInt(1),
	})
	signed, err := types.SignTx(tx, types.HomesteadSigner{}, key)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	from, err := types.Sender(types.HomesteadSigner{}, signed)
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(raw), from
}

func TestSendBundle_MalformedEmptyTxs(t *testing.T) {
	s, _ := newTestServer(t, "")
	_, err := s.SendBundle(SendBundleParams{BlockNumber: "0x1"})
	require.EqualError(t, err, "Malformed bundle, no bundle transactions present")
}

func TestSendBundle_MalformedHexParam(t *testing.T) {
	s, _ := newTestServer(t, "")
	_, err := s.SendBundle(SendBundleParams{BlockNumber: "not-hex", Txs: []string{"0x00"}})
	require.Error(t, err)
}

func TestSendBundle_ExpiredMaxTimestampRejected(t *testing.T) {
	s, _ := newTestServer(t, "")
	txHex, _ := signedTxHex(t, 0)
	past := int64(1)
	_, err := s.SendBundle(SendBundleParams{
		BlockNumber:  "0x1",
		Txs:          []string{txHex},
		MaxTimestamp: &past,
	})
	require.EqualError(t, err, "bundle max timestamp is in the past")
}

func TestSendBundle_AdmitsAndReturnsBundleHash(t *testing.T) {
	s, pool := newTestServer(t, "")
	txHex, _ := signedTxHex(t, 0)

	result, err := s.SendBundle(SendBundleParams{BlockNumber: "0xa", Txs: []string{txHex}})
	require.NoError(t, err)
	require.NotEmpty(t, result.BundleHash)
	require.Len(t, pool.BundlesForBlock(10), 1)
}

func TestCancelBundle_RemovesByReplacementUUID(t *testing.T) {
	s, pool := newTestServer(t, "")
	txHex, _ := signedTxHex(t, 0)
	uuidStr := "11111111-2222-3333-4444-555555555555"

	_, err := s.SendBundle(SendBundleParams{
		BlockNumber:     "0xa",
		Txs:             []string{txHex},
		ReplacementUUID: &uuidStr,
	})
	require.NoError(t, err)
	require.Len(t, pool.BundlesForBlock(10), 1)

	found, err := s.CancelBundle(CancelBundleParams{ReplacementUUID: uuidStr})
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, pool.BundlesForBlock(10), 0)
}

func TestSendBundle_DenylistedSenderRejectedAfterReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "denylist.txt")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	s, _ := newTestServer(t, path)
	txHex, from := signedTxHex(t, 0)

	_, err := s.SendBundle(SendBundleParams{BlockNumber: "0x1", Txs: []string{txHex}})
	require.NoError(t, err, "empty deny list allows the sender through")

	require.NoError(t, os.WriteFile(path, []byte(from.Hex()+"\n"), 0o644))
	result, err := s.ReloadPluginConfig("denylist")
	require.NoError(t, err)
	require.Equal(t, "Success", result)

	txHex2, _ := signedTxHex(t, 1)
	_, err = s.SendBundle(SendBundleParams{BlockNumber: "0x1", Txs: []string{txHex2}})
	require.NoError(t, err, "a freshly generated key is unaffected by the reload")

	_, err = s.SendBundle(SendBundleParams{BlockNumber: "0x1", Txs: []string{txHex}})
	require.ErrorContains(t, err, "is blocked as appearing on the SDN")
}
