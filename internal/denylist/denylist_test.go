package denylist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "deny.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyDenyListAllowsEverything(t *testing.T) {
	l, err := NewList("")
	require.NoError(t, err)
	require.False(t, l.Contains(common.HexToAddress("0xaaaa")))
}

func TestLoadAndContains(t *testing.T) {
	addr := common.HexToAddress("0x000000000000000000000000000000000000aa")
	path := writeFile(t, "", "  "+addr.Hex()+"  ", "")
	l, err := NewList(path)
	require.NoError(t, err)
	require.True(t, l.Contains(addr))
	require.False(t, l.Contains(common.HexToAddress("0xbb")))
}

func TestReloadReplacesSetAtomically(t *testing.T) {
	a := common.HexToAddress("0x1")
	b := common.HexToAddress("0x2")
	path := writeFile(t, a.Hex())
	l, err := NewList(path)
	require.NoError(t, err)
	require.True(t, l.Contains(a))
	require.False(t, l.Contains(b))

	require.NoError(t, os.WriteFile(path, []byte(b.Hex()+"\n"), 0o644))
	require.NoError(t, l.Reload())

	require.False(t, l.Contains(a))
	require.True(t, l.Contains(b))
}

func TestInvalidAddressRejected(t *testing.T) {
	path := writeFile(t, "not-an-address")
	_, err := NewList(path)
	require.Error(t, err)
}

func TestIsPrecompile(t *testing.T) {
	require.True(t, IsPrecompile(common.BytesToAddress([]byte{1})))
	require.True(t, IsPrecompile(common.BytesToAddress([]byte{9})))
	require.False(t, IsPrecompile(common.BytesToAddress([]byte{10})))
}
