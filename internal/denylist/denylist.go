// Package denylist loads and atomically reloads the sender/recipient
// deny-list file, and exposes the hard-coded precompile address range
// that is always rejected as a direct-send destination.
package denylist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// List is an atomically-swappable set of denylisted addresses, reloaded
// wholesale on plugins_reloadPluginConfig without disturbing readers
// mid-lookup.
type List struct {
	path string
	set  atomic.Pointer[mapset.Set[common.Address]]
}

// NewList loads path once at construction. An empty path yields an
// always-empty list (deny-list is optional configuration).
func NewList(path string) (*List, error) {
	l := &List{path: path}
	if path == "" {
		empty := mapset.NewSet[common.Address]()
		l.set.Store(&empty)
		return l, nil
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the deny-list file and atomically replaces the active
// set. One lowercase hex address per line; leading/trailing whitespace
// and empty lines are ignored.
func (l *List) Reload() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("opening deny-list file %q: %w", l.path, err)
	}
	defer f.Close()

	next := mapset.NewSet[common.Address]()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !common.IsHexAddress(line) {
			return fmt.Errorf("deny-list file %q: invalid address %q", l.path, line)
		}
		next.Add(common.HexToAddress(line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading deny-list file %q: %w", l.path, err)
	}

	l.set.Store(&next)
	return nil
}

// Contains reports whether addr is currently denylisted.
func (l *List) Contains(addr common.Address) bool {
	s := l.set.Load()
	if s == nil {
		return false
	}
	return (*s).Contains(addr)
}

// precompileAddresses is the hard-coded set of addresses 0x01-0x09,
// always rejected as a direct-send destination regardless of the
// configured deny list.
var precompileAddresses = buildPrecompileSet()

func buildPrecompileSet() mapset.Set[common.Address] {
	s := mapset.NewSet[common.Address]()
	for i := byte(1); i <= 9; i++ {
		s.Add(common.BytesToAddress([]byte{i}))
	}
	return s
}

// IsPrecompile reports whether addr is one of the hard-coded precompile
// addresses rejected as a direct-send destination.
func IsPrecompile(addr common.Address) bool {
	return precompileAddresses.Contains(addr)
}
