package rejectedtx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// jsonrpcRequest is the literal request body persisted to disk and POSTed
// to the rejected-tx endpoint: method linea_saveRejectedTransactionV1,
// a single RejectionReport parameter.
type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

const saveRejectedTxMethod = "linea_saveRejectedTransactionV1"

// filename returns the create-new filename for a report persisted at
// epochMillis with the given monotonically increasing sequence.
func filename(epochMillis int64, sequence uint64) string {
	return fmt.Sprintf("rpc_%d_%d.json", epochMillis, sequence)
}

// writeReportFile marshals report as a linea_saveRejectedTransactionV1
// JSON-RPC request body and persists it under dir with create-new
// semantics, so a concurrent writer using the same name can never clobber
// an in-flight retry.
func writeReportFile(dir string, epochMillis int64, sequence uint64, report interface{}) (string, error) {
	body, err := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		Method:  saveRejectedTxMethod,
		Params:  []interface{}{report},
		ID:      1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal rejection report: %w", err)
	}

	path := filepath.Join(dir, filename(epochMillis, sequence))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}

// scanDir returns every pending report file in dir, in filename order, so
// a restarted reporter resubmits in the order reports were originally
// persisted.
func scanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasPrefix(e.Name(), "rpc_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
