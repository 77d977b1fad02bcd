package rejectedtx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/sequencer-selector/internal/rejection"
)

func sampleReport(reason string) rejection.Report {
	return rejection.Report{
		Stage:          rejection.StageSequencer,
		Timestamp:      time.Now().UTC(),
		TransactionRLP: "0xdeadbeef",
		Reason:         reason,
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestNewReporter_SecondInstanceFailsToLockSameDirectory(t *testing.T) {
	dir := t.TempDir()
	r, err := NewReporter(dir, "http://unused.invalid", nil)
	require.NoError(t, err)
	defer r.Stop()

	_, err = NewReporter(dir, "http://unused.invalid", nil)
	require.Error(t, err)
}

func TestReport_PersistsSubmitsAndDeletesOnAcknowledgement(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		received.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"status":"SAVED"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r, err := NewReporter(dir, srv.URL, nil)
	require.NoError(t, err)
	defer r.Stop()

	r.Report(sampleReport("unit test rejection"))

	waitForCondition(t, 2*time.Second, func() bool { return received.Load() == 1 })
	waitForCondition(t, 2*time.Second, func() bool {
		files, _ := scanDir(dir)
		return len(files) == 0
	})
}

func TestReport_RetriesAfterFailureThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"status":"SAVED"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r, err := NewReporter(dir, srv.URL, nil)
	require.NoError(t, err)
	defer r.Stop()

	r.Report(sampleReport("transient failure then success"))

	waitForCondition(t, 5*time.Second, func() bool { return attempts.Load() >= 2 })
	waitForCondition(t, 5*time.Second, func() bool {
		files, _ := scanDir(dir)
		return len(files) == 0
	})
}

func TestStartupRescan_RecoversFileFromPriorProcess(t *testing.T) {
	dir := t.TempDir()
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		received.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"status":"SAVED"}}`))
	}))
	defer srv.Close()

	path, err := writeReportFile(dir, time.Now().UnixMilli(), 1, sampleReport("left over from a killed process"))
	require.NoError(t, err)
	require.FileExists(t, path)

	r, err := NewReporter(dir, srv.URL, nil)
	require.NoError(t, err)
	defer r.Stop()

	waitForCondition(t, 2*time.Second, func() bool { return received.Load() == 1 })
	waitForCondition(t, 2*time.Second, func() bool {
		files, _ := scanDir(dir)
		return len(files) == 0
	})
}

func TestWriteReportFile_CreateNewSemanticsRejectDuplicateName(t *testing.T) {
	dir := t.TempDir()
	_, err := writeReportFile(dir, 1_700_000_000_000, 1, sampleReport("first"))
	require.NoError(t, err)

	_, err = writeReportFile(dir, 1_700_000_000_000, 1, sampleReport("second"))
	require.Error(t, err)
}

func TestScanDir_OrdersByFilename(t *testing.T) {
	dir := t.TempDir()
	_, err := writeReportFile(dir, 1_700_000_000_000, 2, sampleReport("second"))
	require.NoError(t, err)
	_, err = writeReportFile(dir, 1_700_000_000_000, 1, sampleReport("first"))
	require.NoError(t, err)

	files, err := scanDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, filepath.Join(dir, "rpc_1700000000000_1.json"), files[0])
	require.Equal(t, filepath.Join(dir, "rpc_1700000000000_2.json"), files[1])
}

func TestWriteReportFile_BodyIsJSONRPCEnvelope(t *testing.T) {
	dir := t.TempDir()
	path, err := writeReportFile(dir, 1_700_000_000_000, 1, sampleReport("envelope check"))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded jsonrpcRequest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "2.0", decoded.JSONRPC)
	require.Equal(t, saveRejectedTxMethod, decoded.Method)
	require.Len(t, decoded.Params, 1)
}
