// Command sequencer-selector is the composition root: it loads
// configuration, wires the bundle pool, deny list, rejected-tx reporter,
// bundle forwarder, and admission JSON-RPC server together, and serves
// the admission API over HTTP. The SelectorPipeline itself is wired in
// by the host process embedding this module, since it needs a concrete
// Executor bound to the host's EVM state — building block candidates
// against real chain state is explicitly outside this core's scope.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/sequencer-selector/api"
	"github.com/mantlenetworkio/sequencer-selector/internal/bundlepool"
	"github.com/mantlenetworkio/sequencer-selector/internal/config"
	"github.com/mantlenetworkio/sequencer-selector/internal/denylist"
	"github.com/mantlenetworkio/sequencer-selector/internal/forwarder"
	"github.com/mantlenetworkio/sequencer-selector/internal/rejectedtx"
)

var (
	moduleLimitFilePathFlag = &cli.StringFlag{
		Name:  "module-limit-file-path",
		Usage: "Path to the TOML file defining per-module line-count limits",
	}
	denyListPathFlag = &cli.StringFlag{
		Name:  "deny-list-path",
		Usage: "Path to the deny-list file, one lowercase hex address per line",
	}
	txPoolSimulationCheckAPIEnabledFlag = &cli.BoolFlag{
		Name:  "tx-pool-simulation-check-api-enabled",
		Usage: "Enable the tx-pool simulation check API",
	}
	bundlesForwardURLsFlag = &cli.StringFlag{
		Name:  "bundles-forward-urls",
		Usage: "Comma-separated URLs to forward every admitted bundle to",
	}
	rejectedTxEndpointFlag = &cli.StringFlag{
		Name:  "rejected-tx-endpoint",
		Usage: "URL the rejected-tx reporter POSTs rejection notifications to",
	}
	blobTxEnabledFlag = &cli.BoolFlag{
		Name:  "blob-tx-enabled",
		Usage: "Admit blob-carrying transactions",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "data-dir",
		Usage: "Directory holding the rejected-tx reporter's durable queue (rej_tx_rpc/ subdirectory)",
		Value: "./data",
	}
	listenAddrFlag = &cli.StringFlag{
		Name:  "listen-addr",
		Usage: "Address the admission JSON-RPC HTTP server listens on",
		Value: "127.0.0.1:8551",
	}
	maxTxGasFlag = &cli.Uint64Flag{
		Name:  "max-tx-gas",
		Usage: "Per-transaction gas ceiling",
		Value: config.DefaultSelectorConfig.MaxTxGas,
	}
	maxBundleGasFlag = &cli.Uint64Flag{
		Name:  "max-bundle-gas-per-block",
		Usage: "Cumulative gas ceiling for a single bundle",
		Value: config.DefaultSelectorConfig.MaxBundleGasPerBlock,
	}
	perTxEvaluationDeadlineFlag = &cli.DurationFlag{
		Name:  "per-tx-evaluation-deadline",
		Usage: "Host execution deadline per candidate transaction",
		Value: config.DefaultSelectorConfig.PerTxEvaluationDeadline,
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "Chain ID the signer recovers senders against",
		Value: config.DefaultSelectorConfig.ChainID,
	}
)

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)))

	app := cli.NewApp()
	app.Name = "sequencer-selector"
	app.Usage = "block-building transaction selection sidecar"
	app.Flags = []cli.Flag{
		moduleLimitFilePathFlag,
		denyListPathFlag,
		txPoolSimulationCheckAPIEnabledFlag,
		bundlesForwardURLsFlag,
		rejectedTxEndpointFlag,
		blobTxEnabledFlag,
		dataDirFlag,
		listenAddrFlag,
		maxTxGasFlag,
		maxBundleGasFlag,
		perTxEvaluationDeadlineFlag,
		chainIDFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultSelectorConfig
	cfg.ModuleLimitFilePath = c.String(moduleLimitFilePathFlag.Name)
	cfg.DenyListPath = c.String(denyListPathFlag.Name)
	cfg.TxPoolSimulationCheckAPIEnabled = c.Bool(txPoolSimulationCheckAPIEnabledFlag.Name)
	cfg.RejectedTxEndpoint = c.String(rejectedTxEndpointFlag.Name)
	cfg.BlobTxEnabled = c.Bool(blobTxEnabledFlag.Name)
	cfg.MaxTxGas = c.Uint64(maxTxGasFlag.Name)
	cfg.MaxBundleGasPerBlock = c.Uint64(maxBundleGasFlag.Name)
	cfg.PerTxEvaluationDeadline = c.Duration(perTxEvaluationDeadlineFlag.Name)
	cfg.ChainID = c.Uint64(chainIDFlag.Name)
	if urls := c.String(bundlesForwardURLsFlag.Name); urls != "" {
		cfg.BundlesForwardURLs = strings.Split(urls, ",")
	}
	log.Info("starting sequencer-selector", "config", cfg.String())

	limits, err := config.LoadModuleLimits(cfg.ModuleLimitFilePath)
	if err != nil {
		return fmt.Errorf("load module limits: %w", err)
	}

	denyList, err := denylist.NewList(cfg.DenyListPath)
	if err != nil {
		return fmt.Errorf("load deny list: %w", err)
	}

	pool := bundlepool.NewPool(256 << 20)

	dataDir := c.String(dataDirFlag.Name)
	reporter, err := rejectedtx.NewReporter(dataDir+"/rej_tx_rpc", cfg.RejectedTxEndpoint, nil)
	if err != nil {
		return fmt.Errorf("start rejected-tx reporter: %w", err)
	}
	defer reporter.Stop()

	if len(cfg.BundlesForwardURLs) > 0 {
		fwd := forwarder.NewForwarder(cfg.BundlesForwardURLs, nil)
		fwd.Subscribe(pool)
		defer fwd.Stop()
	}

	server := api.NewServer(pool, denyList, cfg.Signer())
	handler := api.NewHandler(server)

	httpServer := &http.Server{
		Addr:         c.String(listenAddrFlag.Name),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("admission JSON-RPC server listening", "addr", httpServer.Addr, "modules", len(limits))
	return httpServer.ListenAndServe()
}
