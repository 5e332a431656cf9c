// Command gatewayd is a thin wiring example for the gateway control plane.
// It parses the flat configuration schema (spec.md section 6), derives the
// receipt signing keys, and starts the topology updater and admin HTTP
// surface. The registry and indexer HTTP clients are out-of-scope external
// collaborators (spec.md section 1); an embedder sets RegistryClient and
// IndexerClient before main runs, typically from an
// init() in a sibling file built alongside this one.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/graphops/gateway-core/config"
	"github.com/graphops/gateway-core/gateway"
	"github.com/graphops/gateway-core/gatewaylog"
	"github.com/graphops/gateway-core/receipts"
	"github.com/graphops/gateway-core/topology"
)

var log = gatewaylog.New("cmd.gatewayd")

// RegistryClient and IndexerClient are the out-of-scope collaborators this
// command needs to build a topology.Builder. An embedding application sets
// these (e.g. from an init() in its own main package, or by vendoring this
// file with the assignments filled in) before main runs.
var (
	RegistryClient topology.SubgraphRegistryClient
	IndexerClient  topology.IndexerHTTPClient
)

func main() {
	var (
		portAPI        = flag.Int("port-api", 7600, "query API port (out of scope; reserved)")
		portAdmin      = flag.Int("port-admin", 7601, "admin/status HTTP port")
		updateInterval = flag.Duration("update-interval", 30*time.Second, "topology updater tick period")
		retryLimit     = flag.Int("indexer-selection-retry-limit", 3, "selection retry limit")
		absenceLimit   = flag.Int("selection-factors-absence-limit", 3, "consecutive-absence eviction threshold")
		signerMnemonic = flag.String("signer-key", os.Getenv("GATEWAY_SIGNER_MNEMONIC"), "BIP-39 mnemonic for the TAP/legacy signing keys")
		chainID        = flag.Uint64("chain-id", 1, "EIP-712 domain chain id")
	)
	flag.Parse()

	if RegistryClient == nil || IndexerClient == nil {
		log.Fatalf("gatewayd.RegistryClient/IndexerClient not set: gatewayd is a wiring " +
			"example meant to be embedded with concrete registry/indexer clients, not run standalone")
	}

	cfg := config.Default()
	cfg.PortAPI = uint16(*portAPI)
	cfg.PortMetrics = uint16(*portAdmin)
	cfg.UpdateInterval = *updateInterval
	cfg.IndexerSelectionRetryLimit = *retryLimit
	cfg.SelectionFactorsAbsenceLimit = *absenceLimit
	cfg.ChainID = *chainID
	cfg.SignerMnemonic = *signerMnemonic

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.SignerMnemonic == "" {
		log.Fatalf("no signer mnemonic configured (-signer-key or GATEWAY_SIGNER_MNEMONIC)")
	}

	signerKey, err := receipts.DeriveSignerKey(cfg.SignerMnemonic)
	if err != nil {
		log.Fatalf("deriving TAP signer key: %v", err)
	}
	legacySignerKey, err := receipts.DeriveSignerKey(cfg.SignerMnemonic)
	if err != nil {
		log.Fatalf("deriving legacy signer key: %v", err)
	}
	cfg.SignerMnemonic = ""

	hosts := topology.NewHostResolver(net.DefaultResolver)
	versions := topology.NewVersionResolver(IndexerClient)
	progress := topology.NewProgressResolver(IndexerClient)
	costs := topology.NewCostModelResolver(IndexerClient)
	pois := topology.NewPoiResolver(IndexerClient)
	blocklists := topology.Blocklists{
		Address: topology.NewAddressBlocklist(nil),
		Host:    topology.NewHostBlocklist(nil),
		Poi:     topology.NewPoiBlocklist(nil),
	}
	buildCfg := topology.BuildConfig{
		MinIndexerVersion:   cfg.MinIndexerVersion,
		MinGraphNodeVersion: cfg.MinGraphNodeVersion,
		StaleBlocksBehind:   cfg.StaleBlocksBehind,
	}
	builder := topology.NewBuilder(RegistryClient, IndexerClient, hosts, versions, progress, costs, pois, blocklists, buildCfg)
	g := gateway.New(cfg, builder, signerKey, legacySignerKey)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go g.Run(ctx)

	log.Infof("gatewayd starting: admin port %d, update interval %s", cfg.PortMetrics, cfg.UpdateInterval)

	srv := &http.Server{Addr: ":" + strconv.Itoa(int(cfg.PortMetrics)), Handler: gateway.NewAdminRouter(g)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("admin server: %v", err)
	}
	fmt.Println("gatewayd stopped")
}
