// Command prover runs the proving worker: the claim -> compute -> persist
// loop plus its JSON-RPC surface (wake, health_check,
// get_image_id_contract).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ttc-protocol/ttc-monitor/chainclient"
	"github.com/ttc-protocol/ttc-monitor/config"
	"github.com/ttc-protocol/ttc-monitor/jobstore"
	"github.com/ttc-protocol/ttc-monitor/jsonrpc"
	"github.com/ttc-protocol/ttc-monitor/log"
	"github.com/ttc-protocol/ttc-monitor/metrics"
	"github.com/ttc-protocol/ttc-monitor/prover"
)

var logger = log.NewModuleLogger(log.CmdProver)

func main() {
	if err := run(); err != nil {
		logger.Crit("prover exiting", "err", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.SetGlobalLevel(cfg.LogLevel); err != nil {
		return err
	}
	for name, level := range cfg.ModuleLogLevels {
		if err := log.ChangeLogLevelWithName(name, level); err != nil {
			return err
		}
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := jobstore.DialPostgres(ctx, cfg.DSN())
	if err != nil {
		return err
	}

	chain := chainclient.New(cfg.NodeEndpoint())

	var capability prover.Capability
	if cfg.DevMode {
		capability = prover.NewDevCapability()
		logger.Warn("running in dev mode: proofs are unsigned sentinel seals")
	} else {
		capability = prover.NewRealCapability(nil, nil)
		logger.Warn("no real zkVM backend wired; configure one before production use")
	}

	worker := prover.NewWorker(store, chain, capability)
	go worker.Run(ctx)

	rpcHandlers := prover.NewServer(worker, store, capability)
	go rpcHandlers.RunReclaimSweep(ctx)

	rpcServer := jsonrpc.NewServer()
	rpcServer.RegisterMethod("wake", rpcHandlers.Wake)
	rpcServer.RegisterMethod("health_check", rpcHandlers.HealthCheck)
	rpcServer.RegisterMethod("get_image_id_contract", rpcHandlers.GetImageIDContract)

	httpServer := jsonrpc.NewHTTPServer(rpcServer, nil)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: ":9091", Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	addr := ":" + strconv.Itoa(cfg.ProverPort)
	go func() {
		if err := httpServer.Start(addr); err != nil {
			logger.Error("jsonrpc server failed", "err", err)
		}
	}()
	logger.Info("prover started", "addr", addr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc
	logger.Info("got interrupt, shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Stop(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	store.Close()

	go func() {
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				logger.Warn("already shutting down, interrupt more to force exit", "times", i-1)
			}
		}
		os.Exit(1)
	}()

	return nil
}
