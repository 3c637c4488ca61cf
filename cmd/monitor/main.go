// Command monitor runs the orchestrator and public JSON-RPC face of the
// system. There are no positional arguments: every setting is read from
// the environment via package config.
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
	"github.com/ttc-protocol/ttc-monitor/monitor"
)

var logger = log.NewModuleLogger(log.CmdMonitor)

func main() {
	if err := run(); err != nil {
		logger.Crit("monitor exiting", "err", err)
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
	registry := monitor.NewRegistry(ctx, chain)
	prover := jsonrpc.NewClient(cfg.ProverEndpoint(), 30*time.Second)
	orchestrator := monitor.NewOrchestrator(registry, store, prover)

	go orchestrator.Run(ctx)

	rpcServer := jsonrpc.NewServer()
	handlers := monitor.NewServer(registry, store, prover)
	rpcServer.RegisterMethod("register_contract", handlers.RegisterContract)
	rpcServer.RegisterMethod("get_phase", handlers.GetPhase)
	rpcServer.RegisterMethod("get_proof", handlers.GetProof)
	rpcServer.RegisterMethod("subscribe_proof", handlers.SubscribeProof)
	rpcServer.RegisterMethod("get_image_id_contract", handlers.GetImageIDContract)
	rpcServer.RegisterMethod("health_check", handlers.HealthCheck)

	httpServer := jsonrpc.NewHTTPServer(rpcServer, nil)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: ":9090", Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	addr := ":" + strconv.Itoa(cfg.JSONRPCPort)
	go func() {
		if err := httpServer.Start(addr); err != nil {
			logger.Error("jsonrpc server failed", "err", err)
		}
	}()
	logger.Info("monitor started", "addr", addr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc
	logger.Info("got interrupt, shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), monitor.ShutdownGrace+5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	go func() {
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				logger.Warn("already shutting down, interrupt more to force exit", "times", i-1)
			}
		}
		os.Exit(1)
	}()

	return monitor.Shutdown(shutdownCtx, httpServer, registry, store)
}
