// Package proxy wires together the proxy's top-level pieces: cluster
// bootstrap, the upstream connection registry, the fixed worker pool
// and the listener, then blocks until a shutdown signal arrives.
// Grounded on chuimengdaoxizhou-go-redis's tcp/server.go
// ListenAndServerWithSignal, generalized from "one handler" to "one
// listener dispatching across a worker pool".
package proxy

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/listener"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/logging"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/scheduler"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/upstream"
)

// Run bootstraps the cluster topology from cfg.Seed, starts cfg.Threads
// workers and the accept loop, and blocks until SIGINT/SIGTERM/SIGHUP/
// SIGQUIT or the listener itself fails.
func Run(cfg config.Config, log *logrus.Logger) error {
	root := logging.Component(log, "proxy")

	slotMap, nodes, err := cluster.Bootstrap(cfg.Seed)
	if err != nil {
		return fmt.Errorf("proxy: cluster bootstrap: %w", err)
	}
	root.WithField("nodes", len(nodes)).Info("discovered cluster topology")

	registry := upstream.NewRegistry(slotMap, cfg.Threads)

	workers := make([]*scheduler.Worker, cfg.Threads)
	for i := 0; i < cfg.Threads; i++ {
		w := scheduler.NewWorker(i, cfg, slotMap, registry, logging.Component(log, "worker"))
		w.Start()
		workers[i] = w
	}
	defer func() {
		for _, w := range workers {
			w.Stop()
		}
	}()

	ln, err := listener.New(cfg, workers, logging.Component(log, "listener"))
	if err != nil {
		return fmt.Errorf("proxy: bind listener: %w", err)
	}
	logging.Success(root.WithField("addr", ln.Addr().String()), "proxy listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		root.WithField("signal", sig.String()).Info("shutting down")
		_ = ln.Close()
	}()

	if err := ln.Serve(); err != nil {
		return fmt.Errorf("proxy: accept loop: %w", err)
	}
	return nil
}
