// SPDX-License-Identifier: GPL-3.0-or-later

// Command netlab runs a lab described by a YAML topology until
// interrupted, optionally serving Prometheus metrics.
//
// Two netlab processes whose topologies contain matching process cables
// share a simulated wire over UDP on localhost.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/netlab/netsim/metrics"
	"github.com/rbmk-project/netlab/netsim/topology"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "netlab: %s\n", err.Error())
		os.Exit(1)
	}
}

// run parses the command line, builds the lab and runs it until ctx is
// done. When ready is not nil, run sends the metrics listener address
// (or the empty string) once the lab has started.
func run(ctx context.Context, args []string, stderr io.Writer, ready chan<- string) error {
	fset := flag.NewFlagSet("netlab", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "", "path of the YAML (or JSON) topology `file`")
	metricsAddr := fset.String("metrics-addr", "", "serve Prometheus metrics on this `address` (e.g., 127.0.0.1:9464)")
	logFormat := fset.String("log-format", "", "override the log format: text or json")
	logLevel := fset.String("log-level", "", "override the log level: debug, info, warn or error")
	pcapDir := fset.String("pcap-dir", "", "on exit, write the interface captures as pcap files into this `directory`")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("missing -config flag")
	}

	cfg, err := topology.Load(*configPath)
	if err != nil {
		return err
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger, err := topology.NewLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector, err := metrics.New(registry)
	if err != nil {
		return err
	}

	lab, err := topology.Build(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := lab.Close(); err != nil {
			logger.Warn("labFault", slog.Any("err", err), slog.String("errClass", errclass.New(err)))
		}
	}()

	var addr string
	if *metricsAddr != "" {
		listener, err := net.Listen("tcp", *metricsAddr)
		if err != nil {
			return err
		}
		addr = listener.Addr().String()
		srv := &http.Server{
			Handler:           metricsHandler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metricsServe", slog.Any("err", err), slog.String("errClass", errclass.New(err)))
			}
		}()
		defer srv.Close()
		logger.Info("metricsListen", slog.String("addr", addr))
	}

	lab.Start()
	if ready != nil {
		ready <- addr
	}
	<-ctx.Done()
	if *pcapDir != "" {
		return lab.WritePcaps(*pcapDir)
	}
	return nil
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}
