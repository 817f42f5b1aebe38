package main

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		// No logger yet at this point.
		panic(err)
	}

	logger := NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "export-records" {
		runExportRecordsCli(logger)
		return
	}

	chainParams, err := cfg.ChainParams()
	if err != nil {
		logger.Fatal("invalid network", "error", err)
	}

	keyBytes, err := hex.DecodeString(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil || len(keyBytes) != 32 {
		logger.Fatal("invalid private key: expected 32 hex-encoded bytes")
	}
	key, _ := btcec.PrivKeyFromBytes(keyBytes)

	dbConf, err := ParseConnectionString(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("invalid database url", "error", err)
	}
	db, err := ConnectToDB(dbConf)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	store := NewRecordStore(db)

	metrics := NewMetrics()
	go metrics.RecordMetricsPeriodically(db)

	node := NewRPCNode(key, chainParams, store, metrics, logger)
	logger.Info("signing node ready",
		"address", node.Address(),
		"network", chainParams.Name)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", node.HandleConnection)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Info("rpc server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("rpc server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}
