package vaultd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vaultledger/config"
	"vaultledger/observability/logging"
	"vaultledger/storage"
)

// Main runs the vault daemon until SIGINT or SIGTERM.
func Main() error {
	var (
		cfgPath  string
		inMemory bool
	)
	flag.StringVar(&cfgPath, "config", "vault.toml", "path to the vault daemon config (TOML or YAML)")
	flag.BoolVar(&inMemory, "memory", false, "keep state in memory instead of LevelDB")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(logging.Options{
		Service: "vaultd",
		Env:     cfg.Environment,
		Level:   cfg.LogLevel,
	})
	logger.Info("config loaded",
		slog.String("config", cfgPath),
		logging.MaskField("operatorKeyPath", cfg.OperatorKeyPath),
		slog.String("vault", cfg.VaultAddr().Hex()))

	db, err := openDatabase(cfg, inMemory)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := NewNode(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	interval, err := cfg.Keeper.Interval()
	if err != nil {
		return fmt.Errorf("keeper interval: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      NewRouter(node),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keeperDone := make(chan struct{})
	go func() {
		defer close(keeperDone)
		node.RunKeeper(stopCtx, interval)
	}()

	errs := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", slog.String("address", cfg.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	var runErr error
	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			runErr = err
		}
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
		stop()
	}
	<-keeperDone
	logger.Info("vaultd stopped", slog.Uint64("height", node.Height()))
	return runErr
}

func openDatabase(cfg *config.Config, inMemory bool) (storage.Database, error) {
	if inMemory {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return nil, err
	}
	return db, nil
}
