package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/PeerlyPay/peerlypay/config"
	"github.com/PeerlyPay/peerlypay/core/state"
	"github.com/PeerlyPay/peerlypay/crypto"
	"github.com/PeerlyPay/peerlypay/native/p2p"
	"github.com/PeerlyPay/peerlypay/observability/logging"
	"github.com/PeerlyPay/peerlypay/rpc"
	"github.com/PeerlyPay/peerlypay/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PEERLYPAY_ENV"))
	if env == "" {
		env = "local"
	}
	logger := logging.Setup("peerlyd", env)

	if err := run(configPath, logger); err != nil {
		logger.Error("node terminated", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := p2p.NewEngine()
	engine.SetState(manager)

	if _, ok := manager.ConfigGet(); !ok {
		if err := applyGenesis(engine, manager, &cfg.Genesis, logger); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
	}

	server := rpc.NewServer(engine, manager)
	httpSrv := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(cfg.MetricsPath),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "address", cfg.RPCAddress, "network", cfg.NetworkName)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// applyGenesis initializes the module configuration and funds the genesis
// accounts. It runs only against an empty state database.
func applyGenesis(engine *p2p.Engine, manager *state.Manager, genesis *config.Genesis, logger *slog.Logger) error {
	admin, err := decodeGenesisAddress(genesis.Admin, "admin")
	if err != nil {
		return err
	}
	arbiter, err := decodeGenesisAddress(genesis.Arbiter, "arbiter")
	if err != nil {
		return err
	}
	pauser, err := decodeGenesisAddress(genesis.Pauser, "pauser")
	if err != nil {
		return err
	}

	cfg, err := engine.Initialize(admin, arbiter, pauser, genesis.Token, genesis.MaxDurationSecs, genesis.FiatTimeoutSecs)
	if err != nil {
		return err
	}
	logger.Info("module initialized", "token", cfg.Token, "maxDurationSecs", cfg.MaxDurationSecs, "fiatTimeoutSecs", cfg.FiatTimeoutSecs)

	for _, alloc := range genesis.Allocations {
		addr, err := decodeGenesisAddress(alloc.Address, "allocation")
		if err != nil {
			return err
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("genesis allocation for %s has invalid amount %q", alloc.Address, alloc.Amount)
		}
		if err := manager.Mint(cfg.Token, addr, amount); err != nil {
			return err
		}
		logger.Info("genesis allocation", "address", alloc.Address, "amount", amount.String())
	}
	return nil
}

func decodeGenesisAddress(raw, role string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("genesis %s address must be set", role)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("genesis %s address: %w", role, err)
	}
	return addr.Array(), nil
}
