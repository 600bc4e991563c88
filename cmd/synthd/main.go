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
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"synthd/config"
	"synthd/core/events"
	"synthd/native/engine"
	"synthd/native/oracle"
	"synthd/native/token"
	"synthd/observability/logging"
	"synthd/rpc"
	"synthd/storage"
)

const eventBufferSize = 4096

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synthd: load config: %v\n", err)
		os.Exit(1)
	}

	var logOpts []logging.Option
	if strings.TrimSpace(cfg.Log.File) != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups))
	}
	logger := logging.Setup("synthd", cfg.Environment, logOpts...)

	if err := run(cfg, logger); err != nil {
		logger.Error("synthd exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	treasury := cfg.ParsedTreasury()

	assets, feeds, err := buildFeeds(cfg)
	if err != nil {
		return err
	}

	liability := token.NewToken(cfg.Liability.Name, cfg.Liability.Symbol, treasury)
	bank := token.NewBank()
	custody := token.NewCustody(bank, treasury)

	eng, err := engine.New(assets, feeds, liability, cfg.ParsedLiabilityAddress(), custody, treasury, engine.RiskParameters{
		LiquidationThresholdPercent: cfg.Risk.LiquidationThresholdPercent,
		LiquidationBonusPercent:     cfg.Risk.LiquidationBonusPercent,
	})
	if err != nil {
		return err
	}

	if strings.TrimSpace(cfg.DataDir) != "" {
		db, dbErr := storage.NewLevelDB(cfg.DataDir)
		if dbErr != nil {
			return fmt.Errorf("open database: %w", dbErr)
		}
		defer db.Close()
		eng.SetState(engine.NewKVState(db))
		logger.Info("state store opened", "path", cfg.DataDir)
	} else {
		logger.Info("running with in-memory state")
	}

	sink := events.NewSink(eventBufferSize)
	eng.SetEmitter(sink)
	eng.SetOraclePolicy(oracle.NewPolicy(cfg.MaxAgeDuration()))

	opts := []rpc.Option{rpc.WithEventSink(sink)}
	if cfg.Faucet.Enabled {
		opts = append(opts, rpc.WithFaucet(bank))
	}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		opts = append(opts, rpc.WithRateLimit(rpc.NewRateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)))
	}
	server := rpc.NewServer(nil, eng, opts...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "address", cfg.ListenAddress)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-errCh:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("synthd stopped")
	return nil
}

// buildFeeds materialises the configured collateral registry: one price source
// per asset, either pinned or polled over HTTP.
func buildFeeds(cfg *config.Config) ([]common.Address, []engine.FeedBinding, error) {
	assets := make([]common.Address, 0, len(cfg.Assets))
	feeds := make([]engine.FeedBinding, 0, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		addr := common.HexToAddress(strings.TrimSpace(asset.Address))
		feedAddr := common.HexToAddress(strings.TrimSpace(asset.FeedAddress))
		var source oracle.PriceFeed
		if url := strings.TrimSpace(asset.FeedURL); url != "" {
			source = oracle.NewHTTPFeed(nil, url, asset.FeedDecimals)
		} else {
			answer, ok := new(big.Int).SetString(strings.TrimSpace(asset.StaticPrice), 10)
			if !ok {
				return nil, nil, fmt.Errorf("config: assets[%d].StaticPrice: invalid integer %q", i, asset.StaticPrice)
			}
			source = oracle.NewStaticFeed(answer, asset.FeedDecimals)
		}
		assets = append(assets, addr)
		feeds = append(feeds, engine.FeedBinding{FeedAddress: feedAddr, Source: source})
	}
	return assets, feeds, nil
}
