// Keeper is an automated market-maker for a single binary prediction
// market traded on a CLOB with on-chain settlement.
//
// Architecture:
//
//	main.go                   — entry point: loads config, wires every component, waits for SIGINT/SIGTERM
//	internal/model            — Token/Side/Order/Market value types
//	internal/tokenid          — condition id -> token id derivation
//	internal/quote            — AMM and Bands quoters
//	internal/strategy         — synchronize(): facade that dispatches to a quoter and emits a diff
//	internal/orderbook        — async mirror of the remote book, cancel/place lifecycle
//	internal/lifecycle        — startup/tick/shutdown driver
//	internal/adapters         — CLOB REST client, on-chain balances, gas oracle, price feed
//	internal/config           — YAML + POLY_* env configuration
//	internal/metrics          — the four Prometheus series named in the metrics contract
//	internal/marketcache      — atomic-write cache of derived token ids
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ctfmm/internal/adapters"
	"ctfmm/internal/config"
	"ctfmm/internal/lifecycle"
	"ctfmm/internal/marketcache"
	"ctfmm/internal/metrics"
	"ctfmm/internal/model"
	"ctfmm/internal/orderbook"
	"ctfmm/internal/quote"
	"ctfmm/internal/strategy"
	"ctfmm/internal/tokenid"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(*cfg)

	if err := run(*cfg, logger); err != nil {
		logger.Error("keeper exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	reg := metrics.New(prometheus.DefaultRegisterer)
	go serveMetrics(cfg.Metrics.Port, logger)

	market, err := resolveMarket(cfg)
	if err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}

	auth, err := adapters.NewAuth(cfg)
	if err != nil {
		return fmt.Errorf("build auth: %w", err)
	}
	clobClient := adapters.NewClient(cfg, auth, reg, logger.With("component", "clob_client"))
	if !auth.HasL2Credentials() {
		if _, err := clobClient.DeriveAPIKey(ctx); err != nil {
			return fmt.Errorf("derive api key: %w", err)
		}
	}

	onChain, err := adapters.NewOnChain(ctx, cfg.Wallet.RPCURL, auth, reg)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}

	clobAdapter := adapters.NewClobAdapter(
		clobClient,
		onChain,
		market,
		common.HexToAddress(cfg.Market.CollateralAddress),
		common.HexToAddress(cfg.Market.ConditionalToken),
		auth.FunderAddress(),
		reg,
	)

	gasOracle := adapters.NewGasOracle(adapters.GasStrategy(cfg.Gas.Strategy), cfg.Gas.FixedGasPrice, cfg.Gas.StationURL, reg)
	if err := ensureApprovals(ctx, cfg, onChain, gasOracle); err != nil {
		return fmt.Errorf("ensure approvals: %w", err)
	}

	manager := orderbook.New(clobAdapter, cfg.Strategy.RefreshFrequency, logger.With("component", "orderbook"))
	manager.Start(ctx)
	defer manager.Stop()

	facade, err := buildFacade(cfg, clobAdapter)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}

	driver := &lifecycle.Driver{
		Interval: cfg.Strategy.SyncInterval,
		Logger:   logger.With("component", "lifecycle"),
		OnStartup: func(ctx context.Context) error {
			logger.Info("keeper starting", "condition_id", market.ConditionID, "strategy", cfg.Strategy.Kind, "dry_run", cfg.DryRun)
			return nil
		},
		Tick: func(ctx context.Context) error {
			snap, err := manager.GetOrderBook(ctx)
			if err != nil {
				return fmt.Errorf("get order book: %w", err)
			}
			toCancel, toPlace, err := facade.Synchronize(ctx, snap)
			if err != nil {
				return fmt.Errorf("synchronize: %w", err)
			}
			manager.CancelOrders(ctx, toCancel)
			manager.PlaceOrders(ctx, toPlace)
			return nil
		},
		OnShutdown: func(ctx context.Context) error {
			logger.Info("shutting down: cancelling all orders")
			return manager.CancelAllOrders(ctx)
		},
	}

	return driver.Run(ctx)
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}

// ensureApprovals submits unlimited-allowance approvals for the collateral
// (ERC-20) and conditional (ERC-1155) tokens to the exchange contract. The
// keeper does not track whether an approval already exists; resubmitting
// costs a no-op transaction, which is cheaper than adding a read path here.
func ensureApprovals(ctx context.Context, cfg config.Config, chain *adapters.OnChain, gas *adapters.GasOracle) error {
	if cfg.Market.ExchangeAddress == "" {
		return nil
	}
	exchange := common.HexToAddress(cfg.Market.ExchangeAddress)
	gasPrice := gas.Price(ctx)

	if _, err := chain.MaxApproveERC20(ctx, common.HexToAddress(cfg.Market.CollateralAddress), exchange, gasPrice); err != nil {
		return fmt.Errorf("approve collateral: %w", err)
	}
	if _, err := chain.MaxApproveERC1155(ctx, common.HexToAddress(cfg.Market.ConditionalToken), exchange, gasPrice); err != nil {
		return fmt.Errorf("approve conditional token: %w", err)
	}
	return nil
}

func resolveMarket(cfg config.Config) (model.Market, error) {
	cache, err := marketcache.Open("data/marketcache")
	if err != nil {
		return model.Market{}, err
	}
	if cached, err := cache.Load(cfg.Market.ConditionID); err == nil && cached != nil {
		return *cached, nil
	}

	tokenA, err := tokenid.GetTokenID(cfg.Market.ConditionID, cfg.Market.CollateralAddress, 0)
	if err != nil {
		return model.Market{}, fmt.Errorf("derive token a id: %w", err)
	}
	tokenB, err := tokenid.GetTokenID(cfg.Market.ConditionID, cfg.Market.CollateralAddress, 1)
	if err != nil {
		return model.Market{}, fmt.Errorf("derive token b id: %w", err)
	}

	market := model.NewMarket(cfg.Market.ConditionID, tokenA, tokenB)
	if err := cache.Save(market); err != nil {
		return model.Market{}, fmt.Errorf("cache market: %w", err)
	}
	return market, nil
}

func buildFacade(cfg config.Config, feed strategy.PriceFeed) (*strategy.Facade, error) {
	switch cfg.Strategy.Kind {
	case "amm":
		var ammCfg quote.AMMConfig
		if err := readJSONConfig(cfg.Strategy.AMMConfigPath, &ammCfg); err != nil {
			return nil, err
		}
		mgr, err := quote.NewAMMManager(ammCfg)
		if err != nil {
			return nil, fmt.Errorf("build amm manager: %w", err)
		}
		return strategy.NewAMMFacade(feed, mgr), nil

	case "bands":
		var file struct {
			Bands []quote.BandConfig `json:"bands"`
		}
		if err := readJSONConfig(cfg.Strategy.BandsConfigPath, &file); err != nil {
			return nil, err
		}
		bands, err := quote.NewBands(file.Bands, cfg.Strategy.MinSize)
		if err != nil {
			return nil, fmt.Errorf("build bands: %w", err)
		}
		return strategy.NewBandsFacade(feed, bands, cfg.Strategy.MinSize), nil

	default:
		return nil, fmt.Errorf("unknown strategy kind %q", cfg.Strategy.Kind)
	}
}

func readJSONConfig(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse strategy config %s: %w", path, err)
	}
	return nil
}
