package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"multiswap/internal/chain"
	"multiswap/internal/config"
	"multiswap/internal/engine"
	"multiswap/internal/history"
	"multiswap/internal/pricecache"
	"multiswap/internal/pricefeed"
	"multiswap/internal/registry"
	"multiswap/internal/server"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main initializes all dependencies and starts the HTTP server with graceful
// shutdown. Redis, ClickHouse and the chain client are optional: without them
// the engine still serves allocation editing and simulation.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	reg := registry.Mainnet()
	feed := pricefeed.NewClient(cfg.PriceFeedBaseURL, cfg.PriceFeedAPIKey)

	// Optional shared price store so sessions start warm across restarts
	var priceStore pricecache.Store
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   0,
		})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		store, err := pricecache.NewRedisStore(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create price store")
		}
		priceStore = store
	}

	// Optional swap history sink
	var histStore *history.Store
	if cfg.ClickHouseAddr != "" {
		h, err := history.NewStore(ctx, history.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Warn("failed to connect to ClickHouse, swap history disabled")
		} else {
			histStore = h
			defer func() {
				_ = histStore.Close()
			}()
		}
	}

	// Optional chain client; without it submit and approve return errors but
	// the allocation surface keeps working
	var chainClient chain.Client
	var balances chain.BalanceProvider
	if cfg.RPCUrl != "" {
		rpc, err := chain.DialRPC(ctx, chain.RPCConfig{
			URL:        cfg.RPCUrl,
			PrivateKey: cfg.WalletPrivateKey,
			Logger:     logger,
		}, reg)
		if err != nil {
			logger.WithError(err).Fatal("failed to dial rpc")
		}
		defer rpc.Close()
		chainClient = rpc
		balances = rpc
	}

	eng, err := engine.New(engine.Deps{
		Registry:        reg,
		Fetcher:         feed,
		PriceStore:      priceStore,
		Chain:           chainClient,
		Balances:        balances,
		History:         histStore,
		Contract:        common.HexToAddress(cfg.RouterAddress),
		SlippageBps:     uint16(cfg.SlippageBps),
		RetryInterval:   cfg.RetryInterval,
		RefreshInterval: cfg.RefreshInterval,
		Logger:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create engine")
	}
	defer eng.Close()

	h := &server.Handlers{
		Engine:   eng,
		Registry: reg,
		DevMode:  cfg.DevMode,
		Logger:   logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
