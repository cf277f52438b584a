package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/advisor"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/audit"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/cache"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/config"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/engine"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/flags"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/flashloan"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/jupiter"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/scanner"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/server"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/signing"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/stream"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/txbuilder"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the arbitrage daemon. It wires the full
// pipeline, starts the HTTP API, and runs the scan loop until interrupted.
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

	// RPC endpoint pool with periodic health probing
	endpoints := make([]rpc.Endpoint, len(cfg.RPCEndpoints))
	for i, url := range cfg.RPCEndpoints {
		endpoints[i] = rpc.Endpoint{URL: url, Name: fmt.Sprintf("rpc-%d", i), Priority: i}
	}
	pool, err := rpc.NewPool(rpc.PoolConfig{
		Endpoints:     endpoints,
		ProbeInterval: cfg.HealthProbeInterval,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create endpoint pool")
	}
	go pool.RunPeriodicHealthChecks(ctx)

	chain, err := rpc.NewClient(rpc.ClientConfig{
		Pool:    pool,
		Timeout: cfg.RPCTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create rpc client")
	}

	// Redis backs the execution history and runtime toggles
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	store, err := cache.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create execution store")
	}
	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	// Quote source
	jup := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey)

	// Flash-loan provider catalog
	providers, err := flashloan.LoadCatalog(cfg.ProviderCatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load provider catalog")
	}

	// Signing. Only client mode is wired here; server and enclave modes need
	// a deployment-specific external signer.
	if cfg.SigningMode != string(signing.ModeClient) {
		logger.Fatalf("signing mode %q requires an external signer binary", cfg.SigningMode)
	}
	keyBytes, err := base58.Decode(cfg.SignerPrivateKey)
	if err != nil || len(keyBytes) != 64 {
		logger.Fatal("SIGNER_PRIVATE_KEY must be a base58-encoded 64-byte key")
	}
	payer := solana.PrivateKey(keyBytes).PublicKey()

	sinks := audit.Multi{&audit.LogrusSink{Log: logger}}
	if cfg.ClickHouseEnabled {
		ch, err := audit.NewClickHouseSink(audit.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer func() {
			_ = ch.Close()
		}()
		sinks = append(sinks, ch)
	}

	signer, err := signing.New(signing.Config{
		Mode:           signing.ModeClient,
		ExpectedSigner: payer,
		EncryptedKey:   keyBytes,
		Auditor:        sinks,
		Logger:         logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create signing service")
	}

	// Priority fee stream: websocket feed when configured, RPC polling
	// fallback otherwise. The overlay serves the builder from streamed
	// observations while they are fresh and falls back to RPC sampling.
	feeHub := startFeeStream(ctx, cfg, chain, logger)
	feeSource := stream.NewFeeOverlay(chain)
	go feeSource.Run(ctx, feeHub)

	builder, err := txbuilder.NewBuilder(feeSource, flagStore, txbuilder.Config{
		Payer:      payer,
		Commitment: cfg.Commitment,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create transaction builder")
	}

	scan, err := scanner.New(jup, scanner.Config{
		BaseMint:          cfg.BaseMint,
		IntermediateMints: cfg.IntermediateMints,
		ProbeAmount:       cfg.ProbeAmount,
		MaxSlippageBps:    cfg.MaxSlippageBps,
		GasEstimate:       cfg.GasEstimate,
		MaxConcurrency:    cfg.MaxConcurrency,
		QuoteRate:         rate.NewLimiter(rate.Limit(cfg.QuotesPerSecond), cfg.QuotesPerSecond),
		Logger:            logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create scanner")
	}

	deps := engine.Deps{
		Scanner:   scan,
		Source:    jup,
		Providers: providers,
		Builder:   builder,
		Signer:    signer,
		Chain:     chain,
		Sink:      sinks,
		Pauser:    flagStore,
		Recorder:  store,
	}

	// Optional post-execution annotator
	if cfg.AdvisorAPIKey != "" {
		adv, err := advisor.New(advisor.Config{
			APIKey: cfg.AdvisorAPIKey,
			Model:  cfg.AdvisorModel,
			Logger: logger,
		})
		if err != nil {
			logger.WithError(err).Warn("failed to initialize advisor")
		} else {
			deps.Advisor = adv
		}
	}

	eng, err := engine.New(deps, engine.Config{
		Payer:          payer,
		MinProfit:      cfg.MinProfit,
		MaxSlippageBps: cfg.MaxSlippageBps,
		GasEstimate:    cfg.GasEstimate,
		Commitment:     cfg.Commitment,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create engine")
	}

	// HTTP API alongside the scan loop
	h := &server.Handlers{
		Engine:  eng,
		Pool:    pool,
		Cache:   store,
		Flags:   flagStore,
		Jupiter: jup,
		DevMode: cfg.DevMode,
		Logger:  logger,
	}
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.ListenAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("api server starting")
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			logger.WithError(err).Error("api server failed")
		}
	}()

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"payer":     payer.String(),
		"base_mint": cfg.BaseMint,
		"interval":  cfg.ScanInterval.String(),
		"providers": len(providers),
	}).Info("arbitrage daemon starting")

	runScanLoop(ctx, eng, cfg.ScanInterval, logger)

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}

// runScanLoop scans and executes the best opportunity on a fixed cadence
// until the context is cancelled.
func runScanLoop(ctx context.Context, eng *engine.Orchestrator, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := eng.ExecuteBest(ctx)
			if err != nil {
				logger.WithError(err).Warn("scan pass failed")
				continue
			}
			if res.Skipped {
				logger.WithField("reason", res.SkipReason).Debug("scan pass skipped")
				continue
			}
			logger.WithFields(logrus.Fields{
				"id":        res.Record.ID,
				"state":     res.Record.State,
				"profit":    res.Record.ExpectedProfit,
				"signature": res.Record.Signature,
			}).Info("execution attempt finished")
		}
	}
}

// startFeeStream launches the priority-fee feed and returns its hub for the
// fee overlay to consume.
func startFeeStream(ctx context.Context, cfg *config.Config, chain *rpc.Client, logger *logrus.Logger) *stream.Hub {
	if cfg.FeeFeedURL != "" {
		feed := stream.NewFeed(cfg.FeeFeedURL, logger)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("fee feed stopped")
			}
		}()
		return feed.Hub
	}

	poller := stream.NewPoller(chain, cfg.FeePollInterval, logger)
	go func() {
		_ = poller.Run(ctx)
	}()
	return poller.Hub
}
