package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/bot"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/config"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/infrastructure/exchange"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/infrastructure/logger"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/infrastructure/storage"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/persistence"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/strategy"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init State Store + Trade History
	states, err := persistence.NewFileStore(cfg.Persistence.StateDir)
	if err != nil {
		log.Fatal("Failed to init state store", zap.Error(err))
	}
	trades, err := storage.NewSQLiteStore(cfg.Persistence.TradesDB)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer trades.Close()

	// 4. Init Exchange
	// Only the paper exchange ships here; live adapters plug in behind the
	// same interface.
	if cfg.Exchange.Name != "paper" {
		log.Fatal("Unknown exchange", zap.String("name", cfg.Exchange.Name))
	}
	feed := exchange.NewRandomWalkFeed(cfg.Bot.Symbol, 50_000, time.Minute, time.Now().UnixNano())
	paper := exchange.NewPaper(feed, cfg.Exchange.FeeRate)

	// 5. Init Strategy
	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params, log)
	if err != nil {
		log.Fatal("Failed to build strategy", zap.Error(err))
	}

	// 6. Init Bot
	registry := prometheus.NewRegistry()
	metrics := bot.NewMetrics(registry)
	b, err := bot.New(bot.Config{
		ID:                        cfg.Bot.ID,
		Name:                      cfg.Bot.Name,
		Symbol:                    cfg.Bot.Symbol,
		Timeframe:                 cfg.Bot.Timeframe,
		CheckInterval:             cfg.Bot.CheckInterval,
		ConnectivityCheckInterval: cfg.Bot.ConnectivityCheckInterval,
		MaxConnectivityFailures:   cfg.Bot.MaxConnectivityFailures,
		SaveInterval:              cfg.Bot.SaveInterval,
		HistoryLimit:              cfg.Bot.HistoryLimit,
	}, paper, strat, states, log,
		bot.WithTradeRepository(trades),
		bot.WithMetrics(metrics))
	if err != nil {
		log.Fatal("Failed to build bot", zap.Error(err))
	}

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		log.Fatal("Failed to start bot", zap.Error(err))
	}

	// 7. Init Web Server
	server := web.NewServer(cfg.Server.Port, b, trades, registry, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Web server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
	if err := b.Stop(shutdownCtx); err != nil {
		log.Error("Bot shutdown failed", zap.Error(err))
	}
}
