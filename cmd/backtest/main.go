package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/backtest"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/config"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/infrastructure/exchange"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/infrastructure/logger"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dataPath := flag.String("data", "", "CSV file with bars (timestamp,open,high,low,close,volume); synthetic bars when empty")
	bars := flag.Int("bars", 2000, "synthetic bar count when no data file is given")
	seed := flag.Int64("seed", 42, "synthetic feed seed")
	balance := flag.Float64("balance", 10_000, "initial balance")
	equityOut := flag.String("equity", "", "optional CSV path for the equity curve")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, "")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var candles []domain.Candle
	if *dataPath != "" {
		candles, err = loadBars(*dataPath)
		if err != nil {
			log.Fatal("Failed to load bars", zap.String("path", *dataPath), zap.Error(err))
		}
	} else {
		candles = syntheticBars(cfg.Bot.Symbol, *bars, *seed)
	}
	log.Info("Bars loaded", zap.Int("count", len(candles)))

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params, log)
	if err != nil {
		log.Fatal("Failed to build strategy", zap.Error(err))
	}

	engine, err := backtest.New(backtest.Config{
		Symbol:         cfg.Bot.Symbol,
		InitialBalance: *balance,
	}, strat, log)
	if err != nil {
		log.Fatal("Failed to build engine", zap.Error(err))
	}

	results, err := engine.Run(candles)
	if err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}

	backtest.WriteReport(os.Stdout, results)

	if *equityOut != "" {
		f, err := os.Create(*equityOut)
		if err != nil {
			log.Fatal("Failed to create equity file", zap.Error(err))
		}
		defer f.Close()
		if err := backtest.WriteEquityCSV(f, results.EquityCurve); err != nil {
			log.Fatal("Failed to write equity curve", zap.Error(err))
		}
		log.Info("Equity curve written", zap.String("path", *equityOut))
	}
}

// loadBars reads timestamp,open,high,low,close,volume rows. A header row
// is skipped if present.
func loadBars(path string) ([]domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var candles []domain.Candle
	for line := 0; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			if line == 0 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: bad timestamp %q", line+1, record[0])
		}
		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad field %q", line+1, record[i+1])
			}
			vals[i] = v
		}
		candles = append(candles, domain.Candle{
			Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	return candles, nil
}

func syntheticBars(symbol string, n int, seed int64) []domain.Candle {
	feed := exchange.NewRandomWalkFeed(symbol, 50_000, time.Minute, seed)
	return feed.Generate(n)
}
