package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptolens/config"
	"cryptolens/engine"
	"cryptolens/internal/metrics"
	"cryptolens/logger"
	"cryptolens/reader/binance"
)

const shutdownTimeout = 30 * time.Second

type flags struct {
	config    string
	cmd       string
	symbol    string
	exchange  string
	exchanges string
	timeframe string
	period    string
	limit     int
	side      string
	amount    float64
	price     float64
	minProfit float64
	start     string
	end       string
	avgChange string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", config.DefaultPath, "Path to configuration file")
	flag.StringVar(&f.cmd, "cmd", "status", "Command to run (status, health, ticker, prices, best, ohlcv, orderbook, alerts, profile, liquidity, rank, arbitrage, indicators, historical, compare, performance, sentiment, assets, markets, validate, cache, serve)")
	flag.StringVar(&f.symbol, "symbol", "BTC/USDT", "Unified symbol or base asset")
	flag.StringVar(&f.exchange, "exchange", "binance", "Exchange id")
	flag.StringVar(&f.exchanges, "exchanges", "", "Comma separated exchange ids; empty means all")
	flag.StringVar(&f.timeframe, "timeframe", "1h", "Candle timeframe")
	flag.StringVar(&f.period, "period", "1m", "Historical period (1m, 3m, 6m, 1y, all)")
	flag.IntVar(&f.limit, "limit", 0, "Candle or order book depth; 0 uses the default")
	flag.StringVar(&f.side, "side", "buy", "Order side for validate")
	flag.Float64Var(&f.amount, "amount", 0, "Order amount for validate, trade amount for arbitrage")
	flag.Float64Var(&f.price, "price", 0, "Order price for validate")
	flag.Float64Var(&f.minProfit, "min-profit", 0.5, "Minimum net profit percent for arbitrage")
	flag.StringVar(&f.start, "start", "", "Window start date (YYYY-MM-DD) for performance")
	flag.StringVar(&f.end, "end", "", "Window end date (YYYY-MM-DD) for performance")
	flag.StringVar(&f.avgChange, "avg-change", "", "Average daily change percent for liquidity; empty uses the default")
	flag.Parse()
	return f
}

func (f flags) exchangeList() []string {
	if f.exchanges == "" {
		return nil
	}
	var out []string
	for _, ex := range strings.Split(f.exchanges, ",") {
		if ex = strings.TrimSpace(ex); ex != "" {
			out = append(out, strings.ToLower(ex))
		}
	}
	return out
}

func main() {
	os.Exit(start())
}

// start returns the process exit code so deferred cleanup runs before
// main exits.
func start() int {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("error loading .env file")
	}

	f := parseFlags()

	cfg, err := config.LoadConfig(f.config)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("failed to configure logger")
		return 1
	}

	log.WithFields(logger.Fields{
		"service": cfg.Engine.Name,
		"version": cfg.Engine.Version,
		"command": f.cmd,
		"env":     config.AppEnvironment(),
	}).Info("starting cryptolens")
	log.WithEnv("APP_ENV", "LOG_LEVEL").Debug("environment")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch); err != nil {
			log.WithError(err).Warn("cloudwatch metrics disabled")
		}
	}

	eng, err := engine.New(cfg)
	if err != nil {
		log.WithError(err).Error("failed to build engine")
		return 1
	}

	if f.cmd == "serve" {
		defer eng.Close()
		serve(ctx, cancel, eng, log)
		return 0
	}
	return execute(ctx, eng, f, os.Stdout, log)
}

// execute runs one command, prints its JSON result to w and closes eng.
func execute(ctx context.Context, eng *engine.Engine, f flags, w io.Writer, log *logger.Log) int {
	defer eng.Close()

	result, err := run(ctx, eng, f)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"command": f.cmd}).Error("command failed")
		writeJSON(w, map[string]string{"error": err.Error()})
		return 1
	}
	writeJSON(w, result)
	return 0
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// serve keeps the caches warm from the Binance stream and logs periodic
// reports until SIGINT or SIGTERM.
func serve(ctx context.Context, cancel context.CancelFunc, eng *engine.Engine, log *logger.Log) {
	if strings.ToLower(eng.Config.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second, eng.ReportStats)
	}

	var wg sync.WaitGroup
	var stream *binance.BookTickerStream
	if sc := eng.Config.Streams.BinanceBookTicker; sc.Enabled {
		stream = binance.NewBookTickerStream(sc.URL, sc.Symbols, eng.Market.PrimeTicker)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stream.Start(ctx); err != nil {
				log.WithError(err).Warn("binance book ticker stream failed to start")
			}
		}()
	} else {
		log.WithComponent("main").Info("book ticker stream disabled")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		report := eng.Exchanges.HealthCheck(ctx)
		log.WithComponent("main").WithFields(logger.Fields{"status": report.Status}).Info("initial health check")
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if stream != nil {
		log.Info("stopping binance book ticker stream")
		stream.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(shutdownTimeout):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("cryptolens stopped")
}
