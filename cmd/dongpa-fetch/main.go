package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dongpa/internal/config"
	"dongpa/internal/domain"
	"dongpa/internal/market"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/util"
)

func main() {
	start := flag.String("start", "", "first date to fetch, YYYY-MM-DD (default fetch.start_date)")
	end := flag.String("end", "", "last date to fetch, YYYY-MM-DD (default today)")
	symbols := flag.String("symbols", "", "comma-separated symbols (default strategy.symbol)")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials are required (ALPACA_API_KEY / ALPACA_API_SECRET)")
	}

	from := cfg.Fetch.StartDate
	if *start != "" {
		from = *start
	}
	startDate, err := time.Parse(domain.DateLayout, from)
	if err != nil {
		log.Fatalf("invalid start date %q: %v", from, err)
	}
	endDate := time.Now().UTC()
	if *end != "" {
		if endDate, err = time.Parse(domain.DateLayout, *end); err != nil {
			log.Fatalf("invalid end date %q: %v", *end, err)
		}
	}

	list := []string{cfg.Strategy.Symbol}
	if *symbols != "" {
		list = strings.Split(*symbols, ",")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src := market.NewAlpacaSource(service.AlpacaOptions(cfg), logger)
	ps := store.NewParquetStore(cfg.Storage.DataDir)

	for _, sym := range list {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		bars, err := src.FetchRange(ctx, sym, startDate, endDate)
		if err != nil {
			log.Fatalf("fetching %s: %v", sym, err)
		}
		if err := ps.WriteBars(ctx, bars); err != nil {
			log.Fatalf("writing %s: %v", sym, err)
		}
		logger.Info("bars stored", "symbol", sym, "bars", len(bars),
			"start", startDate.Format(domain.DateLayout), "end", endDate.Format(domain.DateLayout))
	}
}
