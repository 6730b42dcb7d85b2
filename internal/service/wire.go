package service

import (
	"log/slog"

	"dongpa/internal/config"
	"dongpa/internal/market"
	"dongpa/internal/store"
)

// Resources are the long-lived stores and sources built from configuration.
type Resources struct {
	Parquet *store.ParquetStore
	Runs    *store.SQLiteStore
	Alpaca  *market.AlpacaSource // nil without credentials
}

// Close releases the run database.
func (r *Resources) Close() error {
	if r.Runs == nil {
		return nil
	}
	return r.Runs.Close()
}

// Source returns the bar source: the local parquet archive, falling back to
// Alpaca when credentials are configured.
func (r *Resources) Source() market.BarSource {
	local := market.NewParquetSource(r.Parquet)
	if r.Alpaca == nil {
		return local
	}
	return market.Fallback{Primary: local, Secondary: r.Alpaca}
}

// OpenResources opens the parquet archive and run database named by cfg.
func OpenResources(cfg *config.Config, log *slog.Logger) (*Resources, error) {
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	res := &Resources{
		Parquet: store.NewParquetStore(cfg.Storage.DataDir),
		Runs:    runs,
	}
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		res.Alpaca = market.NewAlpacaSource(AlpacaOptions(cfg), log)
	} else {
		log.Warn("alpaca credentials not set, serving bars from the local archive only")
	}
	return res, nil
}

// AlpacaOptions maps cfg onto market.AlpacaOptions.
func AlpacaOptions(cfg *config.Config) market.AlpacaOptions {
	return market.AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
		MaxAttempts:     cfg.Fetch.MaxAttempts,
	}
}

// NewFromConfig builds a Service over res with the defaults in cfg.
func NewFromConfig(cfg *config.Config, res *Resources, log *slog.Logger) (*Service, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Source = res.Source()
	opts.Runs = res.Runs
	opts.Ledgers = res.Parquet
	opts.Log = log
	return New(opts), nil
}
