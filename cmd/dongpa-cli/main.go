package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dongpa/internal/api"
	"dongpa/internal/config"
	"dongpa/internal/domain"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
	"dongpa/internal/util"
	"dongpa/pkg/dongpa"
)

const version = "0.1.0"

// backend is implemented by the local service and both remote clients.
type backend interface {
	Describe(ctx context.Context, mode string) (domain.Description, error)
	Signal(ctx context.Context, cfg domain.StrategyConfig) (*service.SignalResult, error)
	Backtest(ctx context.Context, req service.BacktestRequest) (*service.BacktestRun, error)
	Compare(ctx context.Context, req service.CompareRequest) (*strategy.Comparison, error)
	Report(ctx context.Context, req service.BacktestRequest) (*strategy.Report, error)
	Runs(ctx context.Context, limit int) ([]store.Run, error)
	Run(ctx context.Context, id string) (*service.RunDetail, error)
}

// localBackend adapts *service.Service, whose Describe takes no context.
type localBackend struct{ *service.Service }

func (b localBackend) Describe(_ context.Context, mode string) (domain.Description, error) {
	return b.Service.Describe(mode)
}

// grpcBackend has no run archive calls.
type grpcBackend struct{ *api.Client }

var errNoArchive = errors.New("run archive is not available over gRPC; use -server")

func (grpcBackend) Runs(context.Context, int) ([]store.Run, error)          { return nil, errNoArchive }
func (grpcBackend) Run(context.Context, string) (*service.RunDetail, error) { return nil, errNoArchive }

// httpBackend adapts the HTTP SDK, which declares its own wire types, by
// re-decoding each response into the service types.
type httpBackend struct{ c *dongpa.Client }

func recode[T any](v any, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

func sdkConfig(cfg domain.StrategyConfig) dongpa.StrategyConfig {
	return dongpa.StrategyConfig{InitialCapital: cfg.InitialCapital, Divisions: cfg.Divisions, Mode: string(cfg.Mode)}
}

func (h httpBackend) Describe(ctx context.Context, mode string) (domain.Description, error) {
	d, err := h.c.Describe(ctx, mode)
	return recode[domain.Description](d, err)
}

func (h httpBackend) Signal(ctx context.Context, cfg domain.StrategyConfig) (*service.SignalResult, error) {
	sig, err := h.c.Signal(ctx, sdkConfig(cfg))
	return recode[*service.SignalResult](sig, err)
}

func (h httpBackend) Backtest(ctx context.Context, req service.BacktestRequest) (*service.BacktestRun, error) {
	run, err := h.c.Backtest(ctx, dongpa.BacktestRequest{Config: sdkConfig(req.Config), Days: req.Days})
	return recode[*service.BacktestRun](run, err)
}

func (h httpBackend) Compare(ctx context.Context, req service.CompareRequest) (*strategy.Comparison, error) {
	cmp, err := h.c.Compare(ctx, dongpa.CompareRequest{InitialCapital: req.InitialCapital, Days: req.Days})
	return recode[*strategy.Comparison](cmp, err)
}

func (h httpBackend) Report(ctx context.Context, req service.BacktestRequest) (*strategy.Report, error) {
	rep, err := h.c.Report(ctx, dongpa.BacktestRequest{Config: sdkConfig(req.Config), Days: req.Days})
	return recode[*strategy.Report](rep, err)
}

func (h httpBackend) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	runs, err := h.c.Runs(ctx, limit)
	return recode[[]store.Run](runs, err)
}

func (h httpBackend) Run(ctx context.Context, id string) (*service.RunDetail, error) {
	run, err := h.c.Run(ctx, id)
	return recode[*service.RunDetail](run, err)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: dongpa-cli [-server URL | -grpc ADDR] <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  mode       Describe a mode (safe, aggressive)\n")
	fmt.Fprintf(os.Stderr, "  signal     Compute today's signal\n")
	fmt.Fprintf(os.Stderr, "  backtest   Run and archive a backtest\n")
	fmt.Fprintf(os.Stderr, "  compare    Backtest every mode and division count\n")
	fmt.Fprintf(os.Stderr, "  report     Print a performance report\n")
	fmt.Fprintf(os.Stderr, "  runs       List archived runs\n")
	fmt.Fprintf(os.Stderr, "  run <id>   Show one archived run with its ledger\n")
	fmt.Fprintf(os.Stderr, "\nGlobal options:\n")
	flag.PrintDefaults()
}

func main() {
	serverURL := flag.String("server", "", "dongpa-server HTTP base URL (default: run locally)")
	grpcAddr := flag.String("grpc", "", "dongpa-server gRPC address (default: run locally)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Printf("dongpa-cli %s\n", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, closeFn, err := open(*serverURL, *grpcAddr)
	if err != nil {
		log.Fatal(err)
	}
	defer closeFn()

	if err := run(ctx, b, cmd, args); err != nil {
		closeFn()
		log.Fatalf("%s: %v", cmd, err)
	}
}

func open(serverURL, grpcAddr string) (backend, func(), error) {
	switch {
	case serverURL != "" && grpcAddr != "":
		return nil, nil, errors.New("-server and -grpc are mutually exclusive")
	case serverURL != "":
		return httpBackend{dongpa.NewClient(serverURL)}, func() {}, nil
	case grpcAddr != "":
		c, err := api.Dial(grpcAddr)
		if err != nil {
			return nil, nil, err
		}
		return grpcBackend{c}, func() { c.Close() }, nil
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text")
	util.SetDefault(logger)

	res, err := service.OpenResources(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening stores: %w", err)
	}
	svc, err := service.NewFromConfig(cfg, res, logger)
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	return localBackend{svc}, func() { res.Close() }, nil
}

// runFlags are the options shared by the strategy commands.
type runFlags struct {
	capital   float64
	divisions int
	mode      string
	days      int
	trades    bool
	limit     int
}

func parseFlags(cmd string, args []string) (*runFlags, []string, error) {
	f := &runFlags{}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.Float64Var(&f.capital, "capital", 0, "initial capital (default from config)")
	fs.IntVar(&f.divisions, "divisions", 0, "number of tranches, 3-10 (default from config)")
	fs.StringVar(&f.mode, "mode", "", "safe or aggressive (default from config)")
	fs.IntVar(&f.days, "days", 0, "backtest window in trading days, 30-365 (default from config)")
	fs.BoolVar(&f.trades, "trades", false, "include the per-day ledger in backtest output")
	fs.IntVar(&f.limit, "limit", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

func (f *runFlags) config() (domain.StrategyConfig, error) {
	cfg := domain.StrategyConfig{InitialCapital: f.capital, Divisions: f.divisions}
	if f.mode != "" {
		m, err := domain.ParseMode(f.mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
	}
	return cfg, nil
}

func run(ctx context.Context, b backend, cmd string, args []string) error {
	f, rest, err := parseFlags(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := f.config()
	if err != nil {
		return err
	}

	switch cmd {
	case "mode":
		mode := f.mode
		if len(rest) > 0 {
			mode = rest[0]
		}
		d, err := b.Describe(ctx, mode)
		if err != nil {
			return err
		}
		return printJSON(d)

	case "signal":
		sig, err := b.Signal(ctx, cfg)
		if err != nil {
			return err
		}
		return printJSON(sig.Rounded())

	case "backtest":
		res, err := b.Backtest(ctx, service.BacktestRequest{Config: cfg, Days: f.days})
		if err != nil {
			return err
		}
		out := res.Rounded()
		if !f.trades {
			out.Trades = nil
		}
		return printJSON(out)

	case "compare":
		cmp, err := b.Compare(ctx, service.CompareRequest{InitialCapital: f.capital, Days: f.days})
		if err != nil {
			return err
		}
		return printJSON(cmp)

	case "report":
		rep, err := b.Report(ctx, service.BacktestRequest{Config: cfg, Days: f.days})
		if err != nil {
			return err
		}
		return printJSON(rep.Rounded())

	case "runs":
		runs, err := b.Runs(ctx, f.limit)
		if err != nil {
			return err
		}
		return printJSON(runs)

	case "run":
		if len(rest) != 1 {
			return errors.New("usage: dongpa-cli run <id>")
		}
		detail, err := b.Run(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(detail)
	}

	usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
