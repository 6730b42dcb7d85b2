package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dongpa/internal/domain"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
	"dongpa/pkg/dongpa"
)

type recordingBackend struct {
	cfg domain.StrategyConfig
	req service.BacktestRequest
}

func (r *recordingBackend) Describe(_ context.Context, mode string) (domain.Description, error) {
	m, err := domain.ParseMode(mode)
	if err != nil {
		return domain.Description{}, err
	}
	d, _ := m.Describe()
	return d, nil
}

func (r *recordingBackend) Signal(_ context.Context, cfg domain.StrategyConfig) (*service.SignalResult, error) {
	r.cfg = cfg
	return &service.SignalResult{Config: cfg}, nil
}

func (r *recordingBackend) Backtest(_ context.Context, req service.BacktestRequest) (*service.BacktestRun, error) {
	r.req = req
	return &service.BacktestRun{BacktestResult: &strategy.BacktestResult{Config: req.Config}}, nil
}

func (r *recordingBackend) Compare(context.Context, service.CompareRequest) (*strategy.Comparison, error) {
	return &strategy.Comparison{}, nil
}

func (r *recordingBackend) Report(context.Context, service.BacktestRequest) (*strategy.Report, error) {
	return &strategy.Report{}, nil
}

func (r *recordingBackend) Runs(context.Context, int) ([]store.Run, error) { return nil, nil }

func (r *recordingBackend) Run(context.Context, string) (*service.RunDetail, error) {
	return &service.RunDetail{}, nil
}

func TestRunPassesFlags(t *testing.T) {
	b := &recordingBackend{}
	err := run(context.Background(), b, "backtest", []string{"-capital", "5000", "-divisions", "5", "-mode", "Aggressive", "-days", "60"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := service.BacktestRequest{
		Config: domain.StrategyConfig{InitialCapital: 5000, Divisions: 5, Mode: domain.ModeAggressive},
		Days:   60,
	}
	if b.req != want {
		t.Errorf("request = %+v, want %+v", b.req, want)
	}
}

func TestRunDefaultsLeftToServer(t *testing.T) {
	b := &recordingBackend{}
	if err := run(context.Background(), b, "signal", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.cfg != (domain.StrategyConfig{}) {
		t.Errorf("config = %+v, want zero", b.cfg)
	}
}

func TestRunErrors(t *testing.T) {
	b := &recordingBackend{}
	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"bad mode", "signal", []string{"-mode", "yolo"}},
		{"unknown command", "frobnicate", nil},
		{"run without id", "run", nil},
		{"describe unknown", "mode", []string{"turbo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), b, tt.cmd, tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenRejectsBothRemotes(t *testing.T) {
	if _, _, err := open("http://localhost:8080", "localhost:9090"); err == nil {
		t.Error("expected error")
	}
}

func TestHTTPBackendRecodesResponses(t *testing.T) {
	var got service.BacktestRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Write([]byte(`{"runId":"r1","symbol":"SOXL","trades":[{"date":"2024-01-02","action":"BUY","quantity":3}],` +
			`"summary":{"totalTrades":1,"finalReturn":1.5},"config":{"initialCapital":5000,"divisions":5,"mode":"safe"},` +
			`"period":{"start":"2024-01-02","end":"2024-03-28","days":60}}`))
	}))
	defer ts.Close()

	b := httpBackend{dongpa.NewClient(ts.URL)}
	req := service.BacktestRequest{Config: domain.StrategyConfig{Divisions: 5}, Days: 60}
	run, err := b.Backtest(context.Background(), req)
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if got != req {
		t.Errorf("server saw %+v, want %+v", got, req)
	}
	if run.RunID != "r1" || run.Config.Mode != domain.ModeSafe || run.Period.Days != 60 {
		t.Errorf("run = %+v", run)
	}
	if len(run.Trades) != 1 || run.Trades[0].Action != domain.ActionBuy || run.Summary.FinalReturn != 1.5 {
		t.Errorf("trades = %+v summary = %+v", run.Trades, run.Summary)
	}
}
