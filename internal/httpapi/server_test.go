package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dongpa/internal/domain"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
)

type staticSource []domain.Bar

func (s staticSource) RecentBars(_ context.Context, _ string, n int) ([]domain.Bar, error) {
	if n < len(s) {
		return s[len(s)-n:], nil
	}
	return s, nil
}

func testBars(n int) staticSource {
	changes := []float64{-6, 4, 3, -7, 2, 5, 1, -5.5, 3.5, 2.5}
	out := make(staticSource, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 30.0
	for i := range out {
		c := changes[i%len(changes)]
		price *= 1 + c/100
		out[i] = domain.Bar{Symbol: "SOXL", Date: start.AddDate(0, 0, i), Price: price, ChangePercent: c}
	}
	return out
}

func newTestServer(t *testing.T, withStores bool) *httptest.Server {
	t.Helper()
	opts := service.Options{
		Symbol:   "SOXL",
		Defaults: domain.StrategyConfig{InitialCapital: 10000, Divisions: 7, Mode: domain.ModeSafe},
		Source:   testBars(120),
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if withStores {
		dir := t.TempDir()
		runs, err := store.NewSQLiteStore(filepath.Join(dir, "runs.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { runs.Close() })
		opts.Runs = runs
		opts.Ledgers = store.NewParquetStore(dir)
	}
	ts := httptest.NewServer(NewServer(service.New(opts), opts.Log).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	var got HealthResponse
	if code := do(t, ts, "GET", "/api/health", "", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Status != "healthy" || got.Symbol != "SOXL" {
		t.Errorf("health = %+v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, false)
	req, _ := http.NewRequest("OPTIONS", ts.URL+"/api/dongpa/backtest", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, false)

	var d domain.Description
	if code := do(t, ts, "GET", "/api/dongpa/summary/aggressive", "", &d); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if d.Mode != domain.ModeAggressive || d.BuyTarget != 5 || d.SellTarget != 2.5 {
		t.Errorf("description = %+v", d)
	}

	var e map[string]string
	if code := do(t, ts, "GET", "/api/dongpa/summary/yolo", "", &e); code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want 400", code)
	}
	if e["error"] == "" {
		t.Error("missing error message")
	}
}

func TestSignals(t *testing.T) {
	ts := newTestServer(t, false)

	var got service.SignalResult
	code := do(t, ts, "POST", "/api/dongpa/signals", `{"initialCapital":10000,"divisions":5,"mode":"aggressive"}`, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Config.Mode != domain.ModeAggressive || got.Config.Divisions != 5 {
		t.Errorf("config = %+v", got.Config)
	}
	if got.Symbol != "SOXL" || got.Date == "" {
		t.Errorf("signal = %+v", got)
	}
	if got.TotalAssets != strategy.Round2(got.TotalAssets) {
		t.Errorf("total assets %v not rounded", got.TotalAssets)
	}

	if code := do(t, ts, "POST", "/api/dongpa/signals", `{"divisions":2}`, nil); code != http.StatusBadRequest {
		t.Errorf("bad divisions status = %d, want 400", code)
	}
	if code := do(t, ts, "POST", "/api/dongpa/signals", `{"mode":"reckless"}`, nil); code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", code)
	}
	if code := do(t, ts, "POST", "/api/dongpa/signals", `{not json`, nil); code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", code)
	}
}

func TestBacktestArchivesRun(t *testing.T) {
	ts := newTestServer(t, true)

	var bt service.BacktestRun
	code := do(t, ts, "POST", "/api/dongpa/backtest", `{"config":{"mode":"safe","divisions":5},"days":60}`, &bt)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if bt.RunID == "" {
		t.Fatal("no run id")
	}
	if len(bt.Trades) != 60 || bt.Period.Days != 60 {
		t.Errorf("got %d trades over %d days, want 60", len(bt.Trades), bt.Period.Days)
	}
	if bt.Summary != strategy.RoundSummary(bt.Summary) {
		t.Errorf("summary not rounded: %+v", bt.Summary)
	}

	var runs RunsResponse
	if code := do(t, ts, "GET", "/api/dongpa/runs?limit=5", "", &runs); code != http.StatusOK {
		t.Fatalf("runs status = %d", code)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].ID != bt.RunID {
		t.Fatalf("runs = %+v", runs.Runs)
	}

	var detail service.RunDetail
	if code := do(t, ts, "GET", "/api/dongpa/runs/"+bt.RunID, "", &detail); code != http.StatusOK {
		t.Fatalf("run status = %d", code)
	}
	if len(detail.Trades) != 60 || detail.Config.Divisions != 5 {
		t.Errorf("detail has %d trades, config %+v", len(detail.Trades), detail.Config)
	}

	if code := do(t, ts, "GET", "/api/dongpa/runs/missing", "", nil); code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", code)
	}
}

func TestBacktestRejectsWindow(t *testing.T) {
	ts := newTestServer(t, false)
	if code := do(t, ts, "POST", "/api/dongpa/backtest", `{"days":10}`, nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	ts := newTestServer(t, false)
	var runs RunsResponse
	if code := do(t, ts, "GET", "/api/dongpa/runs", "", &runs); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if runs.Runs == nil || len(runs.Runs) != 0 {
		t.Errorf("runs = %#v, want empty", runs.Runs)
	}
	if code := do(t, ts, "GET", "/api/dongpa/runs?limit=x", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", code)
	}
}

func TestCompare(t *testing.T) {
	ts := newTestServer(t, false)
	var cmp strategy.Comparison
	if code := do(t, ts, "POST", "/api/dongpa/compare", `{"initialCapital":5000}`, &cmp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(cmp.Results) != 6 || cmp.BestStrategy.Strategy == "" {
		t.Errorf("comparison = %+v", cmp)
	}
	for _, r := range cmp.Results {
		if r.Config.InitialCapital != 5000 {
			t.Errorf("%s capital = %v", r.Key, r.Config.InitialCapital)
		}
	}
}

func TestReport(t *testing.T) {
	ts := newTestServer(t, false)
	var rep strategy.Report
	if code := do(t, ts, "POST", "/api/dongpa/report", "", &rep); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if rep.Overview.Period.Days != 90 {
		t.Errorf("period = %+v, want 90 days", rep.Overview.Period)
	}
	if len(rep.Recommendations) == 0 {
		t.Error("no recommendations")
	}
}

func TestBars(t *testing.T) {
	ts := newTestServer(t, false)

	var got BarsResponse
	if code := do(t, ts, "GET", "/api/bars?days=15", "", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(got.Bars) != 15 {
		t.Errorf("got %d bars, want 15", len(got.Bars))
	}

	var latest domain.Bar
	if code := do(t, ts, "GET", "/api/bars/latest", "", &latest); code != http.StatusOK {
		t.Fatalf("latest status = %d", code)
	}
	if !latest.Date.Equal(got.Bars[len(got.Bars)-1].Date) {
		t.Errorf("latest = %v, want %v", latest.Date, got.Bars[len(got.Bars)-1].Date)
	}

	if code := do(t, ts, "GET", "/api/bars?days=400", "", nil); code != http.StatusBadRequest {
		t.Errorf("out of range status = %d, want 400", code)
	}
}

func TestNoSource(t *testing.T) {
	srv := NewServer(service.New(service.Options{}), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/bars?days=5", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestBadSourceDataIsServerError(t *testing.T) {
	bars := testBars(120)
	bars[len(bars)-5].Price = 0
	svc := service.New(service.Options{
		Defaults: domain.StrategyConfig{InitialCapital: 10000, Divisions: 7, Mode: domain.ModeSafe},
		Source:   bars,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := NewServer(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/dongpa/backtest", strings.NewReader(`{"days":60}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || !strings.Contains(body["error"], "invalid bar") {
		t.Errorf("body = %v (%v)", body, err)
	}
}
