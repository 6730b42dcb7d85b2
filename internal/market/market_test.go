package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"dongpa/internal/domain"
	"dongpa/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveChange(t *testing.T) {
	bars := []domain.Bar{
		{Price: 30, ChangePercent: 99},
		{Price: 28.2},
		{Price: 29.61},
		{Price: 29.61},
	}
	DeriveChange(bars)

	want := []float64{0, -6, 5, 0}
	for i, w := range want {
		if bars[i].ChangePercent != w {
			t.Errorf("bar %d change = %v, want %v", i, bars[i].ChangePercent, w)
		}
	}
}

func TestDeriveChangeRounds(t *testing.T) {
	bars := DeriveChange([]domain.Bar{{Price: 3}, {Price: 3.1}})
	// 3.333...% rounds to 3.33.
	if bars[1].ChangePercent != 3.33 {
		t.Errorf("change = %v, want 3.33", bars[1].ChangePercent)
	}
}

func seedStore(t *testing.T, closes ...float64) *store.ParquetStore {
	t.Helper()
	ps := store.NewParquetStore(t.TempDir())
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "SOXL", Date: day(2024, 2, 1).AddDate(0, 0, i), Price: c}
	}
	if err := ps.WriteBars(context.Background(), bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	return ps
}

func TestParquetSourceRecentBars(t *testing.T) {
	src := NewParquetSource(seedStore(t, 10, 20, 19, 20.9, 19.855))

	got, err := src.RecentBars(context.Background(), "soxl", 3)
	if err != nil {
		t.Fatalf("RecentBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bars, want 3", len(got))
	}
	// The first kept bar derives its change from the bar before the window.
	want := []float64{-5, 10, -5}
	for i, w := range want {
		if got[i].ChangePercent != w {
			t.Errorf("bar %d change = %v, want %v", i, got[i].ChangePercent, w)
		}
	}
	if got[2].Day() != "2024-02-05" {
		t.Errorf("last bar date = %s, want 2024-02-05", got[2].Day())
	}
}

func TestParquetSourceShortHistory(t *testing.T) {
	src := NewParquetSource(seedStore(t, 10, 11))

	got, err := src.RecentBars(context.Background(), "SOXL", 5)
	if err != nil {
		t.Fatalf("RecentBars: %v", err)
	}
	if len(got) != 2 || got[0].ChangePercent != 0 || got[1].ChangePercent != 10 {
		t.Errorf("RecentBars = %+v", got)
	}
}

type fakeClient struct {
	calls int
	fail  int
	reqs  []marketdata.GetBarsRequest
	bars  []marketdata.Bar
}

func (f *fakeClient) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.calls <= f.fail {
		return nil, errors.New("503 service unavailable")
	}
	return f.bars, nil
}

func alpacaBars(closes ...float64) []marketdata.Bar {
	out := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		out[i] = marketdata.Bar{
			Timestamp: time.Date(2024, 2, 1+i, 5, 0, 0, 0, time.UTC),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume: uint64(1000 * (i + 1)),
		}
	}
	return out
}

func TestAlpacaSourceRetriesAndConverts(t *testing.T) {
	fc := &fakeClient{fail: 2, bars: alpacaBars(50, 45, 46.8)}
	src := newAlpacaSource(fc, AlpacaOptions{MaxAttempts: 3}, nil)
	src.retryDelay = 0
	src.now = func() time.Time { return day(2024, 2, 10) }

	got, err := src.RecentBars(context.Background(), "soxl", 2)
	if err != nil {
		t.Fatalf("RecentBars: %v", err)
	}
	if fc.calls != 3 {
		t.Errorf("GetBars called %d times, want 3", fc.calls)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if got[0].Symbol != "SOXL" || got[0].Day() != "2024-02-02" || got[0].ChangePercent != -10 {
		t.Errorf("first bar = %+v", got[0])
	}
	if got[1].ChangePercent != 4 || got[1].Volume != 3000 {
		t.Errorf("second bar = %+v", got[1])
	}

	req := fc.reqs[0]
	if req.TimeFrame != marketdata.OneDay || req.Feed != "iex" {
		t.Errorf("request = %+v", req)
	}
	if !req.End.Equal(day(2024, 2, 10)) || !req.Start.Before(day(2024, 2, 1)) {
		t.Errorf("request range = %v..%v", req.Start, req.End)
	}
}

func TestAlpacaSourceGivesUp(t *testing.T) {
	fc := &fakeClient{fail: 10}
	src := newAlpacaSource(fc, AlpacaOptions{MaxAttempts: 2, Feed: "sip"}, nil)
	src.retryDelay = 0

	if _, err := src.FetchRange(context.Background(), "SOXL", day(2024, 1, 1), day(2024, 2, 1)); err == nil {
		t.Fatal("FetchRange succeeded with a failing client")
	}
	if fc.calls != 2 {
		t.Errorf("GetBars called %d times, want 2", fc.calls)
	}
	if fc.reqs[0].Feed != "sip" {
		t.Errorf("feed = %q, want sip", fc.reqs[0].Feed)
	}
}

// calendarClient serves one bar per trading day inside the requested range,
// skipping weekends, holidays and anything before listed.
type calendarClient struct {
	listed   time.Time
	holidays map[string]bool
	trades   func(time.Time) bool
	calls    int
}

func (c *calendarClient) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	c.calls++
	var out []marketdata.Bar
	from := req.Start
	if from.Before(c.listed) {
		from = c.listed
	}
	for d := from; !d.After(req.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || c.holidays[d.Format("2006-01-02")] {
			continue
		}
		if c.trades != nil && !c.trades(d) {
			continue
		}
		price := 40.0
		if len(out)%2 == 1 {
			price = 42
		}
		out = append(out, marketdata.Bar{Timestamp: d.Add(5 * time.Hour), Open: price, High: price, Low: price, Close: price})
	}
	return out, nil
}

var nyseHolidays = map[string]bool{
	"2023-01-02": true, "2023-01-16": true, "2023-02-20": true, "2023-04-07": true,
	"2023-05-29": true, "2023-06-19": true, "2023-07-04": true, "2023-09-04": true,
	"2023-11-23": true, "2023-12-25": true,
	"2024-01-01": true, "2024-01-15": true, "2024-02-19": true, "2024-03-29": true,
	"2024-05-27": true, "2024-06-19": true, "2024-07-04": true, "2024-09-02": true,
	"2024-11-28": true, "2024-12-25": true,
}

func TestAlpacaSourceCoversHolidays(t *testing.T) {
	for _, n := range []int{30, 90, 250, 365} {
		fc := &calendarClient{listed: day(2020, 1, 1), holidays: nyseHolidays}
		src := newAlpacaSource(fc, AlpacaOptions{}, nil)
		src.now = func() time.Time { return day(2024, 12, 31) }

		got, err := src.RecentBars(context.Background(), "SOXL", n)
		if err != nil {
			t.Fatalf("RecentBars(%d): %v", n, err)
		}
		if len(got) != n {
			t.Errorf("RecentBars(%d) returned %d bars", n, len(got))
			continue
		}
		if got[0].ChangePercent == 0 {
			t.Errorf("RecentBars(%d): first bar %s has no change", n, got[0].Day())
		}
		if got[n-1].Day() != "2024-12-31" {
			t.Errorf("RecentBars(%d): last bar %s", n, got[n-1].Day())
		}
		if fc.calls != 1 {
			t.Errorf("RecentBars(%d) fetched %d times, want 1", n, fc.calls)
		}
	}
}

func TestAlpacaSourceWidensSparseHistory(t *testing.T) {
	fc := &calendarClient{
		listed: day(2020, 1, 1),
		trades: func(d time.Time) bool { return d.Weekday() == time.Monday },
	}
	src := newAlpacaSource(fc, AlpacaOptions{}, nil)
	src.now = func() time.Time { return day(2024, 12, 31) }

	got, err := src.RecentBars(context.Background(), "SOXL", 30)
	if err != nil {
		t.Fatalf("RecentBars: %v", err)
	}
	if len(got) != 30 || got[0].ChangePercent == 0 {
		t.Errorf("got %d bars, first change %v", len(got), got[0].ChangePercent)
	}
	if fc.calls != 3 {
		t.Errorf("fetched %d times, want 3", fc.calls)
	}
}

func TestAlpacaSourceShortHistory(t *testing.T) {
	fc := &calendarClient{listed: day(2024, 12, 2), holidays: nyseHolidays}
	src := newAlpacaSource(fc, AlpacaOptions{}, nil)
	src.now = func() time.Time { return day(2024, 12, 31) }

	got, err := src.RecentBars(context.Background(), "SOXL", 90)
	if err != nil {
		t.Fatalf("RecentBars: %v", err)
	}
	if len(got) != 21 || got[0].Day() != "2024-12-02" {
		t.Errorf("got %d bars starting %v", len(got), got)
	}
	if fc.calls != 2 {
		t.Errorf("fetched %d times, want 2", fc.calls)
	}
}

type stubSource struct {
	bars []domain.Bar
	err  error
}

func (s stubSource) RecentBars(context.Context, string, int) ([]domain.Bar, error) {
	return s.bars, s.err
}

func TestFallback(t *testing.T) {
	full := stubSource{bars: make([]domain.Bar, 3)}
	short := stubSource{bars: make([]domain.Bar, 1)}
	broken := stubSource{err: errors.New("disk")}

	tests := []struct {
		name    string
		src     Fallback
		wantLen int
		wantErr bool
	}{
		{"primary enough", Fallback{Primary: full, Secondary: broken}, 3, false},
		{"primary short", Fallback{Primary: short, Secondary: full}, 3, false},
		{"primary error", Fallback{Primary: broken, Secondary: full}, 3, false},
		{"no secondary", Fallback{Primary: short}, 1, false},
		{"both fail", Fallback{Primary: short, Secondary: broken}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.RecentBars(context.Background(), "SOXL", 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("got %d bars, want %d", len(got), tt.wantLen)
			}
		})
	}
}
