package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"dongpa/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ LedgerStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and LedgerStore using Parquet files on
// disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data. The change percent is
// not stored; it is derived from consecutive closes when bars are loaded.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// LedgerRecord is the Parquet schema for one exported ledger row.
type LedgerRecord struct {
	Date          string  `parquet:"date"`
	Price         float64 `parquet:"price"`
	ChangePercent float64 `parquet:"change_percent"`
	Action        string  `parquet:"action,dict"`
	Quantity      int64   `parquet:"quantity"`
	Amount        float64 `parquet:"amount"`
	Commission    float64 `parquet:"commission"`
	Profit        float64 `parquet:"profit"`
	Cash          float64 `parquet:"cash"`
	Holdings      int64   `parquet:"holdings"`
	AvgPrice      float64 `parquet:"avg_price"`
	CurrentValue  float64 `parquet:"current_value"`
	TotalAssets   float64 `parquet:"total_assets"`
	ReturnRate    float64 `parquet:"return_rate"`
	Drawdown      float64 `parquet:"drawdown"`
}

func toBarRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:    strings.ToUpper(b.Symbol),
		Timestamp: b.Date.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Price,
		Volume:    b.Volume,
	}
}

func (r BarRecord) toBar() domain.Bar {
	return domain.Bar{
		Symbol: r.Symbol,
		Date:   time.UnixMilli(r.Timestamp).UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Price:  r.Close,
		Volume: r.Volume,
	}
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bars to Parquet files grouped by symbol and year. Each
// group is merged into:
//
//	<DataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		if b.Symbol == "" {
			return fmt.Errorf("writing bars: bar on %s has no symbol", b.Day())
		}
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Date.UTC().Year()}
		groups[k] = append(groups[k], toBarRecord(b))
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading bars for %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bars for symbol within [start, end].
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(symbol, year))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading bars for %s/%d: %w", symbol, year, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if !ts.Before(start) && !ts.After(end) {
				bars = append(bars, r.toBar())
			}
		}
	}
	return bars, nil
}

// LastBars walks the year files of symbol from the newest backwards until n
// bars are collected.
func (s *ParquetStore) LastBars(_ context.Context, symbol string, n int) ([]domain.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	years, err := s.years(symbol)
	if err != nil {
		return nil, err
	}

	var records []BarRecord
	for i := len(years) - 1; i >= 0 && len(records) < n; i-- {
		rs, err := readParquetFile[BarRecord](s.barPath(symbol, years[i]))
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s/%d: %w", symbol, years[i], err)
		}
		records = append(rs, records...)
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}

	bars := make([]domain.Bar, len(records))
	for i, r := range records {
		bars[i] = r.toBar()
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "bars"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// years returns the years with a bar file for symbol, ascending.
func (s *ParquetStore) years(symbol string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Dir(s.barPath(symbol, 0)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var years []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if !ok || e.IsDir() {
			continue
		}
		if y, err := strconv.Atoi(name); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// ---------------------------------------------------------------------------
// LedgerStore implementation
// ---------------------------------------------------------------------------

// WriteLedger writes the ledger of runID to <DataDir>/ledgers/<runID>.parquet,
// replacing any previous export.
func (s *ParquetStore) WriteLedger(_ context.Context, runID string, trades []domain.Trade) error {
	path, err := s.ledgerPath(runID)
	if err != nil {
		return err
	}
	records := make([]LedgerRecord, len(trades))
	for i, t := range trades {
		records[i] = LedgerRecord{
			Date:          t.Date,
			Price:         t.Price,
			ChangePercent: t.ChangePercent,
			Action:        string(t.Action),
			Quantity:      t.Quantity,
			Amount:        t.Amount,
			Commission:    t.Commission,
			Profit:        t.Profit,
			Cash:          t.Cash,
			Holdings:      t.Holdings,
			AvgPrice:      t.AvgPrice,
			CurrentValue:  t.CurrentValue,
			TotalAssets:   t.TotalAssets,
			ReturnRate:    t.ReturnRate,
			Drawdown:      t.Drawdown,
		}
	}
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing ledger %s: %w", runID, err)
	}
	return nil
}

// ReadLedger loads an exported ledger. A missing export wraps ErrRunNotFound.
func (s *ParquetStore) ReadLedger(_ context.Context, runID string) ([]domain.Trade, error) {
	path, err := s.ledgerPath(runID)
	if err != nil {
		return nil, err
	}
	records, err := readParquetFile[LedgerRecord](path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ledger %s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("reading ledger %s: %w", runID, err)
	}
	trades := make([]domain.Trade, len(records))
	for i, r := range records {
		trades[i] = domain.Trade{
			Date:          r.Date,
			Price:         r.Price,
			ChangePercent: r.ChangePercent,
			Action:        domain.Action(r.Action),
			Quantity:      r.Quantity,
			Amount:        r.Amount,
			Commission:    r.Commission,
			Profit:        r.Profit,
			Cash:          r.Cash,
			Holdings:      r.Holdings,
			AvgPrice:      r.AvgPrice,
			CurrentValue:  r.CurrentValue,
			TotalAssets:   r.TotalAssets,
			ReturnRate:    r.ReturnRate,
			Drawdown:      r.Drawdown,
		}
	}
	return trades, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "bars", strings.ToUpper(symbol), strconv.Itoa(year)+".parquet")
}

// ledgerPath returns the filesystem path for an exported ledger.
// Layout: <dataDir>/ledgers/<runID>.parquet
func (s *ParquetStore) ledgerPath(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(s.DataDir, "ledgers", runID+".parquet"), nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
