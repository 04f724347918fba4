package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"SignalSim/internal/domain/models"
	domrepo "SignalSim/internal/domain/repository"
	"SignalSim/pkg/util"
)

// CSVSource loads candles from a timestamp,open,high,low,close,volume file.
// The header row is optional. Timestamps may be RFC3339 or unix seconds/ms.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// FetchCandles reads the whole file and keeps the last lookback window.
// A non-positive lookbackDays returns every row.
func (s *CSVSource) FetchCandles(_ context.Context, symbol string, interval domrepo.Interval, lookbackDays int) ([]models.Candle, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	candles, err := ReadCandlesCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	if lookbackDays > 0 {
		candles = tail(candles, lookbackDays*domrepo.BarsPerDay(interval))
	}
	return candles, nil
}

// ReadCandlesCSV parses rows into candles sorted by timestamp.
func ReadCandlesCSV(r io.Reader, symbol string) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []models.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 columns, got %d", line, len(rec))
		}
		ts, ok := util.ParseTime(rec[0])
		if !ok {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid timestamp %q", line, rec[0])
		}
		var vals [5]float64
		for i := range vals {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+2, err)
			}
			vals[i] = v
		}
		out = append(out, models.Candle{
			Timestamp: ts,
			Symbol:    strings.ToUpper(symbol),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var _ domrepo.CandleSource = (*CSVSource)(nil)
