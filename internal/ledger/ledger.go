package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeRecord is one executed trade. PnL is set only on sells.
type TradeRecord struct {
	Timestamp time.Time
	Pair      string
	Side      Side
	Qty       float64
	Price     float64
	Notional  float64
	PnL       *float64
	OrderID   string
}

var header = []string{"timestamp", "pair", "side", "qty", "price", "notional", "pnl", "order_id"}

// CSV is an append-only trade ledger backed by a delimited text file.
// Rows are never updated or deleted.
type CSV struct {
	mu   sync.Mutex
	path string
}

func NewCSV(path string) (*CSV, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &CSV{path: path}, nil
}

func (l *CSV) Path() string { return l.path }

// Append writes one record, creating the file with a header row on first use.
func (l *CSV) Append(record TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, statErr := os.Stat(l.path)
	newFile := os.IsNotExist(statErr)
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if newFile {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("ledger append: %w", err)
		}
	}
	pnl := ""
	if record.PnL != nil {
		pnl = strconv.FormatFloat(*record.PnL, 'f', 2, 64)
	}
	row := []string{
		record.Timestamp.UTC().Format(time.RFC3339),
		record.Pair,
		string(record.Side),
		strconv.FormatFloat(record.Qty, 'f', 8, 64),
		strconv.FormatFloat(record.Price, 'f', 6, 64),
		strconv.FormatFloat(record.Notional, 'f', 2, 64),
		pnl,
		record.OrderID,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}

// ReadAll returns every record in file order. A missing file is an empty
// ledger. Empty pnl fields are tolerated.
func (l *CSV) ReadAll() ([]TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)
	var records []TradeRecord
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ledger read: %w", err)
		}
		if first {
			first = false
			if row[0] == header[0] {
				continue
			}
		}
		record, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("ledger read: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Recent returns up to n most recent records, newest last.
func (l *CSV) Recent(n int) ([]TradeRecord, error) {
	records, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(records) <= n {
		return records, nil
	}
	return records[len(records)-n:], nil
}

func parseRow(row []string) (TradeRecord, error) {
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return TradeRecord{}, err
	}
	qty, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return TradeRecord{}, err
	}
	price, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return TradeRecord{}, err
	}
	notional, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return TradeRecord{}, err
	}
	record := TradeRecord{
		Timestamp: ts,
		Pair:      row[1],
		Side:      Side(row[2]),
		Qty:       qty,
		Price:     price,
		Notional:  notional,
		OrderID:   row[7],
	}
	if row[6] != "" {
		pnl, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return TradeRecord{}, err
		}
		record.PnL = &pnl
	}
	return record, nil
}
