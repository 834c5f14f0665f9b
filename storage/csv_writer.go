package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"leadmarket/models"
)

// CSVWriter exports match sync records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"property_id", "address", "city", "state", "buyer_id", "buyer_name",
		"monthly_payment", "down_payment", "budget_match", "location_strategy", "outcome", "at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteMatches appends records to the file.
func (c *CSVWriter) WriteMatches(records []models.MatchRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		row := []string{
			r.PropertyID,
			r.Address,
			r.City,
			r.State,
			r.BuyerID,
			r.BuyerName,
			strconv.FormatFloat(r.MonthlyPayment, 'f', 2, 64),
			strconv.FormatFloat(r.DownPayment, 'f', 2, 64),
			string(r.BudgetMatchType),
			string(r.LocationStrategy),
			string(r.Outcome),
			r.At.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
