package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/fleet-map/internal/domain"
)

// ErrEmptyFeed is returned when the CSV has no header row.
var ErrEmptyFeed = errors.New("feed has no header row")

// loadedAtColumn is stamped on every row by the upstream exporter.
const loadedAtColumn = "_loaded_at_utc"

const utf8BOM = "\ufeff"

// ParseCSV reads a CSV document whose first record names the columns. Short
// rows leave their trailing columns absent; extra cells are dropped.
func ParseCSV(r io.Reader) ([]domain.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFeed
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []domain.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(rows)+1, err)
		}
		if isBlank(rec) {
			continue
		}
		row := make(domain.Row, len(header))
		for i, col := range header {
			if col == "" || i >= len(rec) {
				continue
			}
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// dataAsOf returns the first export timestamp found in rows.
func dataAsOf(rows []domain.Row) string {
	for _, row := range rows {
		if v, ok := domain.Pick(row, loadedAtColumn); ok {
			return v
		}
	}
	return ""
}
