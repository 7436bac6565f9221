// Package tabular holds the in-memory table a downloaded report is loaded
// into, plus the grouping used to compare pipeline output.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingColumn is returned when a referenced column is not in the table
var ErrMissingColumn = errors.New("column not found")

// Table is a header plus string records. Rows are always as wide as Columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty returns a table with no columns and no rows
func Empty() *Table {
	return &Table{Columns: []string{}, Rows: [][]string{}}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Index returns the position of a column, or -1
func (t *Table) Index(column string) int {
	return lo.IndexOf(t.Columns, column)
}

// Column returns all values of a column
func (t *Table) Column(column string) ([]string, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	return lo.Map(t.Rows, func(row []string, _ int) string { return row[idx] }), nil
}

// Record returns row i as a column->value map
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for j, col := range t.Columns {
		rec[col] = t.Rows[i][j]
	}
	return rec
}

// Read parses CSV with a header row. A UTF-8 BOM is stripped and ragged
// rows are padded or truncated to the header width.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	t := &Table{Columns: lo.Map(header, func(h string, _ int) string { return strings.TrimSpace(h) })}
	t.Rows = [][]string{}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV record %d: %w", len(t.Rows)+1, err)
		}
		row := make([]string, len(t.Columns))
		copy(row, record)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// ReadFile opens and parses a CSV file
func ReadFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer file.Close()

	return Read(file)
}

// WriteFile writes the table as CSV, creating or truncating path
func (t *Table) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("error writing headers to CSV: %w", err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("error writing data to CSV: %w", err)
	}
	return nil
}

// Group is one aggregated row of GroupSum
type Group struct {
	Key     []string
	Metrics []decimal.Decimal
}

// GroupSum groups rows by groupCols and sums metricCols. Blank metric cells
// count as zero. Groups are sorted by key, column by column.
func (t *Table) GroupSum(groupCols, metricCols []string) ([]Group, error) {
	groupIdx, err := t.indexes(groupCols)
	if err != nil {
		return nil, err
	}
	metricIdx, err := t.indexes(metricCols)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*Group)
	for rowNum, row := range t.Rows {
		key := make([]string, len(groupIdx))
		for i, idx := range groupIdx {
			key[i] = row[idx]
		}
		id := strings.Join(key, "\x1f")

		g, ok := byKey[id]
		if !ok {
			g = &Group{Key: key, Metrics: make([]decimal.Decimal, len(metricIdx))}
			byKey[id] = g
		}

		for i, idx := range metricIdx {
			cell := strings.ReplaceAll(strings.TrimSpace(row[idx]), ",", "")
			if cell == "" {
				continue
			}
			v, err := decimal.NewFromString(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: invalid number %q: %w", rowNum+1, metricCols[i], row[idx], err)
			}
			g.Metrics[i] = g.Metrics[i].Add(v)
		}
	}

	groups := make([]Group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	return groups, nil
}

func (t *Table) indexes(columns []string) ([]int, error) {
	out := make([]int, len(columns))
	for i, col := range columns {
		idx := t.Index(col)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
		out[i] = idx
	}
	return out, nil
}
