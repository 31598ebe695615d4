package duckdb

import (
	"fmt"

	"github.com/inodb/genotab/internal/output"
)

// DefaultBatchSize is the number of rows buffered before an append.
const DefaultBatchSize = 1000

// TableSink loads flattened rows into a table. It implements output.RowSink.
type TableSink struct {
	store     *Store
	table     string
	batchSize int
	width     int
	pending   [][]string
	rows      int64
}

// NewTableSink creates a sink writing to the named table of s.
func NewTableSink(s *Store, table string) *TableSink {
	return &TableSink{
		store:     s,
		table:     table,
		batchSize: DefaultBatchSize,
	}
}

// WriteHeader (re)creates the table with the layout's columns.
func (ts *TableSink) WriteHeader(l *output.Layout) error {
	cols, err := ts.store.CreateTable(ts.table, l.Columns())
	if err != nil {
		return err
	}
	ts.width = len(cols)
	return nil
}

// WriteRow buffers a row and appends a batch once it is full.
func (ts *TableSink) WriteRow(row []string) error {
	if len(row) != ts.width {
		return fmt.Errorf("row has %d cells, table %s has %d columns", len(row), ts.table, ts.width)
	}
	ts.pending = append(ts.pending, append([]string(nil), row...))
	if len(ts.pending) >= ts.batchSize {
		return ts.Flush()
	}
	return nil
}

// Flush appends any buffered rows.
func (ts *TableSink) Flush() error {
	if len(ts.pending) == 0 {
		return nil
	}
	if err := ts.store.AppendRows(ts.table, ts.pending); err != nil {
		return err
	}
	ts.rows += int64(len(ts.pending))
	ts.pending = ts.pending[:0]
	return nil
}

// Rows returns the number of rows appended so far.
func (ts *TableSink) Rows() int64 {
	return ts.rows
}
