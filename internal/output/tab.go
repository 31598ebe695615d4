package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TabWriter writes flattened rows in tab-delimited format.
type TabWriter struct {
	w     *bufio.Writer
	width int
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
	}
}

// WriteHeader writes the optional "#"-prefixed type line and the header line.
func (tw *TabWriter) WriteHeader(l *Layout) error {
	tw.width = l.Width()

	if l.PrintTypes() {
		if _, err := tw.w.WriteString("#" + strings.Join(l.Types(), "\t") + "\n"); err != nil {
			return err
		}
	}
	return tw.writeLine(l.Columns())
}

// WriteRow writes a single row. The row must match the header width.
func (tw *TabWriter) WriteRow(row []string) error {
	if tw.width > 0 && len(row) != tw.width {
		return fmt.Errorf("row has %d cells, header has %d", len(row), tw.width)
	}
	return tw.writeLine(row)
}

func (tw *TabWriter) writeLine(cells []string) error {
	_, err := tw.w.WriteString(strings.Join(cells, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
