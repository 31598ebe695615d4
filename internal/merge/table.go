package merge

import (
	"fmt"

	"github.com/brentp/xopen"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// readTable loads a tab-delimited file with a header row. Every cell is
// kept as the literal text, including values such as NA or NaN.
func readTable(path string) ([]map[string]string, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	df := dataframe.ReadCSV(fh,
		dataframe.WithDelimiter('\t'),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}))
	if df.Err != nil {
		return nil, fmt.Errorf("read %s: %w", path, df.Err)
	}

	records := df.Records()
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// column returns a required cell of a row.
func column(row map[string]string, name, path string) (string, error) {
	v, ok := row[name]
	if !ok {
		return "", fmt.Errorf("%s: missing column %q", path, name)
	}
	return v, nil
}
