package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// uniqueColumns renames repeated column names, which DuckDB compares
// case-insensitively, by appending _2, _3 and so on.
func uniqueColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, c := range columns {
		name := c
		for {
			key := strings.ToLower(name)
			seen[key]++
			if seen[key] == 1 {
				break
			}
			name = c + "_" + strconv.Itoa(seen[key])
		}
		out[i] = name
	}
	return out
}

// CreateTable creates a table of VARCHAR columns, replacing any existing
// table of the same name. It returns the column names actually used.
func (s *Store) CreateTable(name string, columns []string) ([]string, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("create table %s: no columns", name)
	}

	cols := uniqueColumns(columns)
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c) + " VARCHAR"
	}

	if _, err := s.db.Exec("DROP TABLE IF EXISTS " + quoteIdent(name)); err != nil {
		return nil, fmt.Errorf("drop table %s: %w", name, err)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := s.db.Exec(stmt); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	return cols, nil
}

// AppendRows batch-inserts rows into a table using the Appender API.
// Every row must have one cell per table column.
func (s *Store) AppendRows(name string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", name)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	values := make([]driver.Value, 0, len(rows[0]))
	for i, row := range rows {
		values = values[:0]
		for _, cell := range row {
			values = append(values, cell)
		}
		if err := appender.AppendRow(values...); err != nil {
			return fmt.Errorf("append row %d to %s: %w", i+1, name, err)
		}
	}

	return appender.Flush()
}

// Count returns the number of rows in a table.
func (s *Store) Count(name string) (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT count(*) FROM " + quoteIdent(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// Columns returns the column names of a table in declaration order.
func (s *Store) Columns(name string) ([]string, error) {
	rows, err := s.db.Query("PRAGMA table_info(" + quoteString(name) + ")")
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid      int64
			col, typ string
			notNull  bool
			dflt     sql.NullString
			pk       bool
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
