package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Matches reports whether two fingerprints describe the same file state.
func (f FileFingerprint) Matches(other FileFingerprint) bool {
	return f.Path == other.Path && f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}

// Import describes the source of a loaded table.
type Import struct {
	Source FileFingerprint
	Rows   int64
}

// RecordImport stores where a table was loaded from, replacing any
// earlier record for the same table.
func (s *Store) RecordImport(table string, fp FileFingerprint, rows int64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO imports (tbl, path, size, mod_time, row_count)
		VALUES (?, ?, ?, ?, ?)`,
		table, fp.Path, fp.Size, fp.ModTime.UnixNano(), rows)
	if err != nil {
		return fmt.Errorf("record import of %s: %w", table, err)
	}
	return nil
}

// LastImport returns the recorded source of a table. ok is false when the
// table was never imported.
func (s *Store) LastImport(table string) (imp Import, ok bool, err error) {
	var modTime int64
	err = s.db.QueryRow(`SELECT path, size, mod_time, row_count FROM imports WHERE tbl = ?`, table).
		Scan(&imp.Source.Path, &imp.Source.Size, &modTime, &imp.Rows)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, false, nil
	}
	if err != nil {
		return Import{}, false, fmt.Errorf("query import of %s: %w", table, err)
	}
	imp.Source.ModTime = time.Unix(0, modTime)
	return imp, true, nil
}
