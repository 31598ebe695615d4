// Package merge combines per-batch pipeline summaries into one table with
// a row per sample and batch.
package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/genotab/internal/output"
)

// AggregateDir is the location of the summary files inside a batch.
var AggregateDir = filepath.Join("out", "aggregate")

// Signature files in the order they are read, with their column prefix.
var signatureFiles = []struct {
	file   string
	prefix string
}{
	{"mutational_signatures_v2.filter.combined.tsv", "v2"},
	{"mutational_signatures_v3_sbs.filter.combined.tsv", "v3_SBS"},
	{"mutational_signatures_v3_id_strelka.filter.combined.tsv", "v3_ID"},
}

// metricFile is a per-sample summary copied into a single output column.
type metricFile struct {
	file      string
	sampleCol string
	valueCol  string
	column    string
}

var metricFiles = []metricFile{
	{"mutation_rate.tsv", "Filename", "PerMB", "TMB"},
	{"mutation_rate.artefact_filter.tsv", "Filename", "PerMB", "TMB.cleaned"},
	{"msisensor.tsv", "Sample", "%", "MSISensor"},
	{"ontarget.tsv", "Filename", "Mean", "MeanOnTargetCoverage"},
}

// TopSignatures is the number of signatures listed in a <prefix>_sigs column.
const TopSignatures = 5

// Options controls the merged output.
type Options struct {
	MissingValue string
}

// DefaultOptions returns options that fill missing cells with NA.
func DefaultOptions() Options {
	return Options{MissingValue: "NA"}
}

type record struct {
	sample string
	source string
	values map[string]string
}

func (r *record) key() string {
	return r.sample + "/" + r.source
}

// Merger accumulates batches and phenotypes.
type Merger struct {
	opts    Options
	logger  *zap.Logger
	records map[string]*record
	columns map[string]struct{}
}

// NewMerger creates an empty merger.
func NewMerger(opts Options) *Merger {
	return &Merger{
		opts:    opts,
		logger:  zap.NewNop(),
		records: make(map[string]*record),
		columns: make(map[string]struct{}),
	}
}

// SetLogger sets the logger for progress messages.
func (m *Merger) SetLogger(l *zap.Logger) {
	m.logger = l
}

func (m *Merger) record(sample, source string) *record {
	k := sample + "/" + source
	r, ok := m.records[k]
	if !ok {
		r = &record{sample: sample, source: source, values: make(map[string]string)}
		m.records[k] = r
	}
	return r
}

func (m *Merger) set(r *record, column, value string) {
	r.values[column] = value
	m.columns[column] = struct{}{}
}

// AddBatch reads the summaries of one batch directory. A batch without
// all signature files is skipped from the first missing one on. The
// remaining summaries are required.
func (m *Merger) AddBatch(dir string) error {
	m.logger.Info("parsing batch", zap.String("dir", dir))
	source := filepath.Base(dir)
	agg := filepath.Join(dir, AggregateDir)

	for _, sf := range signatureFiles {
		path := filepath.Join(agg, sf.file)
		if _, err := os.Stat(path); err != nil {
			m.logger.Info("skipping batch", zap.String("dir", dir), zap.String("missing", sf.file))
			return nil
		}
		if err := m.addSignatures(path, source, sf.prefix); err != nil {
			return err
		}
	}

	for _, mf := range metricFiles {
		if err := m.addMetric(filepath.Join(agg, mf.file), source, mf); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merger) addSignatures(path, source, prefix string) error {
	rows, err := readTable(path)
	if err != nil {
		return err
	}

	for _, row := range rows {
		sample, err := column(row, "Filename", path)
		if err != nil {
			return err
		}
		delete(row, "Filename")
		if v, ok := row["Error"]; ok {
			row["SignatureError"] = v
			delete(row, "Error")
		}

		sigs, err := topSignatures(row, TopSignatures)
		if err != nil {
			return fmt.Errorf("%s: sample %s: %w", path, sample, err)
		}

		r := m.record(sample, source)
		for k, v := range row {
			m.set(r, k, v)
		}
		m.set(r, prefix+"_sigs", sigs)
	}
	return nil
}

type signature struct {
	name  string
	value float64
}

var signatureNameReplacer = strings.NewReplacer("Signature.", "", "SBS", "", "ID", "")

// topSignatures lists the n highest signatures of a row as "NAME (value)".
func topSignatures(row map[string]string, n int) (string, error) {
	sigs := make([]signature, 0, len(row))
	for name, raw := range row {
		if name == "Mutations" || name == "SignatureError" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", fmt.Errorf("parse signature %s: %w", name, err)
		}
		sigs = append(sigs, signature{name: name, value: v})
	}

	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].value != sigs[j].value {
			return sigs[i].value > sigs[j].value
		}
		return sigs[i].name > sigs[j].name
	})
	if len(sigs) > n {
		sigs = sigs[:n]
	}

	parts := make([]string, len(sigs))
	for i, s := range sigs {
		parts[i] = fmt.Sprintf("%s (%s)", signatureNameReplacer.Replace(s.name), output.FormatDecimal(s.value))
	}
	return strings.Join(parts, " "), nil
}

func (m *Merger) addMetric(path, source string, mf metricFile) error {
	rows, err := readTable(path)
	if err != nil {
		return err
	}

	for _, row := range rows {
		sample, err := column(row, mf.sampleCol, path)
		if err != nil {
			return err
		}
		if mf.sampleCol == "Filename" {
			sample = sampleFromFilename(sample)
		}
		value, err := column(row, mf.valueCol, path)
		if err != nil {
			return err
		}
		m.set(m.record(sample, source), mf.column, value)
	}
	return nil
}

// sampleFromFilename returns the last path element up to its first '.'.
func sampleFromFilename(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// AddPhenotypes attaches Phenotype and Category to every record whose key
// starts with "<Sample Name>/". The columns are always part of the output.
func (m *Merger) AddPhenotypes(path string) error {
	m.columns["Phenotype"] = struct{}{}
	m.columns["Category"] = struct{}{}

	rows, err := readTable(path)
	if err != nil {
		return err
	}

	for _, row := range rows {
		name, err := column(row, "Sample Name", path)
		if err != nil {
			return err
		}
		phenotype, err := column(row, "Phenotype", path)
		if err != nil {
			return err
		}
		category, err := column(row, "Category", path)
		if err != nil {
			return err
		}

		for k, r := range m.records {
			if strings.HasPrefix(k, name+"/") {
				r.values["Phenotype"] = phenotype
				r.values["Category"] = category
				m.logger.Debug("adding phenotype", zap.String("key", k))
			}
		}
	}
	return nil
}

// Table is the merged output.
type Table struct {
	Header []string
	Rows   [][]string
}

// Table builds the merged table with rows sorted by sample/source key.
func (m *Merger) Table() *Table {
	cols := make([]string, 0, len(m.columns))
	for c := range m.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	recs := make([]*record, 0, len(m.records))
	for _, r := range m.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].key() < recs[j].key()
	})

	t := &Table{
		Header: append([]string{"Sample", "Source"}, cols...),
		Rows:   make([][]string, 0, len(recs)),
	}
	for _, r := range recs {
		row := make([]string, 0, len(t.Header))
		row = append(row, r.sample, r.source)
		for _, c := range cols {
			v, ok := r.values[c]
			if !ok {
				v = m.opts.MissingValue
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}

	m.logger.Info("done", zap.Int("rows", len(t.Rows)), zap.Int("columns", len(t.Header)))
	return t
}

// WriteTSV writes the header and rows tab-delimited.
func (t *Table) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(t.Header, "\t") + "\n"); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
