package output

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/genotab/internal/vcf"
)

// RowSink receives the header once and then every flattened row.
type RowSink interface {
	WriteHeader(l *Layout) error
	WriteRow(row []string) error
	Flush() error
}

// Stats counts what a conversion did.
type Stats struct {
	Records    int // records read
	Rejected   int // records dropped for a non-PASS filter
	Rows       int // rows written
	Suppressed int // sample rows dropped for a missing genotype
	Mismatches int // values replaced after a schema type mismatch
}

// Flattener turns VCF records into one or more TSV rows each.
type Flattener struct {
	opts   Options
	logger *zap.Logger
	stats  Stats
}

// NewFlattener creates a flattener with the given options.
func NewFlattener(opts Options) *Flattener {
	return &Flattener{
		opts:   opts,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for type mismatch warnings.
func (f *Flattener) SetLogger(l *zap.Logger) {
	f.logger = l
}

// Stats returns the counters of the current or most recent Convert.
func (f *Flattener) Stats() Stats {
	return f.stats
}

// Convert reads every record from src and writes the header and rows to
// each sink. Read and write errors abort the run. Counters start from
// zero on every call.
func (f *Flattener) Convert(src vcf.Source, sinks ...RowSink) (Stats, error) {
	f.stats = Stats{}
	layout := NewLayout(src.Schema(), src.SampleNames(), f.opts)

	for _, s := range sinks {
		if err := s.WriteHeader(layout); err != nil {
			return f.stats, fmt.Errorf("write header: %w", err)
		}
	}

	for {
		v, err := src.Next()
		if err != nil {
			return f.stats, fmt.Errorf("read variant: %w", err)
		}
		if v == nil {
			break
		}

		for _, row := range f.Flatten(layout, v) {
			for _, s := range sinks {
				if err := s.WriteRow(row); err != nil {
					return f.stats, fmt.Errorf("write row: %w", err)
				}
			}
			f.stats.Rows++
		}
	}

	if f.stats.Records == 0 {
		f.logger.Info("0 variants processed")
	}

	for _, s := range sinks {
		if err := s.Flush(); err != nil {
			return f.stats, fmt.Errorf("flush output: %w", err)
		}
	}
	return f.stats, nil
}

// Flatten returns the rows for a single record. Rejected records and
// sample rows without a called genotype yield nothing unless rejected
// calls are kept.
func (f *Flattener) Flatten(l *Layout, v *vcf.Variant) [][]string {
	f.stats.Records++

	if !v.IsPass() && !f.opts.KeepRejectedCalls {
		f.stats.Rejected++
		return nil
	}

	fixed := fixedFields(v)
	info := f.infoValues(l, v)

	if !l.HasSampleGroup() {
		return [][]string{sanitize(l.Row(fixed, info, "", nil, ""))}
	}

	rows := make([][]string, 0, len(l.samples))
	for _, s := range l.samples {
		var g vcf.Genotype
		if s.index < len(v.Samples) {
			g = v.Samples[s.index]
		}

		gt := "./."
		if l.genotype {
			gt = GenotypeString(g.GenotypeType())
		}
		if (gt == "./." || gt == Missing) && !f.opts.KeepRejectedCalls {
			f.stats.Suppressed++
			continue
		}

		format := f.sampleValues(l, v, g)
		rows = append(rows, sanitize(l.Row(fixed, info, s.name, format, gt)))
	}
	return rows
}

func fixedFields(v *vcf.Variant) []string {
	id := v.ID
	if id == "" {
		id = Missing
	}
	alt := v.Alt
	if alt == "" {
		alt = Missing
	}
	qual := Missing
	if v.HasQual() {
		qual = strconv.FormatFloat(v.Qual, 'f', 2, 64)
	}
	filter := v.Filter
	if v.IsPass() {
		filter = "PASS"
	}

	return []string{
		v.Chrom,
		strconv.FormatInt(v.Pos, 10),
		id,
		v.Ref,
		alt,
		qual,
		filter,
	}
}

func (f *Flattener) infoValues(l *Layout, v *vcf.Variant) []string {
	if len(l.info) == 0 {
		return nil
	}

	values := make([]string, len(l.info))
	for i, key := range l.info {
		def, _ := l.schema.Info(key)
		val, present := v.Info[key]

		cell, ok := FormatInfo(def.Type, val, present)
		if !ok {
			f.mismatch(v, &TypeMismatchError{
				Section:  vcf.SectionInfo,
				Tag:      key,
				Declared: def.Type,
				Value:    val,
			})
			if raw, isText := val.(string); def.Type == vcf.Float && isText &&
				strings.Contains(raw, ",") && len(v.Alts()) == 1 {
				f.logger.Warn("multiple values in INFO tag for single ALT allele, multiallelic sites not decomposed?",
					zap.String("chrom", v.Chrom),
					zap.Int64("pos", v.Pos),
					zap.String("tag", key),
					zap.String("value", raw))
			}
		}
		values[i] = cell
	}
	return values
}

func (f *Flattener) sampleValues(l *Layout, v *vcf.Variant, g vcf.Genotype) []string {
	values := make([]string, len(l.format))
	for i, key := range l.format {
		if !slices.Contains(v.Format, key) {
			values[i] = Missing
			continue
		}

		def, _ := l.schema.Format(key)
		raw, _ := g.Get(key)
		cell, ok := FormatSampleValue(def.Type, raw)
		if !ok {
			f.mismatch(v, &TypeMismatchError{
				Section:  vcf.SectionFormat,
				Tag:      key,
				Declared: def.Type,
				Value:    raw,
			})
		}
		values[i] = cell
	}
	return values
}

func (f *Flattener) mismatch(v *vcf.Variant, err *TypeMismatchError) {
	f.stats.Mismatches++
	f.logger.Warn("schema type mismatch",
		zap.String("chrom", v.Chrom),
		zap.Int64("pos", v.Pos),
		zap.Error(err))
}

func sanitize(row []string) []string {
	for i, cell := range row {
		row[i] = StripNonASCII(cell)
	}
	return row
}
