// Package output flattens VCF records into delimited rows and writes them.
package output

import (
	"sort"

	"github.com/inodb/genotab/internal/vcf"
)

// Column names outside the INFO and FORMAT key space.
const (
	SampleColumn   = "VCF_SAMPLE_ID"
	GenotypeColumn = "GT"
)

// FixedColumns are always emitted first, in this order.
var FixedColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER"}

var fixedColumnTypes = []string{"String", "Integer", "String", "String", "String", "Float", "String"}

// Options controls which column groups are emitted and which records survive.
type Options struct {
	SkipInfoData        bool
	SkipGenotypeData    bool
	KeepRejectedCalls   bool
	PrintDataTypeHeader bool

	// TypePlaceholder fills the type row for columns that have no declared
	// type (the sample id, and GT when the header does not declare it).
	// An empty placeholder drops those columns from the type row.
	TypePlaceholder string
}

// DefaultOptions returns options with every column group enabled.
func DefaultOptions() Options {
	return Options{TypePlaceholder: "NA"}
}

// sampleRef ties a sample name to its column index in the VCF.
type sampleRef struct {
	name  string
	index int
}

// Layout is the ordered set of column groups derived once from the header.
type Layout struct {
	schema      *vcf.Schema
	info        []string
	format      []string
	samples     []sampleRef
	genotype    bool
	printTypes  bool
	placeholder string
}

// NewLayout derives the output columns from the header schema, the sample
// list and the options. Sample rows are emitted in sample name order.
func NewLayout(schema *vcf.Schema, samples []string, opts Options) *Layout {
	if schema == nil {
		schema = vcf.NewSchema()
	}

	l := &Layout{
		schema:      schema,
		genotype:    schema.HasGenotype(),
		printTypes:  opts.PrintDataTypeHeader,
		placeholder: opts.TypePlaceholder,
	}

	if !opts.SkipInfoData {
		l.info = schema.InfoIDs()
		sort.Strings(l.info)
	}

	if len(samples) > 0 && !opts.SkipGenotypeData {
		for _, id := range schema.FormatIDs() {
			if id != GenotypeColumn {
				l.format = append(l.format, id)
			}
		}
		sort.Strings(l.format)

		l.samples = make([]sampleRef, len(samples))
		for i, name := range samples {
			l.samples[i] = sampleRef{name: name, index: i}
		}
		sort.SliceStable(l.samples, func(i, j int) bool {
			return l.samples[i].name < l.samples[j].name
		})
	}

	return l
}

// HasSampleGroup reports whether rows are expanded per sample.
func (l *Layout) HasSampleGroup() bool {
	return len(l.samples) > 0
}

// PrintTypes reports whether a type row precedes the header.
func (l *Layout) PrintTypes() bool {
	return l.printTypes
}

// Width is the number of cells in every row.
func (l *Layout) Width() int {
	n := len(FixedColumns) + len(l.info)
	if l.HasSampleGroup() {
		n += 1 + len(l.format) + 1
	}
	return n
}

// Columns returns the header row.
func (l *Layout) Columns() []string {
	cols := make([]string, 0, l.Width())
	cols = append(cols, FixedColumns...)
	cols = append(cols, l.info...)
	if l.HasSampleGroup() {
		cols = append(cols, SampleColumn)
		cols = append(cols, l.format...)
		cols = append(cols, GenotypeColumn)
	}
	return cols
}

// Types returns the type row. Columns without a declared type get the
// placeholder, or are left out when the placeholder is empty.
func (l *Layout) Types() []string {
	types := make([]string, 0, l.Width())
	types = append(types, fixedColumnTypes...)

	add := func(def vcf.FieldDef, ok bool) {
		switch {
		case ok:
			types = append(types, def.Type.String())
		case l.placeholder != "":
			types = append(types, l.placeholder)
		}
	}

	for _, key := range l.info {
		add(l.schema.Info(key))
	}
	if l.HasSampleGroup() {
		add(vcf.FieldDef{}, false)
		for _, key := range l.format {
			add(l.schema.Format(key))
		}
		add(l.schema.Format(GenotypeColumn))
	}
	return types
}

// Row assembles one output row from the enabled column groups. The sample
// arguments are ignored when the layout has no sample group.
func (l *Layout) Row(fixed, info []string, sample string, format []string, gt string) []string {
	row := make([]string, 0, l.Width())
	row = append(row, fixed...)
	row = append(row, info...)
	if l.HasSampleGroup() {
		row = append(row, sample)
		row = append(row, format...)
		row = append(row, gt)
	}
	return row
}
