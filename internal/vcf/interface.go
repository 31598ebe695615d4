// Package vcf provides VCF file parsing functionality.
package vcf

// VariantParser is the interface for parsers that read variants.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// Source is a VariantParser that also exposes the header metadata
// needed to lay out typed columns.
type Source interface {
	VariantParser

	// Schema returns the declared INFO and FORMAT fields.
	Schema() *Schema

	// SampleNames returns the sample columns in header order.
	SampleNames() []string
}
