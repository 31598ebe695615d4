// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"math"
	"strings"
)

// Genotype call classes.
const (
	HomRef  = 0
	Het     = 1
	HomAlt  = 2
	Unknown = 3
)

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom   string                 // Chromosome name (e.g., "12", "chr12")
	Pos     int64                  // 1-based genomic position
	ID      string                 // Variant identifier (e.g., rs ID)
	Ref     string                 // Reference allele
	Alt     string                 // Alternate alleles, comma-joined
	Qual    float64                // Quality score, NaN when missing
	Filter  string                 // Filter status (PASS or filter name)
	Info    map[string]interface{} // INFO values decoded per the header schema
	Format  []string               // FORMAT keys present on this record
	Samples []Genotype             // Per-sample values in header sample order
}

// Genotype holds the raw FORMAT values of one sample.
type Genotype struct {
	Fields map[string]string
}

// Get returns the raw value of a FORMAT key for this sample.
func (g Genotype) Get(key string) (string, bool) {
	v, ok := g.Fields[key]
	return v, ok
}

// GenotypeType classifies the GT call as HomRef, Het, HomAlt or Unknown.
func (g Genotype) GenotypeType() int {
	gt, ok := g.Fields["GT"]
	if !ok || gt == "" || gt == "." {
		return Unknown
	}

	alleles := strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' })
	if len(alleles) == 0 {
		return Unknown
	}

	first := alleles[0]
	same := true
	for _, a := range alleles {
		if a == "." {
			return Unknown
		}
		if a != first {
			same = false
		}
	}

	switch {
	case !same:
		return Het
	case first == "0":
		return HomRef
	default:
		return HomAlt
	}
}

// HasQual reports whether the record carries a quality score.
func (v *Variant) HasQual() bool {
	return !math.IsNaN(v.Qual)
}

// IsPass reports whether the record passed all filters. A missing filter
// ("." or empty) counts as passing.
func (v *Variant) IsPass() bool {
	return v.Filter == "PASS" || v.Filter == "." || v.Filter == ""
}

// Alts returns the alternate alleles.
func (v *Variant) Alts() []string {
	if v.Alt == "" || v.Alt == "." {
		return nil
	}
	return strings.Split(v.Alt, ",")
}
