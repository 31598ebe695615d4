package output

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/genotab/internal/vcf"
)

// Missing is the placeholder for absent or unusable values.
const Missing = "."

// TypeMismatchError reports a value whose decoded type disagrees with
// the type declared in the header.
type TypeMismatchError struct {
	Section  vcf.Section
	Tag      string
	Declared vcf.FieldType
	Value    interface{}
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s tag %s is defined in the VCF header as type '%s', yet parsed as other type: %T",
		e.Section, e.Tag, e.Declared, e.Value)
}

// valueFormatter renders one decoded INFO value. ok is false when the
// value does not have the declared type.
type valueFormatter func(val interface{}) (cell string, ok bool)

var infoFormatters = [...]valueFormatter{
	vcf.Flag:      formatFlag,
	vcf.Integer:   formatInteger,
	vcf.Float:     formatFloat,
	vcf.String:    formatText,
	vcf.Character: formatText,
}

// FormatInfo renders an INFO value according to its declared type.
// present tells whether the key appeared on the record at all.
func FormatInfo(t vcf.FieldType, val interface{}, present bool) (string, bool) {
	if !present {
		if t == vcf.Flag {
			return "False", true
		}
		return Missing, true
	}
	if val == nil && t != vcf.Flag {
		return Missing, true
	}
	return infoFormatters[t](val)
}

func formatFlag(interface{}) (string, bool) {
	return "True", true
}

func formatInteger(val interface{}) (string, bool) {
	switch v := val.(type) {
	case int:
		return strconv.Itoa(v), true
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ","), true
	}
	return Missing, false
}

func formatFloat(val interface{}) (string, bool) {
	switch v := val.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 7, 64), true
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, ","), true
	}
	return Missing, false
}

// FormatDecimal renders v with the fewest digits that round-trip but
// always with a fractional part ("30.0", "12.25"). Magnitudes below 1e-4
// or from 1e16 up use exponent notation ("1e-05").
func FormatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatText(val interface{}) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case []string:
		return strings.Join(v, ","), true
	}
	return Missing, false
}

// FormatSampleValue renders the raw FORMAT value of one sample. Numeric
// types are checked element-wise and passed through as written.
func FormatSampleValue(t vcf.FieldType, raw string) (string, bool) {
	if raw == "" || raw == Missing {
		return Missing, true
	}

	var parse func(string) error
	switch t {
	case vcf.Integer:
		parse = func(s string) error { _, err := strconv.Atoi(s); return err }
	case vcf.Float:
		parse = func(s string) error { _, err := strconv.ParseFloat(s, 64); return err }
	default:
		return raw, true
	}

	for _, elem := range strings.Split(raw, ",") {
		if elem == Missing {
			continue
		}
		if parse(elem) != nil {
			return Missing, false
		}
	}
	return raw, true
}

// GenotypeString renders a genotype class as an unphased diploid call.
func GenotypeString(gtType int) string {
	switch gtType {
	case vcf.HomRef:
		return "0/0"
	case vcf.Het:
		return "0/1"
	case vcf.HomAlt:
		return "1/1"
	default:
		return "./."
	}
}

// StripNonASCII drops every byte outside the 7-bit ASCII range.
func StripNonASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return strings.Map(func(r rune) rune {
				if r >= 0x80 {
					return -1
				}
				return r
			}, s)
		}
	}
	return s
}
