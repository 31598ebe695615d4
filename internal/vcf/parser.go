// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/brentp/xopen"
)

// Parser reads variants from a VCF file.
type Parser struct {
	reader      *bufio.Reader
	closer      io.Closer
	lineNumber  int
	sampleNames []string // sample names from #CHROM header line
	schema      *Schema
}

// NewParser creates a new VCF parser for the given file.
// Plain, gzipped and bgzipped files are accepted; "-" reads stdin.
func NewParser(path string) (*Parser, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{reader: fh.Reader, closer: fh}
	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader reads the header lines and builds the schema
// from ##INFO and ##FORMAT declarations.
func (p *Parser) parseHeader() error {
	p.schema = NewSchema()

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			if err := p.parseMeta(line); err != nil {
				return &ParseError{Line: p.lineNumber, Message: err.Error()}
			}
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			// Extract sample names from columns after FORMAT (index 9+)
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				p.sampleNames = fields[9:]
			}
			return nil
		}

		// Non-header line encountered without #CHROM
		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

func (p *Parser) parseMeta(line string) error {
	switch {
	case strings.HasPrefix(line, "##INFO="):
		def, err := parseFieldDef(SectionInfo, line[len("##INFO="):])
		if err != nil {
			return err
		}
		p.schema.add(def)
	case strings.HasPrefix(line, "##FORMAT="):
		def, err := parseFieldDef(SectionFormat, line[len("##FORMAT="):])
		if err != nil {
			return err
		}
		p.schema.add(def)
	}
	return nil
}

// Next reads the next variant from the VCF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue // Skip empty lines
		}

		return p.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Variant.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := math.NaN()
	if fields[5] != "." {
		qual, err = strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("invalid quality: %s", fields[5]),
			}
		}
	}

	v := &Variant{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
		Info:   p.parseInfo(fields[7]),
	}

	if len(fields) > 8 && len(p.sampleNames) > 0 {
		v.Format = strings.Split(fields[8], ":")
		v.Samples = parseSamples(v.Format, fields[9:], len(p.sampleNames))
	}

	return v, nil
}

// parseInfo parses the INFO field into a map of typed values.
func (p *Parser) parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		key, val, hasValue := strings.Cut(kv, "=")
		def, declared := p.schema.Info(key)
		switch {
		case !hasValue:
			// Flag-type INFO field
			result[key] = true
		case !declared:
			result[key] = val
		default:
			result[key] = decodeValue(def.Type, val)
		}
	}

	return result
}

// decodeValue converts a raw INFO value to the Go type implied by its
// declared type. Values that do not parse are returned as the raw string.
func decodeValue(t FieldType, raw string) interface{} {
	if raw == "." {
		return nil
	}

	switch t {
	case Flag:
		return true
	case Integer:
		parts := strings.Split(raw, ",")
		ints := make([]int, len(parts))
		for i, s := range parts {
			n, err := strconv.Atoi(s)
			if err != nil {
				return raw
			}
			ints[i] = n
		}
		if len(ints) == 1 {
			return ints[0]
		}
		return ints
	case Float:
		parts := strings.Split(raw, ",")
		floats := make([]float64, len(parts))
		for i, s := range parts {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return raw
			}
			floats[i] = f
		}
		if len(floats) == 1 {
			return floats[0]
		}
		return floats
	default:
		return raw
	}
}

// parseSamples splits sample columns by FORMAT key. Trailing fields a
// sample omits are filled with ".".
func parseSamples(format, columns []string, n int) []Genotype {
	samples := make([]Genotype, n)
	for i := range samples {
		fields := make(map[string]string, len(format))
		var values []string
		if i < len(columns) {
			values = strings.Split(columns[i], ":")
		}
		for j, key := range format {
			if j < len(values) && values[j] != "" {
				fields[key] = values[j]
			} else {
				fields[key] = "."
			}
		}
		samples[i] = Genotype{Fields: fields}
	}
	return samples
}

// Schema returns the INFO and FORMAT declarations from the header.
func (p *Parser) Schema() *Schema {
	return p.schema
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
