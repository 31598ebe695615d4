package vcf

import (
	"fmt"
	"strings"
)

// FieldType is the declared value type of an INFO or FORMAT field.
type FieldType int

// Declared VCF value types.
const (
	Flag FieldType = iota
	Integer
	Float
	String
	Character
)

var fieldTypeNames = [...]string{
	Flag:      "Flag",
	Integer:   "Integer",
	Float:     "Float",
	String:    "String",
	Character: "Character",
}

// String returns the VCF header spelling of the type.
func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return fieldTypeNames[t]
}

// ParseFieldType parses a header Type= value.
func ParseFieldType(s string) (FieldType, error) {
	for i, name := range fieldTypeNames {
		if s == name {
			return FieldType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// Section tells whether a field is declared per variant or per sample.
type Section int

const (
	SectionInfo Section = iota
	SectionFormat
)

func (s Section) String() string {
	if s == SectionFormat {
		return "FORMAT"
	}
	return "INFO"
}

// FieldDef is a single ##INFO or ##FORMAT declaration.
type FieldDef struct {
	ID          string
	Number      string
	Type        FieldType
	Description string
	Section     Section
}

// Schema holds the declared INFO and FORMAT fields of a VCF header.
// The two sections are kept apart since the same ID (e.g. DP) is
// commonly declared in both.
type Schema struct {
	info      map[string]FieldDef
	format    map[string]FieldDef
	infoIDs   []string
	formatIDs []string
}

// NewSchema builds a schema from field declarations. Later declarations
// of the same ID in the same section replace earlier ones.
func NewSchema(defs ...FieldDef) *Schema {
	s := &Schema{
		info:   make(map[string]FieldDef),
		format: make(map[string]FieldDef),
	}
	for _, d := range defs {
		s.add(d)
	}
	return s
}

func (s *Schema) add(d FieldDef) {
	switch d.Section {
	case SectionFormat:
		if _, ok := s.format[d.ID]; !ok {
			s.formatIDs = append(s.formatIDs, d.ID)
		}
		s.format[d.ID] = d
	default:
		if _, ok := s.info[d.ID]; !ok {
			s.infoIDs = append(s.infoIDs, d.ID)
		}
		s.info[d.ID] = d
	}
}

// Info returns the INFO declaration for id.
func (s *Schema) Info(id string) (FieldDef, bool) {
	d, ok := s.info[id]
	return d, ok
}

// Format returns the FORMAT declaration for id.
func (s *Schema) Format(id string) (FieldDef, bool) {
	d, ok := s.format[id]
	return d, ok
}

// InfoIDs returns INFO IDs in header order.
func (s *Schema) InfoIDs() []string {
	return append([]string(nil), s.infoIDs...)
}

// FormatIDs returns FORMAT IDs in header order.
func (s *Schema) FormatIDs() []string {
	return append([]string(nil), s.formatIDs...)
}

// HasGenotype reports whether the header declares a GT FORMAT field.
func (s *Schema) HasGenotype() bool {
	_, ok := s.format["GT"]
	return ok
}

// parseFieldDef parses the body of a ##INFO=<...> or ##FORMAT=<...> line.
func parseFieldDef(section Section, body string) (FieldDef, error) {
	body = strings.TrimPrefix(body, "<")
	body = strings.TrimSuffix(body, ">")

	def := FieldDef{Section: section}
	var typ string
	for _, kv := range splitMeta(body) {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case "ID":
			def.ID = val
		case "Number":
			def.Number = val
		case "Type":
			typ = val
		case "Description":
			def.Description = strings.Trim(val, `"`)
		}
	}

	if def.ID == "" {
		return def, fmt.Errorf("%s declaration without ID", section)
	}
	t, err := ParseFieldType(typ)
	if err != nil {
		return def, fmt.Errorf("%s %s: %w", section, def.ID, err)
	}
	def.Type = t
	return def, nil
}

// splitMeta splits key=value pairs on commas outside double quotes.
func splitMeta(s string) []string {
	var (
		parts  []string
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
