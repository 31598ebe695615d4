package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genotab/internal/vcf"
)

func testLayout(opts Options) *Layout {
	schema := vcf.NewSchema(
		vcf.FieldDef{ID: "AF", Type: vcf.Float, Section: vcf.SectionInfo},
		vcf.FieldDef{ID: "GT", Type: vcf.String, Section: vcf.SectionFormat},
		vcf.FieldDef{ID: "DP", Type: vcf.Integer, Section: vcf.SectionFormat},
	)
	return NewLayout(schema, []string{"S1"}, opts)
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader(testLayout(DefaultOptions())))
	require.NoError(t, w.Flush())

	assert.Equal(t, "CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tAF\tVCF_SAMPLE_ID\tDP\tGT\n", buf.String())
}

func TestTabWriter_WriteHeaderWithTypes(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	opts := DefaultOptions()
	opts.PrintDataTypeHeader = true
	require.NoError(t, w.WriteHeader(testLayout(opts)))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"#String\tInteger\tString\tString\tString\tFloat\tString\tFloat\tNA\tInteger\tString\n"+
			"CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tAF\tVCF_SAMPLE_ID\tDP\tGT\n",
		buf.String())
}

func TestTabWriter_WriteRow(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)
	l := testLayout(DefaultOptions())

	require.NoError(t, w.WriteHeader(l))
	row := l.Row(
		[]string{"1", "100", ".", "A", "G", ".", "PASS"},
		[]string{"0.5000000"},
		"S1", []string{"12"}, "0/1")
	require.NoError(t, w.WriteRow(row))
	require.NoError(t, w.Flush())

	assert.Contains(t, buf.String(), "1\t100\t.\tA\tG\t.\tPASS\t0.5000000\tS1\t12\t0/1\n")
}

func TestTabWriter_RejectsShortRow(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader(testLayout(DefaultOptions())))
	assert.Error(t, w.WriteRow([]string{"1", "100"}))
}
