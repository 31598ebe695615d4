package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brentp/xopen"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genotab/internal/duckdb"
	"github.com/inodb/genotab/internal/merge"
)

// setup isolates the global config for one test.
func setup(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	fh, err := xopen.Ropen(path)
	require.NoError(t, err)
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func findTestFile(t *testing.T, name string) string {
	t.Helper()
	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Fatalf("test file not found: %s", name)
	return ""
}

const sampleHeader = "CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tAF\tDB\tDP\tGENE\tVCF_SAMPLE_ID\tAD\tDP\tGT"

func TestVCF2TSV(t *testing.T) {
	setup(t)
	out := filepath.Join(t.TempDir(), "out.tsv")

	_, err := execute(t, "vcf2tsv", "-o", out, findTestFile(t, "sample.vcf"))
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 4)
	assert.Equal(t, sampleHeader, lines[0])
}

func TestVCF2TSV_GzipInAndOut(t *testing.T) {
	setup(t)
	out := filepath.Join(t.TempDir(), "out.tsv.gz")

	_, err := execute(t, "vcf2tsv", "--print-data-type-header", "-o", out, findTestFile(t, "sample.vcf.gz"))
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, len(raw) > 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])

	lines := readLines(t, out)
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "#String\tInteger\t"))
	assert.Equal(t, sampleHeader, lines[1])
}

func TestVCF2TSV_FlagsAndEnv(t *testing.T) {
	setup(t)
	out := filepath.Join(t.TempDir(), "out.tsv")

	_, err := execute(t, "vcf2tsv", "--skip-genotype-data", "--keep-rejected-calls", "-o", out, findTestFile(t, "sample.vcf"))
	require.NoError(t, err)
	lines := readLines(t, out)
	require.Len(t, lines, 4)
	assert.Equal(t, "CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tAF\tDB\tDP\tGENE", lines[0])

	t.Setenv("GENOTAB_VCF2TSV_SKIP_INFO_DATA", "true")
	_, err = execute(t, "vcf2tsv", "--skip-genotype-data", "-o", out, findTestFile(t, "sample.vcf"))
	require.NoError(t, err)
	lines = readLines(t, out)
	assert.Equal(t, "CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER", lines[0])
}

func TestVCF2TSV_DuckDB(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.tsv")
	db := filepath.Join(dir, "calls.duckdb")
	input := findTestFile(t, "sample.vcf")

	_, err := execute(t, "vcf2tsv", "-o", out, "--duckdb", db, "--table", "calls", input)
	require.NoError(t, err)

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count("calls")
	require.NoError(t, err)
	assert.Equal(t, int64(len(readLines(t, out))-1), n)

	cols, err := store.Columns("calls")
	require.NoError(t, err)
	assert.Len(t, cols, len(strings.Split(sampleHeader, "\t")))

	imp, ok, err := store.LastImport("calls")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, input, imp.Source.Path)
	assert.Equal(t, n, imp.Rows)
}

func TestVCF2TSV_MissingInput(t *testing.T) {
	setup(t)
	_, err := execute(t, "vcf2tsv", "-o", filepath.Join(t.TempDir(), "out.tsv"), "/nonexistent/in.vcf")
	require.Error(t, err)
	assert.False(t, isUsageError(err))
}

func TestUsageErrors(t *testing.T) {
	setup(t)

	_, err := execute(t, "vcf2tsv")
	require.Error(t, err)
	assert.True(t, isUsageError(err))

	_, err = execute(t, "vcf2tsv", "--no-such-flag", "in.vcf")
	require.Error(t, err)
	assert.True(t, isUsageError(err))

	_, err = execute(t, "qc-summary")
	require.Error(t, err)
	assert.True(t, isUsageError(err))

	_, err = execute(t, "vcf2tsv", "--duckdb", "x.duckdb", "--table", "", "in.vcf")
	require.Error(t, err)
	assert.True(t, isUsageError(err))

	_, err = execute(t, "frobnicate")
	require.Error(t, err)
	assert.True(t, isUsageError(err))
}

func TestRunExitCodes(t *testing.T) {
	setup(t)
	viper.Reset()
	assert.Equal(t, ExitUsage, run([]string{"frobnicate"}))
	viper.Reset()
	assert.Equal(t, ExitError, run([]string{"vcf2tsv", "-o", filepath.Join(t.TempDir(), "o.tsv"), "/nonexistent/in.vcf"}))
	viper.Reset()
	assert.Equal(t, ExitSuccess, run([]string{"version"}))
}

func TestVersion(t *testing.T) {
	setup(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "genotab version dev (none) built unknown\n", out)
}

func TestConfigSetGet(t *testing.T) {
	setup(t)

	out, err := execute(t, "config", "set", "qc.oxog_threshold", "40")
	require.NoError(t, err)
	assert.Contains(t, out, "Set qc.oxog_threshold = 40")

	home, _ := os.UserHomeDir()
	_, err = os.Stat(filepath.Join(home, ".genotab.yaml"))
	require.NoError(t, err)

	out, err = execute(t, "config", "get", "qc.oxog_threshold")
	require.NoError(t, err)
	assert.Equal(t, "40\n", out)

	out, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "oxog_threshold")

	_, err = execute(t, "config", "get", "no.such.key")
	assert.Error(t, err)
}

func TestConfigFileFlag(t *testing.T) {
	setup(t)
	cfg := filepath.Join(t.TempDir(), "genotab.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("vcf2tsv:\n  skip_genotype_data: true\n"), 0644))
	out := filepath.Join(t.TempDir(), "out.tsv")

	_, err := execute(t, "--config", cfg, "vcf2tsv", "-o", out, findTestFile(t, "sample.vcf"))
	require.NoError(t, err)
	assert.Equal(t, "CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tAF\tDB\tDP\tGENE", readLines(t, out)[0])

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Error(t, err)
}

// writeQCSample creates <dir>/<name>.sorted.bam and its artifact metrics.
func writeQCSample(t *testing.T, dir, name, deamination, oxog string) string {
	t.Helper()
	sample := filepath.Join(dir, name+".sorted.bam")
	require.NoError(t, os.WriteFile(sample, nil, 0644))
	metrics := strings.Join([]string{name, "lib", "C", "T", deamination, "CAC", "56", "AAN", "100", "NAC", "62", "Deamination"}, "\t") + "\n" +
		strings.Join([]string{name, "lib", "G", "T", oxog, "CAC", "56", "AAN", "100", "NAC", "62", "OxoG"}, "\t") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".artifact_metrics.txt.pre_adapter_summary_metrics"), []byte(metrics), 0644))
	return sample
}

func TestQCSummary(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	sample := writeQCSample(t, dir, "S1", "25", "35")
	out := filepath.Join(dir, "qc.tsv")

	_, err := execute(t, "qc-summary", "--samples", sample, "--oxog-threshold", "40", "-o", out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Sample\tDeamination\tOxoG\tIssues",
		"S1\t25.0\t35.0\tdeamination,oxog",
	}, readLines(t, out))
}

func TestQCSummary_MultipleSamples(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	s2 := writeQCSample(t, dir, "S2", "45.5", "62")
	s1 := writeQCSample(t, dir, "S1", "25", "35")
	want := []string{
		"Sample\tDeamination\tOxoG\tIssues",
		"S1\t25.0\t35.0\tdeamination",
		"S2\t45.5\t62.0\t",
	}

	for name, args := range map[string][]string{
		"values after flag": {"--samples", s2, s1},
		"positional":        {s2, s1},
		"repeated flag":     {"--samples", s2, "--samples", s1},
		"flag and args":     {s2, "--samples", s1},
	} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "qc.tsv")
			_, err := execute(t, append([]string{"qc-summary", "-o", out}, args...)...)
			require.NoError(t, err)
			assert.Equal(t, want, readLines(t, out))
		})
	}
}

// writeBatch creates a batch directory holding one sample, T1.
func writeBatch(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	agg := filepath.Join(dir, merge.AggregateDir)
	require.NoError(t, os.MkdirAll(agg, 0755))

	files := map[string]string{
		"mutational_signatures_v2.filter.combined.tsv":            "Filename\tSignature.1\tMutations\tError\nT1\t1\t120\t0.01\n",
		"mutational_signatures_v3_sbs.filter.combined.tsv":        "Filename\tSBS1\tMutations\tError\nT1\t0.5\t120\t0.02\n",
		"mutational_signatures_v3_id_strelka.filter.combined.tsv": "Filename\tID1\tMutations\tError\nT1\t0.25\t10\t0.03\n",
		"mutation_rate.tsv":                 "Filename\tCount\tPerMB\nout/T1.strelka.somatic.snvs.vcf\t120\t4.2\n",
		"mutation_rate.artefact_filter.tsv": "Filename\tCount\tPerMB\nout/T1.filtered.vcf\t100\t3.5\n",
		"msisensor.tsv":                     "Sample\tTotal_Number_of_Sites\tNumber_of_Somatic_Sites\t%\nT1\t1000\t12\t1.2\n",
		"ontarget.tsv":                      "Filename\tMean\tMedian\nout/T1.bam\t101.5\t99\n",
	}
	for f, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(agg, f), []byte(content), 0644))
	}
	return dir
}

func TestMergeBatches(t *testing.T) {
	setup(t)
	root := t.TempDir()
	b1 := writeBatch(t, root, "b1")
	b2 := writeBatch(t, root, "b2")
	pheno := filepath.Join(root, "phenotype.tsv")
	require.NoError(t, os.WriteFile(pheno, []byte("Sample Name\tPhenotype\tCategory\nT1\tmelanoma\tcase\n"), 0644))
	out := filepath.Join(root, "merged.tsv")
	db := filepath.Join(root, "cohort.duckdb")

	_, err := execute(t, "merge-batches", "--directories", b2, b1, "--phenotype", pheno, "-o", out, "--duckdb", db)
	require.NoError(t, err)

	lines := readLines(t, out)
	require.Len(t, lines, 3)
	header := strings.Split(lines[0], "\t")
	assert.Equal(t, []string{"Sample", "Source"}, header[:2])
	col := func(line, name string) string {
		t.Helper()
		cells := strings.Split(line, "\t")
		require.Len(t, cells, len(header))
		for i, h := range header {
			if h == name {
				return cells[i]
			}
		}
		t.Fatalf("column %s not in header", name)
		return ""
	}
	assert.Equal(t, "b1", col(lines[1], "Source"))
	assert.Equal(t, "b2", col(lines[2], "Source"))
	for _, line := range lines[1:] {
		assert.Equal(t, "T1", col(line, "Sample"))
		assert.Equal(t, "1 (1.0)", col(line, "v2_sigs"))
		assert.Equal(t, "1 (0.5)", col(line, "v3_SBS_sigs"))
		assert.Equal(t, "1 (0.25)", col(line, "v3_ID_sigs"))
		assert.Equal(t, "4.2", col(line, "TMB"))
		assert.Equal(t, "3.5", col(line, "TMB.cleaned"))
		assert.Equal(t, "1.2", col(line, "MSISensor"))
		assert.Equal(t, "101.5", col(line, "MeanOnTargetCoverage"))
		assert.Equal(t, "melanoma", col(line, "Phenotype"))
		assert.Equal(t, "case", col(line, "Category"))
	}

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count("batches")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cols, err := store.Columns("batches")
	require.NoError(t, err)
	assert.Equal(t, header, cols)
}

func TestMergeBatches_UsageErrors(t *testing.T) {
	setup(t)
	pheno := filepath.Join(t.TempDir(), "phenotype.tsv")

	_, err := execute(t, "merge-batches", "--phenotype", pheno)
	require.Error(t, err)
	assert.True(t, isUsageError(err))

	_, err = execute(t, "merge-batches", t.TempDir())
	require.Error(t, err)
	assert.True(t, isUsageError(err))
}

func TestLoadTable(t *testing.T) {
	setup(t)
	db := filepath.Join(t.TempDir(), "cohort.duckdb")
	tbl := &merge.Table{
		Header: []string{"Sample", "Source", "TMB"},
		Rows:   [][]string{{"T1", "b1", "4.2"}, {"T2", "b1", "NA"}},
	}
	require.NoError(t, loadTable(db, "batches", tbl))

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count("batches")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cols, err := store.Columns("batches")
	require.NoError(t, err)
	assert.Equal(t, tbl.Header, cols)
}
