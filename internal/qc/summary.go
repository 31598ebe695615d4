// Package qc summarizes sequencing artifact metrics per sample.
package qc

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/brentp/xopen"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/genotab/internal/output"
)

// MetricsSuffix is appended to the sample prefix to locate its metrics file.
const MetricsSuffix = ".artifact_metrics.txt.pre_adapter_summary_metrics"

// Metric names as they appear in the ARTIFACT_NAME column.
const (
	Deamination = "Deamination"
	OxoG        = "OxoG"
)

const (
	scoreField    = 4  // TOTAL_QSCORE
	artifactField = 11 // ARTIFACT_NAME
	minFields     = 12
)

// NotAvailable renders a metric that was not found.
const NotAvailable = "NA"

// Thresholds are the scores at or below which a metric is flagged.
type Thresholds struct {
	Deamination float64
	OxoG        float64
}

// DefaultThresholds returns the standard thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Deamination: 30, OxoG: 30}
}

// MissingMetricError reports metrics absent from a sample's metrics file.
type MissingMetricError struct {
	Sample  string
	Missing []string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("%d results not found for %s: %s", len(e.Missing), e.Sample, strings.Join(e.Missing, ","))
}

// SampleResult holds the scores and issues of one sample. A nil score
// means the metric was not found.
type SampleResult struct {
	Sample      string
	Deamination *float64
	OxoG        *float64
	Issues      []string
}

// Report is the summary of all samples, sorted by sample name.
type Report struct {
	Samples []SampleResult
	Issues  int
}

// SampleName returns the basename of path up to its first '.'.
func SampleName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// MetricsPath returns the metrics file that belongs to a sample file.
func MetricsPath(samplePath string) string {
	return filepath.Join(filepath.Dir(samplePath), SampleName(samplePath)+MetricsSuffix)
}

// Summarizer reads metrics files and flags low scores.
type Summarizer struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewSummarizer creates a summarizer with the given thresholds.
func NewSummarizer(t Thresholds) *Summarizer {
	return &Summarizer{thresholds: t, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress and missing metric warnings.
func (s *Summarizer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Summarize builds the report for the given sample files. A sample that
// appears twice keeps the later result.
func (s *Summarizer) Summarize(samples []string) (*Report, error) {
	bySample := make(map[string]SampleResult, len(samples))
	for _, path := range samples {
		name := SampleName(path)
		s.logger.Debug("reading metrics", zap.String("sample", name))

		res, err := s.readSample(name, MetricsPath(path))
		if err != nil {
			return nil, err
		}
		bySample[name] = res
	}

	r := &Report{Samples: make([]SampleResult, 0, len(bySample))}
	for _, res := range bySample {
		r.Samples = append(r.Samples, res)
		r.Issues += len(res.Issues)
	}
	sort.Slice(r.Samples, func(i, j int) bool {
		return r.Samples[i].Sample < r.Samples[j].Sample
	})

	s.logger.Info("done",
		zap.Int("issues", r.Issues),
		zap.Int("samples", len(r.Samples)))
	s.logCohort(r, Deamination)
	s.logCohort(r, OxoG)
	return r, nil
}

// ReadArtifactMetrics returns the TOTAL_QSCORE of every Deamination and
// OxoG row in a metrics file, keyed by artifact name.
func ReadArtifactMetrics(path string) (map[string]float64, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics: %w", err)
	}
	defer fh.Close()

	scores, err := parseMetrics(fh)
	if err != nil {
		return nil, fmt.Errorf("read metrics %s: %w", path, err)
	}
	return scores, nil
}

func parseMetrics(r io.Reader) (map[string]float64, error) {
	scores := make(map[string]float64, 2)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < minFields {
			continue
		}
		name := fields[artifactField]
		if name != Deamination && name != OxoG {
			continue
		}

		score, err := strconv.ParseFloat(fields[scoreField], 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s score %q: %w", name, fields[scoreField], err)
		}
		scores[name] = score
	}
	return scores, sc.Err()
}

func (s *Summarizer) readSample(sample, path string) (SampleResult, error) {
	scores, err := ReadArtifactMetrics(path)
	if err != nil {
		return SampleResult{}, fmt.Errorf("sample %s: %w", sample, err)
	}

	res := SampleResult{Sample: sample, Issues: []string{}}
	var missing []string
	check := func(metric string, threshold float64, issue string) *float64 {
		v, ok := scores[metric]
		if !ok {
			missing = append(missing, metric)
			return nil
		}
		if v <= threshold {
			res.Issues = append(res.Issues, issue)
		}
		return &v
	}
	res.Deamination = check(Deamination, s.thresholds.Deamination, "deamination")
	res.OxoG = check(OxoG, s.thresholds.OxoG, "oxog")

	if len(missing) > 0 {
		s.logger.Warn("metrics incomplete", zap.Error(&MissingMetricError{Sample: sample, Missing: missing}))
	}
	return res, nil
}

// Cohort returns the number of samples with a score for metric and the
// mean and sample standard deviation of those scores.
func (r *Report) Cohort(metric string) (n int, mean, sd float64) {
	var xs []float64
	for _, sr := range r.Samples {
		v := sr.Deamination
		if metric == OxoG {
			v = sr.OxoG
		}
		if v != nil {
			xs = append(xs, *v)
		}
	}
	if len(xs) == 0 {
		return 0, 0, 0
	}
	mean, sd = stat.MeanStdDev(xs, nil)
	return len(xs), mean, sd
}

func (s *Summarizer) logCohort(r *Report, metric string) {
	n, mean, sd := r.Cohort(metric)
	if n == 0 {
		return
	}
	s.logger.Info("cohort scores",
		zap.String("metric", metric),
		zap.Int("n", n),
		zap.Float64("mean", mean),
		zap.Float64("sd", sd))
}

// FormatScore renders a score as a decimal with at least one fractional
// digit, or NA when it is missing.
func FormatScore(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return output.FormatDecimal(*v)
}

// WriteTSV writes the report as Sample, Deamination, OxoG and Issues columns.
func (r *Report) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("Sample\tDeamination\tOxoG\tIssues\n"); err != nil {
		return err
	}
	for _, sr := range r.Samples {
		line := strings.Join([]string{
			sr.Sample,
			FormatScore(sr.Deamination),
			FormatScore(sr.OxoG),
			strings.Join(sr.Issues, ","),
		}, "\t")
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
