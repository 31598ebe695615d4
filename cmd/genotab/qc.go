package main

import (
	"fmt"

	"github.com/brentp/xopen"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/genotab/internal/qc"
)

func newQCSummaryCmd() *cobra.Command {
	var (
		samples    []string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "qc-summary [--samples] FILE... [flags]",
		Short: "Summarize deamination and OxoG artifact scores per sample",
		Long: `Summarize artifact metrics per sample. For every sample file the metrics are
read from <dir>/<sample>.artifact_metrics.txt.pre_adapter_summary_metrics,
where <sample> is the file name up to its first '.'. Scores at or below a
threshold are reported as issues.

Sample files are given as arguments, after --samples or both.`,
		Example: `  genotab qc-summary --samples out/S1.sorted.bam out/S2.sorted.bam
  genotab qc-summary --samples out/*.bam --oxog-threshold 35 -o qc.tsv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			samples = append(samples, args...)
			if len(samples) == 0 {
				return usageErrorf("at least one sample file is required")
			}
			t := qc.Thresholds{
				Deamination: viper.GetFloat64(keyDeaminationThresh),
				OxoG:        viper.GetFloat64(keyOxoGThresh),
			}
			return runQCSummary(samples, outputPath, t)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&samples, "samples", nil, "sample files, repeatable or comma separated")
	flags.StringVarP(&outputPath, "output", "o", "-", "output file")
	flags.Float64("deamination-threshold", 30, "flag deamination scores at or below this value")
	flags.Float64("oxog-threshold", 30, "flag OxoG scores at or below this value")

	viper.BindPFlag(keyDeaminationThresh, flags.Lookup("deamination-threshold")) //nolint:errcheck
	viper.BindPFlag(keyOxoGThresh, flags.Lookup("oxog-threshold"))               //nolint:errcheck

	return cmd
}

func runQCSummary(samples []string, outputPath string, t qc.Thresholds) error {
	s := qc.NewSummarizer(t)
	s.SetLogger(logger)

	report, err := s.Summarize(samples)
	if err != nil {
		return err
	}

	out, err := xopen.Wopen(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := report.WriteTSV(out); err != nil {
		out.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	return out.Close()
}
