package main

import (
	"fmt"

	"github.com/brentp/xopen"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/genotab/internal/duckdb"
	"github.com/inodb/genotab/internal/merge"
)

func newMergeBatchesCmd() *cobra.Command {
	var (
		directories []string
		phenotype   string
		outputPath  string
		dbPath      string
		table       string
	)

	cmd := &cobra.Command{
		Use:   "merge-batches [--directories] DIR... --phenotype FILE [flags]",
		Short: "Combine per-batch summaries into one table",
		Long: `Combine the mutational signature, mutation rate, MSI and coverage summaries
found under <dir>/out/aggregate of every batch into one row per sample and
batch, and attach phenotypes by sample name. Batches without all signature
files are skipped.

Batch directories are given as arguments, after --directories or both.`,
		Example: `  genotab merge-batches --directories runs/b1 runs/b2 --phenotype pheno.tsv -o merged.tsv
  genotab merge-batches --directories runs/* --phenotype pheno.tsv --duckdb cohort.duckdb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			directories = append(directories, args...)
			if len(directories) == 0 {
				return usageErrorf("at least one batch directory is required")
			}
			if dbPath != "" && table == "" {
				return usageErrorf("--table must not be empty when --duckdb is set")
			}
			opts := merge.Options{MissingValue: viper.GetString(keyMissingValue)}
			return runMergeBatches(directories, phenotype, outputPath, dbPath, table, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&directories, "directories", nil, "batch directories, repeatable or comma separated")
	flags.StringVar(&phenotype, "phenotype", "", "phenotype TSV with Sample Name, Phenotype and Category columns (required)")
	flags.StringVarP(&outputPath, "output", "o", "-", "output file")
	flags.StringVar(&dbPath, "duckdb", "", "also load the merged table into this DuckDB database")
	flags.StringVar(&table, "table", "batches", "DuckDB table name")
	flags.String("missing-value", "NA", "value for cells without data")
	cmd.MarkFlagRequired("phenotype") //nolint:errcheck

	viper.BindPFlag(keyMissingValue, flags.Lookup("missing-value")) //nolint:errcheck

	return cmd
}

func runMergeBatches(directories []string, phenotype, outputPath, dbPath, table string, opts merge.Options) error {
	m := merge.NewMerger(opts)
	m.SetLogger(logger)

	for _, dir := range directories {
		if err := m.AddBatch(dir); err != nil {
			return err
		}
	}
	if err := m.AddPhenotypes(phenotype); err != nil {
		return err
	}
	tbl := m.Table()

	out, err := xopen.Wopen(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := tbl.WriteTSV(out); err != nil {
		out.Close()
		return fmt.Errorf("write merged table: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if dbPath == "" {
		return nil
	}
	return loadTable(dbPath, table, tbl)
}

func loadTable(dbPath, table string, tbl *merge.Table) error {
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.CreateTable(table, tbl.Header); err != nil {
		return err
	}
	if err := store.AppendRows(table, tbl.Rows); err != nil {
		return err
	}

	logger.Info("loaded duckdb table",
		zap.String("database", dbPath),
		zap.String("table", table),
		zap.Int("rows", len(tbl.Rows)))
	return nil
}
