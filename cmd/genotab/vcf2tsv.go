package main

import (
	"fmt"

	"github.com/brentp/xopen"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/genotab/internal/duckdb"
	"github.com/inodb/genotab/internal/output"
	"github.com/inodb/genotab/internal/vcf"
)

func newVCF2TSVCmd() *cobra.Command {
	var (
		outputPath string
		dbPath     string
		table      string
	)

	cmd := &cobra.Command{
		Use:   "vcf2tsv [flags] <input>",
		Short: "Flatten a VCF file into tab-separated rows",
		Long: `Flatten a VCF file into one tab-separated row per record, or one row per
record and sample when the file carries genotypes.

INFO and FORMAT columns follow the types declared in the header. Records
whose FILTER is not PASS and samples without a called genotype are dropped
unless --keep-rejected-calls is set. Use '-' to read from stdin.`,
		Example: `  genotab vcf2tsv input.vcf
  genotab vcf2tsv --print-data-type-header -o out.tsv.gz input.vcf.gz
  genotab vcf2tsv --skip-genotype-data --duckdb calls.duckdb --table somatic input.vcf
  zcat input.vcf.gz | genotab vcf2tsv -`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath != "" && table == "" {
				return usageErrorf("--table must not be empty when --duckdb is set")
			}
			opts := output.Options{
				SkipInfoData:        viper.GetBool(keySkipInfoData),
				SkipGenotypeData:    viper.GetBool(keySkipGenotypeData),
				KeepRejectedCalls:   viper.GetBool(keyKeepRejectedCalls),
				PrintDataTypeHeader: viper.GetBool(keyPrintDataTypeHeader),
				TypePlaceholder:     viper.GetString(keyTypePlaceholder),
			}
			return runVCF2TSV(args[0], outputPath, dbPath, table, opts)
		},
	}

	flags := cmd.Flags()
	flags.Bool("skip-info-data", false, "leave out INFO columns")
	flags.Bool("skip-genotype-data", false, "leave out sample and FORMAT columns")
	flags.Bool("keep-rejected-calls", false, "keep non-PASS records and uncalled genotypes")
	flags.Bool("print-data-type-header", false, "print a '#'-prefixed row of column types before the header")
	flags.String("type-placeholder", "NA", "type row entry for columns without a declared type (empty to omit them)")
	flags.StringVarP(&outputPath, "output", "o", "-", "output file, gzipped if it ends in .gz")
	flags.StringVar(&dbPath, "duckdb", "", "also load the rows into this DuckDB database")
	flags.StringVar(&table, "table", "variants", "DuckDB table name")

	viper.BindPFlag(keySkipInfoData, flags.Lookup("skip-info-data"))                //nolint:errcheck
	viper.BindPFlag(keySkipGenotypeData, flags.Lookup("skip-genotype-data"))        //nolint:errcheck
	viper.BindPFlag(keyKeepRejectedCalls, flags.Lookup("keep-rejected-calls"))      //nolint:errcheck
	viper.BindPFlag(keyPrintDataTypeHeader, flags.Lookup("print-data-type-header")) //nolint:errcheck
	viper.BindPFlag(keyTypePlaceholder, flags.Lookup("type-placeholder"))           //nolint:errcheck

	return cmd
}

func runVCF2TSV(inputPath, outputPath, dbPath, table string, opts output.Options) error {
	parser, err := vcf.NewParser(inputPath)
	if err != nil {
		return err
	}
	defer parser.Close()

	out, err := xopen.Wopen(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	sinks := []output.RowSink{output.NewTabWriter(out)}

	var (
		dbStore   *duckdb.Store
		tableSink *duckdb.TableSink
	)
	if dbPath != "" {
		store, err := duckdb.Open(dbPath)
		if err != nil {
			out.Close()
			return err
		}
		defer store.Close()

		tableSink = duckdb.NewTableSink(store, table)
		sinks = append(sinks, tableSink)
		dbStore = store
	}

	f := output.NewFlattener(opts)
	f.SetLogger(logger)

	stats, err := f.Convert(parser, sinks...)
	if err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	logger.Info("conversion complete",
		zap.String("input", inputPath),
		zap.Int("records", stats.Records),
		zap.Int("rejected", stats.Rejected),
		zap.Int("rows", stats.Rows),
		zap.Int("suppressed", stats.Suppressed),
		zap.Int("type_mismatches", stats.Mismatches))
	if tableSink != nil {
		if err := recordImport(dbStore, table, inputPath, tableSink.Rows()); err != nil {
			logger.Warn("could not record import", zap.Error(err))
		}
		logger.Info("loaded duckdb table",
			zap.String("database", dbPath),
			zap.String("table", table),
			zap.Int64("rows", tableSink.Rows()))
	}
	return nil
}

// recordImport notes the source file of a table. Stdin has no fingerprint.
func recordImport(store *duckdb.Store, table, inputPath string, rows int64) error {
	fp := duckdb.FileFingerprint{Path: inputPath}
	if inputPath != "-" {
		var err error
		if fp, err = duckdb.StatFile(inputPath); err != nil {
			return err
		}
	}

	prev, ok, err := store.LastImport(table)
	if err != nil {
		return err
	}
	if ok {
		logger.Info("replaced duckdb table",
			zap.String("table", table),
			zap.String("previous_source", prev.Source.Path),
			zap.Int64("previous_rows", prev.Rows),
			zap.Bool("source_unchanged", prev.Source.Matches(fp)))
	}
	return store.RecordImport(table, fp, rows)
}
