package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config keys
const (
	keySkipInfoData        = "vcf2tsv.skip_info_data"
	keySkipGenotypeData    = "vcf2tsv.skip_genotype_data"
	keyKeepRejectedCalls   = "vcf2tsv.keep_rejected_calls"
	keyPrintDataTypeHeader = "vcf2tsv.print_data_type_header"
	keyTypePlaceholder     = "vcf2tsv.type_placeholder"
	keyDeaminationThresh   = "qc.deamination_threshold"
	keyOxoGThresh          = "qc.oxog_threshold"
	keyMissingValue        = "merge.missing_value"
)

func setDefaults() {
	viper.SetDefault(keyTypePlaceholder, "NA")
	viper.SetDefault(keyDeaminationThresh, 30.0)
	viper.SetDefault(keyOxoGThresh, 30.0)
	viper.SetDefault(keyMissingValue, "NA")
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage genotab configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.genotab.yaml.",
		Example: `  genotab config                                       # show all config
  genotab config set vcf2tsv.print_data_type_header true  # always print the type row
  genotab config get qc.oxog_threshold                    # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		viper.Set(key, value)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
