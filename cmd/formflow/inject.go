// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/records"
	"github.com/pdiddy/formflow/pkg/types"
)

var injectCmd = &cobra.Command{
	Use:   "inject <source.pdf>",
	Short: "Fill a PDF form once per record",
	Long: `Inject uploads the source PDF once, then for each record in the records
file submits a form-data job, waits for it and saves the filled document as
<prefix>_<n>.pdf in the output directory, n being the record's position.

Records may be JSON, YAML, CSV or xlsx. The first failed record stops the
run; records after it are not attempted. A manifest.yaml listing every
output is written when all records succeed.`,
	Args: cobra.ExactArgs(1),
	RunE: runInject,
}

func init() {
	injectCmd.Flags().String("records", "", "records file (.json, .yaml, .csv, .xlsx)")
	injectCmd.Flags().String("out-dir", "output", "directory for the filled documents")
	injectCmd.Flags().String("prefix", "", "output file name prefix (default: source file name)")
	injectCmd.Flags().Int("concurrency", 1, "records in flight at once")

	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) error {
	recordsPath, _ := cmd.Flags().GetString("records")
	if recordsPath == "" {
		return apierr.Configuration("inject", "--records is required")
	}
	outDir, _ := cmd.Flags().GetString("out-dir")
	prefix, _ := cmd.Flags().GetString("prefix")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency < 1 {
		return apierr.Configuration("inject", "--concurrency must be at least 1")
	}

	recs, err := records.Load(recordsPath)
	if err != nil {
		return err
	}

	runner, closeRunner, err := newRunner(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeRunner()

	_, err = runner.Inject(cmd.Context(), types.InjectConfig{
		SourcePath:  args[0],
		OutputDir:   outDir,
		Prefix:      prefix,
		Concurrency: concurrency,
	}, recs)
	return err
}
