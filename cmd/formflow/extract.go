// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/formflow/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <source.pdf>",
	Short: "Read the form field values of a PDF",
	Long: `Extract uploads the source PDF, runs one form-data extraction job and
prints the field values as JSON on stdout. Progress goes to stderr.

With --template the fields are also written as a one-row xlsx sheet that
can be edited and passed to inject --records.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("out", "", "also write the extracted JSON to this file")
	extractCmd.Flags().String("template", "", "also write the fields as an xlsx template to this file")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	outPath, _ := cmd.Flags().GetString("out")
	templatePath, _ := cmd.Flags().GetString("template")

	runner, closeRunner, err := newRunner(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeRunner()

	res, err := runner.Extract(cmd.Context(), types.ExtractConfig{
		SourcePath:   args[0],
		OutputPath:   outPath,
		TemplatePath: templatePath,
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, res.Fields, "", "  "); err != nil {
		return fmt.Errorf("formatting fields: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}
