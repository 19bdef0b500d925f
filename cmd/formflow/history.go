// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/formflow/internal/history"
	"github.com/pdiddy/formflow/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Long: `History lists recent extract and inject runs recorded in the history
database, newest first, with their outcome and output count.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := history.Open(viper.GetString("history_dir"))
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []types.Run{}
		}
		return enc.Encode(runs)
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

// printRuns writes runs as an aligned table.
func printRuns(w io.Writer, runs []types.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tSTATE\tSTARTED\tDURATION\tOUTPUTS\tSOURCE")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			id, kindLabel(r.Kind), r.State,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond),
			len(r.Artifacts), r.Records,
			r.SourcePath,
		)
	}
	return tw.Flush()
}

func kindLabel(k types.JobKind) string {
	switch k {
	case types.JobExtract:
		return "extract"
	case types.JobInject:
		return "inject"
	}
	return string(k)
}
