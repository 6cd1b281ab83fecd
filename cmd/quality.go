package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/observatoire-logement/lovac-cli/internal/model"
	"github.com/observatoire-logement/lovac-cli/internal/pipeline"
)

var qualityJSON bool

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Print the data-quality report for the raw tables",
	Long:  "Runs the pipeline and prints missingness, duplicate counts, and logical-consistency violations. Violations are informational; no rows are dropped because of them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := pipelineOptions()
		if err != nil {
			return err
		}

		m, err := pipeline.Build(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if qualityJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m.Quality)
		}

		printQuality(cmd, m.Quality)
		return nil
	},
}

func init() {
	qualityCmd.Flags().BoolVar(&qualityJSON, "json", false, "emit the report as JSON")
	rootCmd.AddCommand(qualityCmd)
}

func printQuality(cmd *cobra.Command, q model.QualityReport) {
	out := cmd.OutOrStdout()
	for _, t := range []struct {
		name  string
		table model.TableQuality
	}{
		{"department", q.Department},
		{"commune", q.Commune},
	} {
		fmt.Fprintf(out, "%s table: %d rows, %d duplicate rows\n", t.name, t.table.RowCount, t.table.DuplicateRows)

		cols := make([]string, 0, len(t.table.MissingByColumn))
		for col := range t.table.MissingByColumn {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			fmt.Fprintf(out, "  %-24s missing %6d (%.2f%%)\n",
				col, t.table.MissingByColumn[col], t.table.MissingPctByColumn[col])
		}
	}

	v := q.Violations
	fmt.Fprintf(out, "consistency checks (reported, not corrected):\n")
	fmt.Fprintf(out, "  vacant > total:            %d\n", v.VacantGTTotal)
	fmt.Fprintf(out, "  longterm vacant > vacant:  %d\n", v.Vacant2yGTVacant)
	fmt.Fprintf(out, "  negative total:            %d\n", v.NegativeTotal)
	fmt.Fprintf(out, "  negative vacant:           %d\n", v.NegativeVacant)
}
