package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/observatoire-logement/lovac-cli/internal/model"
	"github.com/observatoire-logement/lovac-cli/internal/pipeline"
	"github.com/observatoire-logement/lovac-cli/internal/reshape"
)

var (
	buildDepFile string
	buildComFile string
	buildJSONOut string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the analytical model from the raw tables",
	Long:  "Loads the department and commune tables, melts them into long-form observations, derives per-geography-per-year aggregates and rates, and prints a run summary. Use --json to dump the full model.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := pipelineOptions()
		if err != nil {
			return err
		}

		m, err := pipeline.Build(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if buildJSONOut != "" {
			if err := writeModelJSON(m, buildJSONOut); err != nil {
				return err
			}
		}

		printSummary(cmd, m)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildDepFile, "dep", "", "department table path (overrides config)")
	buildCmd.Flags().StringVar(&buildComFile, "com", "", "commune table path (overrides config)")
	buildCmd.Flags().StringVar(&buildJSONOut, "json", "", "write the full model as JSON to this path ('-' for stdout)")
	rootCmd.AddCommand(buildCmd)
}

// pipelineOptions assembles run options from config and flag overrides.
func pipelineOptions() (pipeline.Options, error) {
	opts := pipeline.Options{
		DepartmentPath: cfg.Data.DepartmentFile,
		CommunePath:    cfg.Data.CommuneFile,
		Delimiter:      cfg.Data.DelimiterRune(),
	}
	if buildDepFile != "" {
		opts.DepartmentPath = buildDepFile
	}
	if buildComFile != "" {
		opts.CommunePath = buildComFile
	}
	if cfg.Data.SchemaFile != "" {
		s, err := reshape.LoadSchema(cfg.Data.SchemaFile)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.Schema = s
	}
	return opts, nil
}

func writeModelJSON(m *model.Model, path string) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(m), "encode model")
}

func printSummary(cmd *cobra.Command, m *model.Model) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "years:        %v\n", m.YearsAvailable)
	fmt.Fprintf(out, "departments:  %d\n", len(m.DepartmentNames))
	fmt.Fprintf(out, "regions:      %d\n", len(m.RegionNames))
	fmt.Fprintf(out, "dep records:  %d\n", len(m.ByDepartmentYear))
	fmt.Fprintf(out, "reg records:  %d\n", len(m.ByRegionYear))
	if len(m.National) > 0 {
		latest := m.National[len(m.National)-1]
		fmt.Fprintf(out, "latest national vacancy rate: %s%%\n", latest.VacancyRate)
	}
	v := m.Quality.Violations
	fmt.Fprintf(out, "violations:   vacant>total=%d vacant2y>vacant=%d total<0=%d vacant<0=%d\n",
		v.VacantGTTotal, v.Vacant2yGTVacant, v.NegativeTotal, v.NegativeVacant)
}
