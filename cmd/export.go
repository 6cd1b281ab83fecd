package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/observatoire-logement/lovac-cli/internal/export"
	"github.com/observatoire-logement/lovac-cli/internal/pipeline"
	"github.com/observatoire-logement/lovac-cli/internal/store"
)

var exportXLSXPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build the model and persist it as a snapshot",
	Long:  "Runs the pipeline and writes the resulting aggregates, department observations, and quality report to the configured snapshot store. With --xlsx, additionally writes the latest-year department snapshot as a workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := pipelineOptions()
		if err != nil {
			return err
		}

		m, err := pipeline.Build(cmd.Context(), opts)
		if err != nil {
			return err
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Migrate(cmd.Context()); err != nil {
			return err
		}
		id, err := s.SaveSnapshot(cmd.Context(), m)
		if err != nil {
			return err
		}
		zap.L().Info("snapshot saved", zap.String("component", "export"), zap.String("id", id))
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s saved\n", id)

		if exportXLSXPath != "" {
			if err := export.SnapshotXLSX(m, exportXLSXPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workbook written to %s\n", exportXLSXPath)
		}
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		infos, err := s.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		for _, in := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  latest=%d  dep_rows=%d  com_rows=%d\n",
				in.ID, in.CreatedAt.Format("2006-01-02 15:04:05"), in.LatestYear, in.DepartmentRows, in.CommuneRows)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "also write the latest-year snapshot to this XLSX path")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// openStore opens the configured snapshot store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
