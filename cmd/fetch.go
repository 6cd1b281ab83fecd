package main

import (
	"net/http"
	"path"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/observatoire-logement/lovac-cli/internal/fetch"
)

var fetchWithMap bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the raw open-data tables",
	Long:  "Downloads the LOVAC department and commune CSV exports into the data directory. With --map, also fetches the department boundary GeoJSON used by map views.",
	RunE: func(cmd *cobra.Command, args []string) error {
		assets := []fetch.Asset{
			{URL: cfg.Fetch.DepartmentURL, Name: path.Base(cfg.Data.DepartmentFile)},
			{URL: cfg.Fetch.CommuneURL, Name: path.Base(cfg.Data.CommuneFile)},
		}
		if fetchWithMap {
			assets = append(assets, fetch.Asset{URL: cfg.Map.BoundariesURL, Name: "departements.geojson"})
		}

		opts := fetch.Options{
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		}
		if cfg.Fetch.RatePerSec > 0 {
			opts.Limiter = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSec), 1)
		}

		return fetch.Download(cmd.Context(), http.DefaultClient, cfg.Fetch.Dir, assets, opts)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchWithMap, "map", false, "also download the boundary GeoJSON")
	rootCmd.AddCommand(fetchCmd)
}
