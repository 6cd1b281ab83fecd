package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/observatoire-logement/lovac-cli/internal/mapdata"
	"github.com/observatoire-logement/lovac-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built model over HTTP",
	Long:  "Builds the model once and exposes read-only JSON endpoints over it. The boundary GeoJSON is fetched lazily; a fetch failure degrades the map endpoint only, never the rest of the surface.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := pipelineOptions()
		if err != nil {
			return err
		}
		m, err := pipeline.Build(ctx, opts)
		if err != nil {
			return err
		}

		// Boundary fetch is lazy and cached for the process lifetime.
		var (
			boundariesOnce sync.Once
			boundaries     *geojson.FeatureCollection
			boundariesErr  error
		)
		loadBoundaries := func() (*geojson.FeatureCollection, error) {
			boundariesOnce.Do(func() {
				boundaries, boundariesErr = mapdata.FetchBoundaries(ctx, http.DefaultClient, mapdata.FetchOptions{
					URL:        cfg.Map.BoundariesURL,
					Timeout:    time.Duration(cfg.Map.TimeoutSecs) * time.Second,
					MaxRetries: cfg.Map.MaxRetries,
				})
			})
			return boundaries, boundariesErr
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"status": "ok"})
		})
		mux.HandleFunc("GET /years", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.YearsAvailable)
		})
		mux.HandleFunc("GET /regions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.RegionNames)
		})
		mux.HandleFunc("GET /departments", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.DepartmentNames)
		})
		mux.HandleFunc("GET /by-department-year", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.ByDepartmentYear)
		})
		mux.HandleFunc("GET /by-region-year", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.ByRegionYear)
		})
		mux.HandleFunc("GET /national", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.National)
		})
		mux.HandleFunc("GET /latest", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.LatestYearSnapshot)
		})
		mux.HandleFunc("GET /quality", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, m.Quality)
		})
		mux.HandleFunc("GET /map/tilegrid", func(w http.ResponseWriter, r *http.Request) {
			tiles, err := mapdata.TileGrid()
			if err != nil {
				http.Error(w, `{"error":"tile grid unavailable"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, tiles)
		})
		mux.HandleFunc("GET /map/boundaries", func(w http.ResponseWriter, r *http.Request) {
			fc, err := loadBoundaries()
			if err != nil {
				// Map data is optional; consumers fall back to non-map views.
				http.Error(w, `{"error":"boundaries unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, fc)
		})

		port := cfg.Serve.Port
		if servePort != 0 {
			port = servePort
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		zap.L().Info("serving model", zap.String("component", "serve"), zap.Int("port", port))

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "serve: shutdown")
			}
			return nil
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "serve: listen")
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
