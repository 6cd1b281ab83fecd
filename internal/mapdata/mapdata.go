// Package mapdata fetches the department boundary GeoJSON used by map
// views and exposes the region tile grid for the compact heat-grid
// chart. Boundary retrieval is best-effort: callers must treat a fetch
// error as "render without the map", never as fatal.
package mapdata

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/observatoire-logement/lovac-cli/internal/resilience"
)

//go:embed tilegrid.yaml
var tileGridYAML []byte

// Tile places one region on the heat-grid chart.
type Tile struct {
	Region string `yaml:"region" json:"region"`
	Row    int    `yaml:"row" json:"row"`
	Col    int    `yaml:"col" json:"col"`
}

// TileGrid returns the region tile grid from the embedded resource.
func TileGrid() ([]Tile, error) {
	var wrapper struct {
		Tiles []Tile `yaml:"tiles"`
	}
	if err := yaml.Unmarshal(tileGridYAML, &wrapper); err != nil {
		return nil, eris.Wrap(err, "mapdata: parse tile grid")
	}
	return wrapper.Tiles, nil
}

// FetchOptions configures the boundary fetch.
type FetchOptions struct {
	URL        string
	Timeout    time.Duration // per attempt, default 30s
	MaxRetries int           // additional attempts after the first
	Limiter    *rate.Limiter // optional
}

// FetchBoundaries downloads and decodes the department boundary
// feature collection. Transient failures are retried with exponential
// backoff; the last error is returned once retries are exhausted.
func FetchBoundaries(ctx context.Context, client *http.Client, opts FetchOptions) (*geojson.FeatureCollection, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	log := zap.L().With(
		zap.String("component", "mapdata"),
		zap.String("url", opts.URL),
	)

	cfg := resilience.Config{
		MaxAttempts: opts.MaxRetries + 1,
		OnRetry: func(attempt int, err error) {
			log.Warn("boundary fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		},
	}

	var fc *geojson.FeatureCollection
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "mapdata: rate limit wait")
			}
		}
		var err error
		fc, err = fetchOnce(ctx, client, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("boundaries fetched", zap.Int("features", len(fc.Features)))
	return fc, nil
}

func fetchOnce(ctx context.Context, client *http.Client, opts FetchOptions) (*geojson.FeatureCollection, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mapdata: build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mapdata: fetch boundaries")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(&resilience.StatusError{Code: resp.StatusCode}, "mapdata: fetch boundaries")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mapdata: read body")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, eris.Wrap(err, "mapdata: decode geojson")
	}
	return &fc, nil
}
