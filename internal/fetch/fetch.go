// Package fetch downloads the raw open-data assets over HTTP with
// retries and a shared rate limiter, out of politeness to the portal.
package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/observatoire-logement/lovac-cli/internal/resilience"
)

// Options configures a download batch.
type Options struct {
	Timeout    time.Duration // per attempt, default 120s
	MaxRetries int           // additional attempts after the first
	Limiter    *rate.Limiter // optional
}

// Asset names a URL and its destination file name.
type Asset struct {
	URL  string
	Name string
}

// Download retrieves each asset into dir, creating it if needed.
// Assets are fetched sequentially; a failed asset aborts the batch.
func Download(ctx context.Context, client *http.Client, dir string, assets []Asset, opts Options) error {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "fetch: create dir %s", dir)
	}

	log := zap.L().With(zap.String("component", "fetch"))
	for _, a := range assets {
		dest := filepath.Join(dir, a.Name)
		if err := downloadFile(ctx, client, a.URL, dest, opts); err != nil {
			return eris.Wrapf(err, "fetch: %s", a.URL)
		}
		log.Info("asset downloaded", zap.String("url", a.URL), zap.String("dest", dest))
	}
	return nil
}

// downloadFile downloads a URL to a local file, retrying transient
// failures with exponential backoff.
func downloadFile(ctx context.Context, client *http.Client, url, dest string, opts Options) error {
	cfg := resilience.Config{
		MaxAttempts: opts.MaxRetries + 1,
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("download attempt failed",
				zap.String("component", "fetch"),
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate limit wait")
			}
		}
		return downloadOnce(ctx, client, url, dest, opts.Timeout)
	})
}

func downloadOnce(ctx context.Context, client *http.Client, url, dest string, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Wrap(&resilience.StatusError{Code: resp.StatusCode}, "download")
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}
	return nil
}
