package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Checker periodically verifies that the origin of every imported dataset
// is still reachable, so a re-import will not fail unexpectedly.
type Checker struct {
	catalog  *Catalog
	logger   *slog.Logger
	interval time.Duration
	client   *http.Client
}

// NewChecker creates a Checker that verifies import origins every interval.
func NewChecker(catalog *Catalog, logger *slog.Logger, interval time.Duration) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		catalog:  catalog,
		logger:   logger,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Start runs an immediate check then repeats every interval until ctx is cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll checks every recorded origin and persists the result.
func (c *Checker) CheckAll(ctx context.Context) {
	sources, err := c.catalog.ListSources(ctx)
	if err != nil {
		c.logger.Error("source check: cannot list sources", "error", err)
		return
	}
	if len(sources) == 0 {
		return
	}

	var ok, failed int
	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}

		status, checkErr := c.checkOne(ctx, src.Location)
		errMsg := ""
		if checkErr != nil {
			errMsg = checkErr.Error()
		}
		if err := c.catalog.UpdateCheck(ctx, src.Version, status, errMsg); err != nil {
			c.logger.Error("source check: update failed", "version", src.Version, "error", err)
		}

		if status >= 200 && status < 400 {
			ok++
			continue
		}
		failed++
		c.logger.Warn("import source unreachable",
			"version", src.Version,
			"source", src.Location,
			"status", status,
			"error", errMsg,
		)
	}
	c.logger.Info("source check complete", "total", ok+failed, "ok", ok, "failed", failed)
}

// checkOne HEADs a URL or stats a local file and returns an HTTP-style
// status. On network error, status is 0.
func (c *Checker) checkOne(ctx context.Context, location string) (int, error) {
	if !isRemote(location) {
		_, err := os.Stat(location)
		switch {
		case err == nil:
			return http.StatusOK, nil
		case errors.Is(err, fs.ErrNotExist):
			return http.StatusNotFound, nil
		default:
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", location, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
