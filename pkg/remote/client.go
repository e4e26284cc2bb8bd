// Package remote talks to a playerdex directory service over HTTP: the
// paginated directory listing and the packaged bundle download.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

// maxBundleBytes bounds a bundle download.
const maxBundleBytes = 64 << 20

// Client fetches directory pages and bundles from a base URL such as
// "https://players.example.net".
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for baseURL. A nil httpClient gets a 30s timeout.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// StatusError is a non-2xx reply from the directory service.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// FetchPage implements directory.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, version string, pageSize int, token string) (directory.Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if token != "" {
		q.Set("next_token", token)
	}
	u := c.baseURL + "/v1/directory/" + url.PathEscape(version) + "?" + q.Encode()

	resp, err := c.get(ctx, u)
	if err != nil {
		return directory.Page{}, err
	}
	defer resp.Body.Close()

	var page directory.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return directory.Page{}, fmt.Errorf("decode page: %w", err)
	}
	if page.NextToken != "" && page.NextToken == token {
		return directory.Page{}, fmt.Errorf("page token %q did not advance", token)
	}
	c.logger.Debug("fetched directory page", "version", version, "records", len(page.Records), "more", page.NextToken != "")
	return page, nil
}

// FetchBundle implements directory.BundleSource. A 404 maps to
// directory.ErrBundleNotFound.
func (c *Client) FetchBundle(ctx context.Context, version string) (*directory.Bundle, error) {
	u := c.baseURL + "/v1/bundles/" + url.PathEscape(version)
	resp, err := c.get(ctx, u)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, fmt.Errorf("bundle %s: %w", version, directory.ErrBundleNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	if len(data) > maxBundleBytes {
		return nil, fmt.Errorf("bundle %s exceeds %d bytes", version, maxBundleBytes)
	}
	return directory.DecodeBundle(data)
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: u}
	}
	return resp, nil
}
