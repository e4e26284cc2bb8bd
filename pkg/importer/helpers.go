package importer

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const downloadAttempts = 3

// retryBase is the first backoff between download attempts; it doubles on
// each retry.
var retryBase = time.Second

// downloadFile downloads url to dest with retries and timeout.
func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	var lastErr error
	for attempt := range downloadAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBase << (attempt - 1)):
			}
		}
		lastErr = downloadOnce(ctx, client, url, dest)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("download %s failed after %d attempts: %w", url, downloadAttempts, lastErr)
}

func downloadOnce(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// unzipFile extracts the regular files of a ZIP archive flat into destDir
// and returns their paths.
func unzipFile(src, destDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var paths []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extract(f, destPath); err != nil {
			return nil, err
		}
		paths = append(paths, destPath)
	}
	return paths, nil
}

func extract(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// isRemote reports whether location is an http(s) URL rather than a path.
func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// resolveInput turns a local path or URL into a local dataset file,
// downloading into workDir and unpacking ZIP archives as needed.
func resolveInput(ctx context.Context, location, workDir string) (string, error) {
	path := location
	if isRemote(location) {
		name := filepath.Base(strings.SplitN(location, "?", 2)[0])
		if name == "" || name == "." || name == "/" {
			name = "dataset"
		}
		path = filepath.Join(workDir, name)
		if err := downloadFile(ctx, location, path); err != nil {
			return "", fmt.Errorf("download: %w", err)
		}
	}
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return path, nil
	}

	files, err := unzipFile(path, workDir)
	if err != nil {
		return "", fmt.Errorf("unzip: %w", err)
	}
	for _, f := range files {
		if _, err := ForFile(f); err == nil {
			return f, nil
		}
	}
	return "", fmt.Errorf("no dataset file found in %s", filepath.Base(path))
}

// Manifest describes an imported bundle. It is written next to the bundle
// as <version>.yaml.
type Manifest struct {
	Version    string    `yaml:"version"`
	Source     string    `yaml:"source"`
	Adapter    string    `yaml:"adapter"`
	Records    int       `yaml:"records"`
	BundleFile string    `yaml:"bundle_file"`
	SHA256     string    `yaml:"sha256"`
	ImportedAt time.Time `yaml:"imported_at"`
}

// writeManifest writes m as YAML to dir/<version>.yaml, hashing the bundle
// file it describes.
func writeManifest(dir string, m *Manifest) error {
	sum, err := fileSHA256(filepath.Join(dir, m.BundleFile))
	if err != nil {
		return err
	}
	m.SHA256 = sum
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, m.Version+".yaml"), data, 0o644)
}

// LoadManifest reads a manifest written by an import.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ensureDir creates a directory if it doesn't exist.
func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
