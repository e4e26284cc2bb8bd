package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// BundleExt is the file extension of a packaged dataset.
const BundleExt = ".bundle"

// Bundle is a pre-packaged dataset for one version.
type Bundle struct {
	Version string         `json:"version" msgpack:"version"`
	Players []PlayerRecord `json:"players" msgpack:"players"`
}

// BundleSource fetches the packaged dataset for a version. Implementations
// return an error wrapping ErrBundleNotFound when there is none.
type BundleSource interface {
	FetchBundle(ctx context.Context, version string) (*Bundle, error)
}

// EncodeBundle serializes b as zstd-compressed msgpack.
func EncodeBundle(b *Bundle) ([]byte, error) {
	raw, err := msgpack.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return compress(raw), nil
}

// DecodeBundle reverses EncodeBundle.
func DecodeBundle(data []byte) (*Bundle, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress bundle: %w", err)
	}
	var b Bundle
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

// BundlePath returns where a bundle for version lives under dir.
func BundlePath(dir, version string) string {
	return filepath.Join(dir, version+BundleExt)
}

// WriteBundleFile writes b to BundlePath(dir, b.Version), replacing any
// previous file atomically.
func WriteBundleFile(dir string, b *Bundle) (string, error) {
	if b == nil || b.Version == "" {
		return "", errors.New("write bundle: missing version")
	}
	if !validVersion(b.Version) {
		return "", fmt.Errorf("write bundle: invalid version %q", b.Version)
	}
	data, err := EncodeBundle(b)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}
	path := BundlePath(dir, b.Version)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename bundle: %w", err)
	}
	return path, nil
}

// DirBundles serves bundles from files in a local directory.
type DirBundles struct {
	Dir string
}

// FetchBundle reads <Dir>/<version>.bundle.
func (d DirBundles) FetchBundle(_ context.Context, version string) (*Bundle, error) {
	if d.Dir == "" || !validVersion(version) {
		return nil, fmt.Errorf("bundle %q: %w", version, ErrBundleNotFound)
	}
	data, err := os.ReadFile(BundlePath(d.Dir, version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("bundle %q: %w", version, ErrBundleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle %q: %w", version, err)
	}
	return DecodeBundle(data)
}

// ReadFile returns the raw encoded bundle for version.
func (d DirBundles) ReadFile(version string) ([]byte, error) {
	if d.Dir == "" || !validVersion(version) {
		return nil, fmt.Errorf("bundle %q: %w", version, ErrBundleNotFound)
	}
	data, err := os.ReadFile(BundlePath(d.Dir, version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("bundle %q: %w", version, ErrBundleNotFound)
	}
	return data, err
}

// Versions lists the versions that have a bundle file in Dir.
func (d DirBundles) Versions() ([]string, error) {
	if d.Dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(d.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), BundleExt) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), BundleExt))
	}
	return out, nil
}

// validVersion keeps version tags usable as file names.
func validVersion(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return v != "." && v != ".."
}
