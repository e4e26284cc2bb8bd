package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/hazyhaar/playerdex/pkg/importer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), quietLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if diff := cmp.Diff(defaultConfig(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
addr: ":9000"
version: FC25
upstream_url: https://dex.example.com
pages_per_second: 4
check_interval: 1h
search:
  max_limit: 10
tls:
  enabled: true
  hosts: [dex.local]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path, quietLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	want := defaultConfig()
	want.Addr = ":9000"
	want.Version = "FC25"
	want.UpstreamURL = "https://dex.example.com"
	want.PagesPerSecond = 4
	want.CheckInterval = time.Hour
	want.Search.MaxLimit = 10
	want.TLS.Enabled = true
	want.TLS.Hosts = []string{"dex.local"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigRejectsEmptyVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("version: \"\"\n"), 0o644)
	if _, err := loadConfig(path, quietLogger()); err == nil {
		t.Error("want error for empty version")
	}
}

type fakeBundles struct {
	b   *directory.Bundle
	err error
}

func (f fakeBundles) FetchBundle(context.Context, string) (*directory.Bundle, error) {
	return f.b, f.err
}

func TestBundleChain(t *testing.T) {
	notFound := fakeBundles{err: directory.ErrBundleNotFound}
	found := fakeBundles{b: &directory.Bundle{Version: "FC26"}}
	broken := fakeBundles{err: errors.New("disk on fire")}

	tests := []struct {
		name    string
		chain   bundleChain
		want    *directory.Bundle
		wantErr error
	}{
		{"empty", nil, nil, directory.ErrBundleNotFound},
		{"second source", bundleChain{notFound, found}, found.b, nil},
		{"first wins", bundleChain{found, broken}, found.b, nil},
		{"error stops", bundleChain{broken, found}, nil, broken.err},
		{"all missing", bundleChain{notFound, notFound}, nil, directory.ErrBundleNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.chain.FetchBundle(context.Background(), "FC26")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("bundle = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestOpenStackCatalogTier loads a version through the local catalog when
// there is no snapshot, no bundle and no upstream, then reloads it from
// the snapshot the first load left behind. A re-import then drops that
// snapshot, so the third load reads the fresh bundle.
func TestOpenStackCatalogTier(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.SnapshotDB = filepath.Join(dir, "data", "snapshots.db")
	cfg.CatalogDB = filepath.Join(dir, "data", "catalog.db")
	cfg.BundleDir = filepath.Join(dir, "data", "bundles")
	cfg.PageSize = 2

	if err := ensureParent(cfg.CatalogDB); err != nil {
		t.Fatal(err)
	}
	cat, err := importer.OpenCatalog(cfg.CatalogDB)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	records := []directory.PlayerRecord{
		importer.NewRecord("FC26", "J. Bellingham", "CM", nil),
		importer.NewRecord("FC26", "K. Mbappé", "ST", nil),
		importer.NewRecord("FC26", "Pedri", "CM", nil),
	}
	if _, _, err := cat.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cat.Close()

	load := func() directory.LoadStatus {
		st, err := openStack(cfg, quietLogger())
		if err != nil {
			t.Fatalf("openStack: %v", err)
		}
		defer st.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status := st.cache.Warm("FC26").Wait(ctx)
		if got := st.cache.Search("FC26", "mbap", 5); len(got) != 1 || got[0].ShortName != "K. Mbappé" {
			t.Errorf("search mbap = %+v", got)
		}
		return status
	}

	first := load()
	if !first.Loaded || first.Source != directory.TierRemote || first.LoadedCount != 3 {
		t.Fatalf("first load = %+v", first)
	}
	second := load()
	if !second.Loaded || second.Source != directory.TierSnapshot {
		t.Errorf("second load = %+v, want snapshot tier", second)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	conf := "version: FC26\nsnapshot_db: " + cfg.SnapshotDB + "\ncatalog_db: " + cfg.CatalogDB + "\nbundle_dir: " + cfg.BundleDir + "\n"
	csvPath := filepath.Join(dir, "patch.csv")
	os.WriteFile(cfgPath, []byte(conf), 0o644)
	os.WriteFile(csvPath, []byte("short_name,player_positions\nL. Yamal,RW\n"), 0o644)
	if err := cmdImport([]string{"-config", cfgPath, "-source", csvPath}); err != nil {
		t.Fatalf("import: %v", err)
	}

	third := load()
	if !third.Loaded || third.Source != directory.TierBundle || third.LoadedCount != 4 {
		t.Errorf("load after re-import = %+v, want bundle tier with 4 players", third)
	}
}
