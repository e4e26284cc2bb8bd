package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/hazyhaar/playerdex/pkg/kvstore"
)

const sampleCSV = "short_name,player_positions,overall,preferred_foot\n" +
	"J. Bellingham,CAM,90,Right\n" +
	"J. Smith,ST,70,Left\n" +
	"J. Smith,ST,71,Left\n" +
	"Pedri,CM,86,Right\n"

func TestRunLocalFile(t *testing.T) {
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "players.csv")
	os.WriteFile(src, []byte(sampleCSV), 0o644)
	bundles := t.TempDir()
	cat := tempCatalog(t)

	rep, err := Run(ctx, Options{Source: src, Version: "FC26", BundleDir: bundles}, cat, quietLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Adapter != "csv" || rep.Records != 3 || rep.Created != 3 || rep.Updated != 0 {
		t.Errorf("report = %+v", rep)
	}

	b, err := directory.DirBundles{Dir: bundles}.FetchBundle(ctx, "FC26")
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if len(b.Players) != 3 {
		t.Errorf("bundle players = %d, want 3", len(b.Players))
	}
	for _, p := range b.Players {
		if p.NameLower == "j. smith" && p.Overall != 71 {
			t.Errorf("duplicate kept overall %d, want the last row (71)", p.Overall)
		}
	}

	m, err := LoadManifest(filepath.Join(bundles, "FC26.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.BundleFile != "FC26.bundle" || m.Records != 3 || m.Source != src {
		t.Errorf("manifest = %+v", m)
	}

	// A second run updates instead of creating.
	rep, err = Run(ctx, Options{Source: src, Version: "FC26"}, cat, quietLogger())
	if err != nil {
		t.Fatalf("Run again: %v", err)
	}
	if rep.Created != 0 || rep.Updated != 3 || rep.Previous != 3 || rep.BundlePath != "" {
		t.Errorf("second report = %+v", rep)
	}

	sources, _ := cat.ListSources(ctx)
	if len(sources) != 1 || sources[0].Location != src || sources[0].Records != 3 {
		t.Errorf("sources = %+v", sources)
	}
}

func TestRunReimportRefreshesVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := filepath.Join(dir, "players.csv")
	os.WriteFile(first, []byte(sampleCSV), 0o644)
	patch := filepath.Join(dir, "patch.csv")
	os.WriteFile(patch, []byte("short_name,player_positions,overall\nL. Yamal,RW,84\nPedri,CM,88\n"), 0o644)
	bundles := t.TempDir()
	cat := tempCatalog(t)
	snapshots := directory.NewSnapshotStore(kvstore.NewMemory(), quietLogger())

	if _, err := Run(ctx, Options{Source: first, Version: "FC26", BundleDir: bundles}, cat, quietLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snapshots.Put(ctx, "FC26", directory.Build("FC26", []directory.PlayerRecord{NewRecord("FC26", "Pedri", "CM", nil)}).Snapshot())
	snapshots.Put(ctx, "FC25", directory.Build("FC25", []directory.PlayerRecord{NewRecord("FC25", "Pedri", "CM", nil)}).Snapshot())

	rep, err := Run(ctx, Options{Source: patch, Version: "FC26", BundleDir: bundles, Snapshots: snapshots}, cat, quietLogger())
	if err != nil {
		t.Fatalf("Run patch: %v", err)
	}
	if rep.Previous != 3 || rep.Records != 2 || rep.Created != 1 || rep.Updated != 1 {
		t.Errorf("report = %+v", rep)
	}

	b, err := directory.DirBundles{Dir: bundles}.FetchBundle(ctx, "FC26")
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if len(b.Players) != 4 {
		t.Errorf("bundle players = %d, want the 4 the catalog holds", len(b.Players))
	}
	m, err := LoadManifest(filepath.Join(bundles, "FC26.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Records != 4 || m.Source != patch {
		t.Errorf("manifest = %+v", m)
	}

	if got := snapshots.Get(ctx, "FC26"); got != nil {
		t.Errorf("FC26 snapshot survived the re-import: %+v", got)
	}
	if got := snapshots.Get(ctx, "FC25"); got == nil {
		t.Error("FC25 snapshot was dropped")
	}
}

func TestRunDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"shortName":"K. Mbappé","playerPositions":"ST"}]`))
	}))
	defer ts.Close()

	rep, err := Run(context.Background(), Options{Source: ts.URL + "/export/players.json?token=x", Version: "FC26"}, nil, quietLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Adapter != "json" || rep.Records != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	os.WriteFile(empty, []byte("short_name,player_positions\n,\n"), 0o644)
	odd := filepath.Join(dir, "players.xlsx")
	os.WriteFile(odd, []byte("binary"), 0o644)

	tests := []struct {
		name string
		opts Options
	}{
		{"no source", Options{Version: "FC26"}},
		{"no version", Options{Source: empty}},
		{"missing file", Options{Source: filepath.Join(dir, "nope.csv"), Version: "FC26"}},
		{"no rows", Options{Source: empty, Version: "FC26"}},
		{"unknown format", Options{Source: odd, Version: "FC26"}},
		{"unknown adapter", Options{Source: empty, Version: "FC26", Adapter: "xml"}},
	}
	for _, tt := range tests {
		if _, err := Run(ctx, tt.opts, nil, quietLogger()); err == nil {
			t.Errorf("%s: Run succeeded", tt.name)
		}
	}
}
