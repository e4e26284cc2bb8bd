package importer

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func init() {
	retryBase = time.Millisecond
}

func TestDownloadFile(t *testing.T) {
	content := "short_name,player_positions\nJ. Bellingham,CAM\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "players.csv")
	if err := downloadFile(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("downloadFile: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != content {
		t.Errorf("content = %q, want %q", string(data), content)
	}
}

func TestDownloadFile_Retry(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "retry.txt")
	if err := downloadFile(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("downloadFile with retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDownloadFile_AllFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "fail.txt")
	if err := downloadFile(context.Background(), ts.URL, dest); err == nil {
		t.Error("expected error after all retries exhausted")
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestResolveInputZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "fc26.zip")
	writeZip(t, archive, map[string]string{
		"README.md":                   "not data",
		"export/male_players.csv":     "short_name,player_positions\nPedri,CM\n",
		"__MACOSX/._male_players.csv": "junk",
	})

	work := t.TempDir()
	got, err := resolveInput(context.Background(), archive, work)
	if err != nil {
		t.Fatalf("resolveInput: %v", err)
	}
	if got != filepath.Join(work, "male_players.csv") {
		t.Errorf("resolved = %q", got)
	}
}

func TestResolveInputZipWithoutData(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "empty.zip")
	writeZip(t, archive, map[string]string{"README.md": "nothing"})
	if _, err := resolveInput(context.Background(), archive, t.TempDir()); err == nil {
		t.Error("expected error for archive without dataset")
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "FC26.bundle"), []byte("bundle bytes"), 0o644)
	m := &Manifest{
		Version:    "FC26",
		Source:     "players.csv",
		Adapter:    "csv",
		Records:    3,
		BundleFile: "FC26.bundle",
		ImportedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := writeManifest(dir, m); err != nil {
		t.Fatalf("writeManifest: %v", err)
	}

	loaded, err := LoadManifest(filepath.Join(dir, "FC26.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Version != "FC26" || loaded.Records != 3 || !loaded.ImportedAt.Equal(m.ImportedAt) {
		t.Errorf("manifest = %+v", loaded)
	}
	if len(loaded.SHA256) != 64 {
		t.Errorf("sha256 = %q", loaded.SHA256)
	}
}
