package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBundleFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &Bundle{Version: "FC26", Players: testRecords()}

	path, err := WriteBundleFile(dir, want)
	if err != nil {
		t.Fatalf("WriteBundleFile: %v", err)
	}
	if path != filepath.Join(dir, "FC26.bundle") {
		t.Errorf("path = %q", path)
	}

	got, err := DirBundles{Dir: dir}.FetchBundle(context.Background(), "FC26")
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}

	versions, err := DirBundles{Dir: dir}.Versions()
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if diff := cmp.Diff([]string{"FC26"}, versions); diff != "" {
		t.Errorf("versions (-want +got):\n%s", diff)
	}
}

func TestDirBundlesNotFound(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []string{"FC99", "../etc/passwd", "", ".."} {
		_, err := DirBundles{Dir: dir}.FetchBundle(context.Background(), v)
		if !errors.Is(err, ErrBundleNotFound) {
			t.Errorf("FetchBundle(%q) err = %v, want ErrBundleNotFound", v, err)
		}
	}
	if _, err := (DirBundles{}).FetchBundle(context.Background(), "FC26"); !errors.Is(err, ErrBundleNotFound) {
		t.Errorf("empty dir err = %v, want ErrBundleNotFound", err)
	}
}

func TestDirBundlesMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "FC26.bundle"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := DirBundles{Dir: dir}.FetchBundle(context.Background(), "FC26")
	if err == nil || errors.Is(err, ErrBundleNotFound) {
		t.Errorf("err = %v, want a decode error", err)
	}
}

func TestWriteBundleFileRejectsBadVersion(t *testing.T) {
	for _, v := range []string{"", "a/b", "..", "FC 26"} {
		if _, err := WriteBundleFile(t.TempDir(), &Bundle{Version: v}); err == nil {
			t.Errorf("WriteBundleFile(%q) succeeded", v)
		}
	}
}
