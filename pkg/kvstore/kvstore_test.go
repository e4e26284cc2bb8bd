package kvstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/playerdex/pkg/directory"
)

var (
	_ directory.KV = (*SQLite)(nil)
	_ directory.KV = (*Memory)(nil)
)

func tempSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetPut(t *testing.T) {
	ctx := context.Background()
	s := tempSQLite(t)

	got, err := s.Get(ctx, "snapshot/FC26")
	if err != nil || got != nil {
		t.Fatalf("Get on empty db = %q, %v; want nil, nil", got, err)
	}

	if err := s.Put(ctx, "snapshot/FC26", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "snapshot/FC26", []byte("two")); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	got, err = s.Get(ctx, "snapshot/FC26")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("two")) {
		t.Errorf("Get = %q, want two", got)
	}
}

func TestSQLiteListDelete(t *testing.T) {
	ctx := context.Background()
	s := tempSQLite(t)
	for _, k := range []string{"snapshot/FC25", "snapshot/FC26", "other"} {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	entries, err := s.List(ctx, "snapshot/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "snapshot/FC25" || entries[1].Size != len("snapshot/FC26") {
		t.Errorf("List = %+v", entries)
	}

	if err := s.Delete(ctx, "snapshot/FC25"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
	if got, _ := s.Get(ctx, "snapshot/FC25"); got != nil {
		t.Errorf("Get after Delete = %q", got)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	store := directory.NewSnapshotStore(s, nil)
	want := directory.Build("FC26", []directory.PlayerRecord{
		{ID: "1", ShortName: "J. Bellingham", NameLower: "j. bellingham"},
	}).Snapshot()
	store.Put(ctx, "FC26", want)
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got := directory.NewSnapshotStore(s, nil).Get(ctx, "FC26")
	if got.Len() != 1 || got.Names[0] != "j. bellingham" {
		t.Errorf("snapshot after reopen = %+v", got)
	}
}

func TestMemoryCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	v := []byte("abc")
	m.Put(ctx, "k", v)
	v[0] = 'x'

	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Get = %q, want abc", got)
	}
	got[0] = 'y'
	if again, _ := m.Get(ctx, "k"); string(again) != "abc" {
		t.Errorf("Get after caller mutation = %q, want abc", again)
	}
	if missing, err := m.Get(ctx, "nope"); missing != nil || err != nil {
		t.Errorf("Get(missing) = %q, %v", missing, err)
	}
	m.Delete(ctx, "k")
	if gone, _ := m.Get(ctx, "k"); gone != nil {
		t.Errorf("Get after Delete = %q", gone)
	}
}
