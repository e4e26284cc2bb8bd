package directory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mapKV is an in-memory KV that can be told to fail.
type mapKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	getErr error
	putErr error
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string][]byte)}
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *mapKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = value
	return nil
}

func (m *mapKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapKV) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	store := NewSnapshotStore(kv, nil)

	want := Build("FC26", testRecords()).Snapshot()
	store.Put(ctx, "FC26", want)

	got := store.Get(ctx, "FC26")
	if got == nil {
		t.Fatal("Get returned nil after Put")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if _, ok := kv.data["snapshot/FC26"]; !ok {
		t.Errorf("keys = %v, want snapshot/FC26", kv.data)
	}
}

func TestSnapshotGetMisses(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		if got := NewSnapshotStore(newMapKV(), nil).Get(ctx, "FC26"); got != nil {
			t.Errorf("Get = %+v, want nil", got)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		kv := newMapKV()
		kv.data["snapshot/FC26"] = []byte("definitely not zstd")
		if got := NewSnapshotStore(kv, nil).Get(ctx, "FC26"); got != nil {
			t.Errorf("Get = %+v, want nil", got)
		}
	})

	t.Run("storage error", func(t *testing.T) {
		kv := newMapKV()
		kv.getErr = errors.New("storage disabled")
		if got := NewSnapshotStore(kv, nil).Get(ctx, "FC26"); got != nil {
			t.Errorf("Get = %+v, want nil", got)
		}
	})

	t.Run("other version", func(t *testing.T) {
		kv := newMapKV()
		data, err := EncodeSnapshot(Build("FC25", testRecords()).Snapshot())
		if err != nil {
			t.Fatalf("EncodeSnapshot: %v", err)
		}
		kv.data["snapshot/FC26"] = data
		if got := NewSnapshotStore(kv, nil).Get(ctx, "FC26"); got != nil {
			t.Errorf("Get = %+v, want nil", got)
		}
	})

	t.Run("nil store", func(t *testing.T) {
		var store *SnapshotStore
		if got := store.Get(ctx, "FC26"); got != nil {
			t.Errorf("Get = %+v, want nil", got)
		}
		store.Put(ctx, "FC26", &Snapshot{})
		if got := NewSnapshotStore(nil, nil).Get(ctx, "FC26"); got != nil {
			t.Errorf("Get = %+v, want nil", got)
		}
	})
}

func TestSnapshotPutFailureIsSwallowed(t *testing.T) {
	kv := newMapKV()
	kv.putErr = errors.New("quota exceeded")
	store := NewSnapshotStore(kv, nil)

	store.Put(context.Background(), "FC26", Build("FC26", testRecords()).Snapshot())

	if kv.putCount() != 1 {
		t.Errorf("puts = %d, want 1", kv.putCount())
	}
	if got := store.Get(context.Background(), "FC26"); got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestSnapshotDrop(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	store := NewSnapshotStore(kv, nil)
	store.Put(ctx, "FC26", Build("FC26", testRecords()).Snapshot())
	store.Put(ctx, "FC25", Build("FC25", testRecords()[:1]).Snapshot())

	if err := store.Drop(ctx, "FC26"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if got := store.Get(ctx, "FC26"); got != nil {
		t.Errorf("Get after Drop = %+v, want nil", got)
	}
	if got := store.Get(ctx, "FC25"); got == nil || got.Len() != 1 {
		t.Errorf("other version after Drop = %+v", got)
	}
	if err := store.Drop(ctx, "FC24"); err != nil {
		t.Errorf("Drop(missing): %v", err)
	}
	var none *SnapshotStore
	if err := none.Drop(ctx, "FC26"); err != nil {
		t.Errorf("nil store Drop: %v", err)
	}
}

func TestDecodeSnapshotFormat(t *testing.T) {
	snap := Build("FC26", testRecords()).Snapshot()
	snap.Format = snapshotFormat + 1
	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	if _, err := DecodeSnapshot(data); !errors.Is(err, ErrSnapshotMismatch) {
		t.Errorf("DecodeSnapshot err = %v, want ErrSnapshotMismatch", err)
	}

	snap.Format = snapshotFormat
	snap.Meta = snap.Meta[:1]
	data, err = EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	if _, err := DecodeSnapshot(data); !errors.Is(err, ErrSnapshotMismatch) {
		t.Errorf("DecodeSnapshot err = %v, want ErrSnapshotMismatch", err)
	}
}
