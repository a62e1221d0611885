package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"growcore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "events/000001.jsonl", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "application/x-ndjson", Metadata: map[string]string{"events": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "events/000001.jsonl" || info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "events/000001.jsonl", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := store.Head(ctx, "events/000001.jsonl")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	got, rc, err := store.Get(ctx, "events/000001.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != "hello" || got.ETag != head.ETag || got.Metadata["events"] != "1" {
		t.Fatalf("unexpected get result %+v %q", got, body)
	}

	if _, err := store.Put(ctx, "manifest.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put manifest: %v", err)
	}
	list, err := store.List(ctx, "events/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "events/000001.jsonl" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 2 || all[0].Key != "events/000001.jsonl" {
		t.Fatalf("expected sorted full listing, got %+v %v", all, err)
	}

	url, err := store.PresignURL(ctx, "manifest.json", 0)
	if err != nil || !strings.HasPrefix(url, "file://") {
		t.Fatalf("presign: %q %v", url, err)
	}

	ok, err := store.Delete(ctx, "events/000001.jsonl")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "events/000001.jsonl"); err != nil || ok {
		t.Fatalf("second delete should report missing: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "events/000001.jsonl"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "/abs", "../escape", "a/../../b", "x.meta"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestStoreMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.PresignURL(ctx, "nope", 0); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("presign: expected ErrNotFound, got %v", err)
	}
}

func TestStoreCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "a.jsonl", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.root, "a.jsonl.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Head(ctx, "a.jsonl"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}

func TestStoreConcurrentPutSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Put(ctx, "race.jsonl", strings.NewReader("x"), core.PutOptions{})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, core.ErrExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one winner, got %d", created)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStorePutReadError(t *testing.T) {
	store := newTempStore(t)
	if _, err := store.Put(context.Background(), "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := os.Stat(filepath.Join(store.root, "bad")); !os.IsNotExist(err) {
		t.Fatalf("failed put must not leave data behind: %v", err)
	}
}
