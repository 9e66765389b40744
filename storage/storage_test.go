package storage_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/sirupsen/logrus"
)

func backends(t *testing.T) map[string]storage.KV {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	m := map[string]storage.KV{
		"memory": storage.NewMemoryStore(64),
		"file":   fs,
	}
	t.Cleanup(func() {
		for _, kv := range m {
			_ = kv.Close()
		}
	})
	return m
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get(ctx, "vendors"); err != nil || ok {
				t.Fatalf("Get(missing) expected absent, got ok=%v err=%v", ok, err)
			}
			if err := kv.Set(ctx, "vendors", []byte(`[{"id":"1"}]`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, ok, err := kv.Get(ctx, "vendors")
			if err != nil || !ok {
				t.Fatalf("Get expected value, got ok=%v err=%v", ok, err)
			}
			if string(got) != `[{"id":"1"}]` {
				t.Fatalf("Get expected %s, got %s", `[{"id":"1"}]`, got)
			}
			if err := kv.Delete(ctx, "vendors"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := kv.Get(ctx, "vendors"); ok {
				t.Fatalf("Get after Delete expected absent")
			}
			// deleting again is not an error
			if err := kv.Delete(ctx, "vendors"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
		})
	}
}

func TestKVQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := kv.Set(ctx, "warehouses", []byte("small")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			err := kv.Set(ctx, "warehouses", bytes.Repeat([]byte("x"), 65))
			if !errors.Is(err, storage.ErrQuotaExceeded) {
				t.Fatalf("Set(oversized) expected ErrQuotaExceeded, got %v", err)
			}
			got, _, _ := kv.Get(ctx, "warehouses")
			if string(got) != "small" {
				t.Fatalf("value expected unchanged %q, got %q", "small", got)
			}
		})
	}
}

func TestKVRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../etc", "a/b", ".hidden"} {
				if err := kv.Set(ctx, key, []byte("x")); !errors.Is(err, storage.ErrInvalidKey) {
					t.Fatalf("Set(%q) expected ErrInvalidKey, got %v", key, err)
				}
			}
		})
	}
}

func TestKVChangesArriveInWriteOrder(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var (
				mu   sync.Mutex
				seen []string
			)
			cancel := kv.Subscribe(func(c storage.Change) {
				if c.Origin != kv.Origin() {
					t.Errorf("change origin expected %s, got %s", kv.Origin(), c.Origin)
				}
				mu.Lock()
				seen = append(seen, c.Key)
				mu.Unlock()
			})
			defer cancel()

			keys := []string{"vendors", "inventory-items", "warehouses", "stock-transactions"}
			for _, k := range keys {
				if err := kv.Set(ctx, k, []byte("[]")); err != nil {
					t.Fatalf("Set(%s): %v", k, err)
				}
			}

			deadline := time.Now().Add(2 * time.Second)
			for {
				mu.Lock()
				n := len(seen)
				mu.Unlock()
				if n == len(keys) || time.Now().After(deadline) {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			mu.Lock()
			defer mu.Unlock()
			if len(seen) != len(keys) {
				t.Fatalf("expected %d changes, got %v", len(keys), seen)
			}
			for i := range keys {
				if seen[i] != keys[i] {
					t.Fatalf("change %d expected %s, got %s", i, keys[i], seen[i])
				}
			}
		})
	}
}

func TestKVLockSerializes(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := kv.Lock(context.Background(), "vendors")
			if err != nil {
				t.Fatalf("Lock: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			if _, err := kv.Lock(ctx, "vendors"); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("second Lock expected deadline exceeded, got %v", err)
			}

			// other keys are independent
			unlockOther, err := kv.Lock(context.Background(), "warehouses")
			if err != nil {
				t.Fatalf("Lock(other): %v", err)
			}
			unlockOther()

			unlock()
			unlock() // second call is a no-op
			again, err := kv.Lock(context.Background(), "vendors")
			if err != nil {
				t.Fatalf("Lock after unlock: %v", err)
			}
			again()
		})
	}
}

func TestFileStoreWritesOneFilePerKey(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer fs.Close()

	if err := fs.Set(context.Background(), "procurement_documents", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "procurement_documents.json" {
		t.Fatalf("expected only procurement_documents.json, got %v", entries)
	}

	// a second store over the same directory sees the value
	other, err := storage.NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer other.Close()
	got, ok, err := other.Get(context.Background(), "procurement_documents")
	if err != nil || !ok || string(got) != "[]" {
		t.Fatalf("other.Get expected [], got %q ok=%v err=%v", got, ok, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "procurement_documents.json")); err != nil {
		t.Fatalf("Stat: %v", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))

	kv, err := storage.Open(context.Background(), &config.Settings{StoreDriver: config.StoreDriverMemory}, logger)
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	defer kv.Close()
	if err := kv.Set(context.Background(), "vendors", []byte("[]")); err != nil {
		t.Fatalf("Set through traced store: %v", err)
	}

	if _, err := storage.Open(context.Background(), &config.Settings{StoreDriver: "sqlite"}, logger); err == nil {
		t.Fatalf("Open(sqlite) expected error")
	}
}
