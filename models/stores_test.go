package models_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newStores(t *testing.T, kv storage.KV, opts models.StoreOptions) *models.Stores {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	stores, err := models.NewStores(context.Background(), kv, opts)
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	t.Cleanup(stores.Close)
	return stores
}

func memoryStores(t *testing.T) *models.Stores {
	t.Helper()
	kv := storage.NewMemoryStore(0)
	t.Cleanup(func() { _ = kv.Close() })
	return newStores(t, kv, models.StoreOptions{})
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []config.PubSubMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg config.PubSubMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		out = append(out, m.ReferenceType+":"+m.Action)
	}
	return out
}

func TestPersistenceFailureLeavesCollectionUnchanged(t *testing.T) {
	kv := storage.NewMemoryStore(1) // every non-trivial write exceeds the quota
	defer kv.Close()
	stores := newStores(t, kv, models.StoreOptions{})

	_, err := stores.Vendors.Add(context.Background(), validVendor())
	if !errors.Is(err, utils.ErrPersistence) {
		t.Fatalf("Add expected ErrPersistence, got %v", err)
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		t.Fatalf("Add expected the quota cause to be kept, got %v", err)
	}
	var perr *utils.PersistenceError
	if !errors.As(err, &perr) || perr.Key != models.KeyVendors {
		t.Fatalf("expected *PersistenceError for %s, got %v", models.KeyVendors, err)
	}
	if n := stores.Vendors.Len(); n != 0 {
		t.Fatalf("expected no vendors after failed write, got %d", n)
	}
}

func TestStoresFollowWritesFromAnotherInstance(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	defer kv.Close()
	first := newStores(t, kv, models.StoreOptions{})
	second := newStores(t, kv, models.StoreOptions{})

	var (
		mu       sync.Mutex
		notified int
	)
	cancel := second.Vendors.Subscribe(func(vendors []models.Vendor) {
		mu.Lock()
		notified = len(vendors)
		mu.Unlock()
	})
	defer cancel()

	added, err := first.Vendors.Add(context.Background(), validVendor())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitFor(t, "second instance to see the vendor", func() bool {
		_, ok := second.Vendors.Get(added.Id)
		return ok
	})
	waitFor(t, "subscriber notification", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return notified == 1
	})

	// and the other way round, without losing the first write
	if _, err := second.Vendors.QuickAdd(context.Background(), models.QuickAddVendor{
		Name: "Bolt Traders", GstNumber: "29BBBBB1111B1Z6", Phone: "9123456780", ContactPerson: "Ravi",
	}); err != nil {
		t.Fatalf("QuickAdd: %v", err)
	}
	waitFor(t, "first instance to see both vendors", func() bool { return first.Vendors.Len() == 2 })
}

func TestMutationsArePublished(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	defer kv.Close()
	pub := &recordingPublisher{}
	stores := newStores(t, kv, models.StoreOptions{Publisher: pub})
	ctx := context.Background()

	v, err := stores.Vendors.Add(ctx, validVendor())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, _, err := stores.Vendors.Update(ctx, v.Id, map[string]any{"address": "Pune"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := stores.Vendors.Delete(ctx, v.Id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := pub.actions()
	want := []string{"vendor:create", "vendor:update", "vendor:delete"}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFileBackedStoresSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	stores := newStores(t, kv, models.StoreOptions{})
	v, err := stores.Vendors.Add(context.Background(), validVendor())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	stores.Close()
	_ = kv.Close()

	reopened, err := storage.NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer reopened.Close()
	again := newStores(t, reopened, models.StoreOptions{})
	got, ok := again.Vendors.Get(v.Id)
	if !ok {
		t.Fatalf("vendor %s missing after restart", v.Id)
	}
	if got.Name != v.Name || got.GstNumber != v.GstNumber {
		t.Fatalf("expected %s/%s, got %s/%s", v.Name, v.GstNumber, got.Name, got.GstNumber)
	}
}
