package procurement_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/procurement"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
)

type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads []string
	failGet error
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte)}
}

func (b *memoryBucket) Bucket() string { return "mrp-docs" }

func (b *memoryBucket) Upload(_ context.Context, objectName string, data []byte, contentType string, _ map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if contentType != "application/pdf" {
		return errors.New("unexpected content type " + contentType)
	}
	b.objects[objectName] = data
	b.uploads = append(b.uploads, objectName)
	return nil
}

func (b *memoryBucket) Exists(_ context.Context, objectName string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet != nil {
		return false, b.failGet
	}
	_, ok := b.objects[objectName]
	return ok, nil
}

func testSigningKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

func archivingPipeline(t *testing.T, archiver procurement.Archiver) *procurement.Pipeline {
	t.Helper()
	kv := storage.NewMemoryStore(0)
	t.Cleanup(func() { _ = kv.Close() })
	return procurement.NewPipeline(newRepository(t, kv, archiver), quietLogger())
}

func TestArchiveIsNamedLikeTheDownload(t *testing.T) {
	bucket := newMemoryBucket()
	archiver := procurement.NewGCSArchiver(bucket, procurement.ArchiverOptions{})
	doc, rec := submit(t, archivingPipeline(t, archiver), procurement.DocumentTypePO, poValues())

	if !rec.Timestamp.Equal(doc.GeneratedAt) {
		t.Fatalf("record timestamp expected %s, got %s", doc.GeneratedAt, rec.Timestamp)
	}
	want := "procurement/PO/" + doc.DownloadName()
	if len(bucket.uploads) != 1 || bucket.uploads[0] != want {
		t.Fatalf("uploads expected [%s], got %v", want, bucket.uploads)
	}
	if got := archiver.ObjectName(rec); got != want {
		t.Fatalf("ObjectName expected %s, got %s", want, got)
	}
	archived, err := archiver.Archived(context.Background(), rec)
	if err != nil || !archived {
		t.Fatalf("Archived expected true, got %v (%v)", archived, err)
	}
}

func TestArchiveSkipsObjectsAlreadyStored(t *testing.T) {
	bucket := newMemoryBucket()
	archiver := procurement.NewGCSArchiver(bucket, procurement.ArchiverOptions{Prefix: "docs"})
	_, rec := submit(t, archivingPipeline(t, archiver), procurement.DocumentTypePO, poValues())
	content, err := rec.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	if err := archiver.Archive(context.Background(), rec, content); err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	if len(bucket.uploads) != 1 {
		t.Fatalf("expected a single upload, got %v", bucket.uploads)
	}
	if !strings.HasPrefix(bucket.uploads[0], "docs/PO/Purchase_Order_") {
		t.Fatalf("object name expected docs/PO/Purchase_Order_*, got %s", bucket.uploads[0])
	}

	bucket.failGet = errors.New("bucket unreachable")
	if err := archiver.Archive(context.Background(), rec, content); err == nil {
		t.Fatalf("Archive with a failing existence check expected error")
	}
}

func TestArchiveURLs(t *testing.T) {
	bucket := newMemoryBucket()
	key := testSigningKey(t)
	signer, err := utils.NewURLSigner(context.Background(), utils.SignerCredentials{Email: "docs@mrp.iam.gserviceaccount.com", PrivateKey: key})
	if err != nil {
		t.Fatalf("NewURLSigner: %v", err)
	}
	archiver := procurement.NewGCSArchiver(bucket, procurement.ArchiverOptions{
		AccessBaseURL: "https://files.example.com/",
		Signer:        signer,
	})
	_, rec := submit(t, archivingPipeline(t, archiver), procurement.DocumentTypePO, poValues())

	if got, want := archiver.AccessURL(rec), "https://files.example.com/"+archiver.ObjectName(rec); got != want {
		t.Fatalf("AccessURL expected %s, got %s", want, got)
	}

	link, err := archiver.DownloadURL(rec, 15*time.Minute)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	for _, part := range []string{"https://storage.googleapis.com/mrp-docs/procurement/PO/", "X-Goog-Algorithm=GOOG4-RSA-SHA256", "X-Goog-Signature="} {
		if !strings.Contains(link, part) {
			t.Fatalf("signed url expected to contain %s, got %s", part, link)
		}
	}
	if _, err := archiver.DownloadURL(rec, 0); err == nil {
		t.Fatalf("zero lifetime expected error")
	}

	unsigned := procurement.NewGCSArchiver(bucket, procurement.ArchiverOptions{})
	if _, err := unsigned.DownloadURL(rec, time.Minute); err == nil {
		t.Fatalf("DownloadURL without a signer expected error")
	}
}

func TestURLSignerCredentials(t *testing.T) {
	key := testSigningKey(t)
	raw, _ := json.Marshal(map[string]string{"client_email": "json@mrp.iam.gserviceaccount.com", "private_key": key})
	signer, err := utils.NewURLSigner(context.Background(), utils.SignerCredentials{ServiceAccountJSON: string(raw)})
	if err != nil {
		t.Fatalf("NewURLSigner(json): %v", err)
	}
	if signer.AccessID() != "json@mrp.iam.gserviceaccount.com" {
		t.Fatalf("access id expected the json client_email, got %s", signer.AccessID())
	}

	for _, bad := range []string{`{"client_email": "x@y"`, `{"client_email": "x@y"}`} {
		if _, err := utils.NewURLSigner(context.Background(), utils.SignerCredentials{ServiceAccountJSON: bad}); err == nil {
			t.Fatalf("NewURLSigner(%s) expected error", bad)
		}
	}
}
