package procurement

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
)

// ObjectStore is the bucket the archive writes to. utils.GCSBucket is the production one.
type ObjectStore interface {
	Bucket() string
	Upload(ctx context.Context, objectName string, data []byte, contentType string, metadata map[string]string) error
	Exists(ctx context.Context, objectName string) (bool, error)
}

type ArchiverOptions struct {
	// Prefix of every object name, "procurement" when empty.
	Prefix string
	// AccessBaseURL overrides the public bucket url (STORAGE_ACCESS_BASE_URL).
	AccessBaseURL string
	// Signer issues download links; DownloadURL fails without one.
	Signer *utils.URLSigner
}

// GCSArchiver writes every saved document to a bucket under <prefix>/<type>/<download name>.
type GCSArchiver struct {
	objects ObjectStore
	opts    ArchiverOptions
}

func NewGCSArchiver(objects ObjectStore, opts ArchiverOptions) *GCSArchiver {
	if opts.Prefix == "" {
		opts.Prefix = "procurement"
	}
	return &GCSArchiver{objects: objects, opts: opts}
}

func (a *GCSArchiver) ObjectName(rec Record) string {
	return path.Join(a.opts.Prefix, string(rec.Type), DownloadName(rec.Title, rec.Timestamp))
}

// Archive uploads rec unless the bucket already holds it. Object names are derived from the
// generation time, so a re-save of the same document is not uploaded twice.
func (a *GCSArchiver) Archive(ctx context.Context, rec Record, content []byte) error {
	object := a.ObjectName(rec)
	exists, err := a.Archived(ctx, rec)
	if err != nil {
		return fmt.Errorf("archive %s: %w", object, err)
	}
	if exists {
		return nil
	}
	metadata := map[string]string{
		"type":      string(rec.Type),
		"title":     rec.Title,
		"timestamp": strconv.FormatInt(rec.Timestamp.UnixMilli(), 10),
	}
	if err := a.objects.Upload(ctx, object, content, "application/pdf", metadata); err != nil {
		return fmt.Errorf("archive %s: %w", object, err)
	}
	return nil
}

// Archived reports whether rec already has a copy in the bucket.
func (a *GCSArchiver) Archived(ctx context.Context, rec Record) (bool, error) {
	return a.objects.Exists(ctx, a.ObjectName(rec))
}

// DownloadURL is a signed, expiring link to the archived copy of rec.
func (a *GCSArchiver) DownloadURL(rec Record, expires time.Duration) (string, error) {
	if a.opts.Signer == nil {
		return "", errors.New("no url signer configured")
	}
	return a.opts.Signer.SignedGetURL(a.objects.Bucket(), a.ObjectName(rec), expires)
}

func (a *GCSArchiver) AccessURL(rec Record) string {
	return utils.ObjectAccessURL(a.opts.AccessBaseURL, a.objects.Bucket(), a.ObjectName(rec))
}
