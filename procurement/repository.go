package procurement

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/sirupsen/logrus"
)

const KeyProcurementDocuments = "procurement_documents"

const pdfDataURLPrefix = "data:application/pdf;base64,"

// Record is the stored form of the latest document of one type.
type Record struct {
	Type      DocumentType      `json:"type"`
	Title     string            `json:"title"`
	Timestamp time.Time         `json:"timestamp"`
	Data      string            `json:"data"`
	FormData  map[string]string `json:"formData"`
}

func (r Record) GetId() string { return string(r.Type) }

func (r Record) WithId(id string) Record {
	r.Type = DocumentType(id)
	return r
}

func (r Record) Normalized() Record {
	r.Type = DocumentType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	r.Title = strings.TrimSpace(r.Title)
	return r
}

func (r Record) Validate() error {
	if _, ok := SchemaFor(r.Type); !ok {
		return utils.NewValidationError("type", "must be one of: OPS, PR, LOI, PO, GRN")
	}
	if !strings.HasPrefix(r.Data, pdfDataURLPrefix) {
		return utils.NewValidationError("data", "must be a PDF data URL")
	}
	return nil
}

// Bytes decodes the stored document.
func (r Record) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(r.Data, pdfDataURLPrefix))
}

// Archiver keeps a durable copy of each saved document.
type Archiver interface {
	Archive(ctx context.Context, rec Record, content []byte) error
}

// Repository holds at most one record per document type. Saving a type replaces its record.
type Repository struct {
	records  *models.Collection[Record]
	archiver Archiver
	logger   *logrus.Logger
}

type RepositoryOptions struct {
	Logger    *logrus.Logger
	Publisher config.EventPublisher
	Archiver  Archiver
}

func NewRepository(ctx context.Context, kv storage.KV, opts RepositoryOptions) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	records, err := models.OpenCollection(ctx, kv, KeyProcurementDocuments, models.CollectionOptions[Record]{
		Logger:        logger,
		Publisher:     opts.Publisher,
		ReferenceType: "procurement_document",
	})
	if err != nil {
		return nil, err
	}
	return &Repository{records: records, archiver: opts.Archiver, logger: logger}, nil
}

// Save replaces the record of doc's type, stamped with its generation time.
// An archive failure is logged and does not undo the save.
func (r *Repository) Save(ctx context.Context, doc *Document) (Record, error) {
	t, title := doc.Type, doc.Title
	at := doc.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	content := doc.Bytes
	rec := Record{
		Type:      t,
		Title:     title,
		Timestamp: at.UTC(),
		Data:      pdfDataURLPrefix + base64.StdEncoding.EncodeToString(content),
		FormData:  doc.FormData,
	}
	saved, err := r.records.Put(ctx, rec)
	if err != nil {
		var ve *utils.ValidationError
		if !errors.As(err, &ve) {
			config.LogError(r.logger, "procurement", "Repository.Save", string(t), title, err)
		}
		return Record{}, err
	}
	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, saved, content); err != nil {
			config.LogError(r.logger, "procurement", "Repository.Save", "archive", string(t), err)
		}
	}
	return saved, nil
}

// Get returns the current record of t.
func (r *Repository) Get(t DocumentType) (Record, bool) {
	return r.records.Get(string(t))
}

func (r *Repository) List() []Record {
	return r.records.List()
}

func (r *Repository) Delete(ctx context.Context, t DocumentType) (bool, error) {
	return r.records.Delete(ctx, string(t))
}

// Subscribe pushes the record list after every change, including writes by other instances.
func (r *Repository) Subscribe(fn func([]Record)) (cancel func()) {
	return r.records.Subscribe(fn)
}

func (r *Repository) Close() { r.records.Close() }

// MustGet is Get with ErrorRecordNotFound.
func (r *Repository) MustGet(t DocumentType) (Record, error) {
	rec, ok := r.Get(t)
	if !ok {
		return Record{}, fmt.Errorf("%s document: %w", t, utils.ErrorRecordNotFound)
	}
	return rec, nil
}
