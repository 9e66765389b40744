package procurement

import (
	"context"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/sirupsen/logrus"
)

// Pipeline ties the form schemas, the generator and the repository together.
type Pipeline struct {
	repo   *Repository
	logger *logrus.Logger
	now    func() time.Time
}

func NewPipeline(repo *Repository, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Pipeline{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (p *Pipeline) Repository() *Repository { return p.repo }

// State is Generated once a document of t is stored, Empty otherwise.
func (p *Pipeline) State(t DocumentType) DraftState {
	if _, ok := p.repo.Get(t); ok {
		return StateGenerated
	}
	return StateEmpty
}

// NewDraft starts a form for t, prefilled from the stored document of the previous stage:
// every field both schemas share is copied, so a PO draft carries the LOI number and vendor.
func (p *Pipeline) NewDraft(t DocumentType) (*Draft, error) {
	d, err := NewDraft(t)
	if err != nil {
		return nil, err
	}
	prev, ok := t.Previous()
	if !ok {
		return d, nil
	}
	rec, ok := p.repo.Get(prev)
	if !ok {
		return d, nil
	}
	for _, f := range d.schema.Fields {
		if v, ok := rec.FormData[f.Name]; ok && v != "" && f.Name != "date" {
			d.values[f.Name] = v
		}
	}
	return d, nil
}

// Submit is the Drafting → Generated transition: check, render, replace the stored record of the type.
func (p *Pipeline) Submit(ctx context.Context, d *Draft) (*Document, Record, error) {
	if err := d.Check(); err != nil {
		return nil, Record{}, err
	}
	doc, err := Generate(d.schema, d.Values(), p.now())
	if err != nil {
		config.LogError(p.logger, "procurement", "Pipeline.Submit", string(d.Type()), nil, err)
		return nil, Record{}, err
	}
	rec, err := p.repo.Save(ctx, doc)
	if err != nil {
		return nil, Record{}, err
	}
	d.markGenerated()

	p.logger.WithFields(logrus.Fields{
		"type":  doc.Type,
		"pages": doc.Pages,
		"bytes": len(doc.Bytes),
	}).Info("document generated")
	return doc, rec, nil
}
