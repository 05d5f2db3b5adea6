// Package pack turns canonical case facts into the ordered documents of a
// product. Generation is a pure function of facts, product and jurisdiction.
package pack

import (
	"context"

	"leasepack/internal/compliance"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

// Category groups documents on the dashboard and in the ledger.
type Category string

const (
	CategoryNotice    Category = "notice"
	CategoryCourt     Category = "court"
	CategoryEvidence  Category = "evidence"
	CategoryLetter    Category = "letter"
	CategoryAgreement Category = "agreement"
	CategorySchedule  Category = "schedule"
)

// Document is one rendered entry of a pack. Data is nil when an optional
// document failed to render; callers skip it.
type Document struct {
	Number   int
	Key      string
	Title    string
	Category Category
	FileName string
	MimeType string
	Data     []byte
	Optional bool
}

// Skipped reports whether the document has nothing to upload.
func (d Document) Skipped() bool {
	return d.Data == nil
}

// Pack is the ordered output of one generation.
type Pack struct {
	Product      domain.ProductType
	Jurisdiction domain.Jurisdiction
	Documents    []Document
}

// Rendered returns the documents that carry bytes.
func (p *Pack) Rendered() []Document {
	out := make([]Document, 0, len(p.Documents))
	for _, d := range p.Documents {
		if !d.Skipped() {
			out = append(out, d)
		}
	}
	return out
}

// Spec plans one document before rendering.
type Spec struct {
	Key      string
	Title    string
	Category Category
	Template string
	Optional bool
}

// Input is what a generator sees.
type Input struct {
	Facts        casefacts.CaseFacts
	Jurisdiction domain.Jurisdiction
	Rules        *compliance.Rules
}

// GeneratorFunc plans the documents of one product family. It fails with a
// *MissingFactError when a required fact is absent.
type GeneratorFunc func(in Input) ([]Spec, error)

// Renderer turns a named template and view into document bytes.
type Renderer interface {
	Render(ctx context.Context, template string, view any) ([]byte, error)
	MimeType() string
	Extension() string
}
