// Package models holds the case aggregate: the fact store of one landlord's
// questionnaire plus its append-only evidence records.
package models

import (
	"time"

	"leasepack/internal/facts"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
)

// EvidenceFile is one uploaded supporting file. Records are never edited or
// removed. Kind is empty when the question id mapped to no evidence kind.
type EvidenceFile struct {
	ID           domain.EvidenceID  `json:"id"`
	QuestionID   string             `json:"question_id"`
	Kind         facts.EvidenceKind `json:"kind,omitempty"`
	FileName     string             `json:"file_name"`
	StoragePath  string             `json:"storage_path"`
	Size         int64              `json:"size"`
	MimeType     string             `json:"mime_type"`
	Label        string             `json:"label,omitempty"`
	UploadedFrom string             `json:"uploaded_from,omitempty"`
	UploadedAt   time.Time          `json:"uploaded_at"`
}

// Case is the unit the questionnaire, checkout and orders hang off.
//
// Invariants:
//   - Facts only ever holds scalar, array or null values
//   - every evidence flag in Facts agrees with Evidence
//   - Version increases by one on every save
type Case struct {
	ID           domain.CaseID       `json:"id"`
	Jurisdiction domain.Jurisdiction `json:"jurisdiction,omitempty"`
	Facts        *facts.Store        `json:"facts"`
	Evidence     []EvidenceFile      `json:"evidence"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func NewCase(id domain.CaseID, jurisdiction domain.Jurisdiction, now time.Time) (*Case, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case id is required")
	}
	return &Case{
		ID:           id,
		Jurisdiction: jurisdiction,
		Facts:        facts.NewStore(),
		Evidence:     []EvidenceFile{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ReplaceFacts swaps in a new fact store. Stores are immutable values, so the
// previous one is left untouched.
func (c *Case) ReplaceFacts(store *facts.Store, now time.Time) {
	c.Facts = store
	c.UpdatedAt = now
}

// AppendEvidence adds records in upload order.
func (c *Case) AppendEvidence(files []EvidenceFile, now time.Time) {
	c.Evidence = append(c.Evidence, files...)
	c.UpdatedAt = now
}

// FileIDsByKind groups evidence ids for flag synchronisation.
func (c *Case) FileIDsByKind() map[facts.EvidenceKind][]string {
	out := make(map[facts.EvidenceKind][]string)
	for _, f := range c.Evidence {
		if f.Kind == "" {
			continue
		}
		out[f.Kind] = append(out[f.Kind], f.ID.String())
	}
	return out
}

// Clone returns a copy safe to mutate. The fact store is shared because it is
// never mutated in place.
func (c *Case) Clone() *Case {
	out := *c
	out.Evidence = append([]EvidenceFile(nil), c.Evidence...)
	return &out
}
