package models

import (
	"time"

	"leasepack/pkg/domain"
)

// Document is a ledger row for one persisted file. Bytes live in blob storage;
// the row only references them.
type Document struct {
	ID               domain.DocumentID `json:"id"`
	OrderID          domain.OrderID    `json:"order_id"`
	CaseID           domain.CaseID     `json:"case_id"`
	DocType          string            `json:"doc_type"`
	Title            string            `json:"title"`
	Category         string            `json:"category"`
	Sequence         int               `json:"sequence"`
	FileName         string            `json:"file_name"`
	MimeType         string            `json:"mime_type"`
	StorageBucket    string            `json:"storage_bucket"`
	StoragePath      string            `json:"storage_path"`
	PublicURL        string            `json:"public_url,omitempty"`
	SizeBytes        int64             `json:"size_bytes"`
	IsFinal          bool              `json:"is_final"`
	CompliancePassed bool              `json:"compliance_passed"`
	ComplianceNotes  []string          `json:"compliance_notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
