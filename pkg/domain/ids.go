package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "leasepack/pkg/domain-errors"
)

// Typed identifiers. Each is a distinct named UUID type so a case id can never be
// passed where an order id is expected.
type (
	CaseID     uuid.UUID
	OrderID    uuid.UUID
	DocumentID uuid.UUID
	EvidenceID uuid.UUID
)

// maxIDLength rejects oversized input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID("case_id", s)
	return CaseID(u), err
}

func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID("order_id", s)
	return OrderID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document_id", s)
	return DocumentID(u), err
}

func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID("evidence_id", s)
	return EvidenceID(u), err
}

func NewCaseID() CaseID         { return CaseID(uuid.New()) }
func NewOrderID() OrderID       { return OrderID(uuid.New()) }
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

func (id CaseID) String() string     { return uuid.UUID(id).String() }
func (id OrderID) String() string    { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }
func (id EvidenceID) String() string { return uuid.UUID(id).String() }

func (id CaseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id CaseID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id OrderID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EvidenceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CaseID) UnmarshalText(b []byte) error {
	u, err := parseUUID("case_id", string(b))
	*id = CaseID(u)
	return err
}

func (id *OrderID) UnmarshalText(b []byte) error {
	u, err := parseUUID("order_id", string(b))
	*id = OrderID(u)
	return err
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	u, err := parseUUID("document_id", string(b))
	*id = DocumentID(u)
	return err
}

func (id *EvidenceID) UnmarshalText(b []byte) error {
	u, err := parseUUID("evidence_id", string(b))
	*id = EvidenceID(u)
	return err
}
