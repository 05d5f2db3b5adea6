// Package service owns the case aggregate: questionnaire answers written
// through the fact mapper and evidence uploads that keep the evidence flags in
// step with the file records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"leasepack/internal/blobstore"
	"leasepack/internal/cases/models"
	"leasepack/internal/facts"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/platform/sentinel"
	pstrings "leasepack/pkg/platform/strings"
	"leasepack/pkg/requestcontext"
)

// Store persists cases. Save must reject a stale Version with ErrConflict.
type Store interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, id domain.CaseID) (*models.Case, error)
	FindForUpdate(ctx context.Context, id domain.CaseID) (*models.Case, error)
	Save(ctx context.Context, c *models.Case) error
}

type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (blobstore.Object, error)
}

type Service struct {
	store   Store
	tx      CaseTx
	blobs   BlobStore
	mapper  *facts.Mapper
	mapping *EvidenceMapping
	logger  *slog.Logger
	clock   func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTx(tx CaseTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithMapper(m *facts.Mapper) Option {
	return func(s *Service) {
		s.mapper = m
	}
}

func WithEvidenceMapping(m *EvidenceMapping) Option {
	return func(s *Service) {
		s.mapping = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(store Store, blobs BlobStore, opts ...Option) (*Service, error) {
	if store == nil || blobs == nil {
		return nil, errors.New("cases service: store and blob store are required")
	}
	s := &Service{
		store:  store,
		blobs:  blobs,
		logger: slog.Default(),
		tx:     NewShardedTx(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mapper == nil {
		s.mapper = facts.NewMapper(facts.WithLogger(s.logger))
	}
	if s.mapping == nil {
		m, err := DefaultEvidenceMapping()
		if err != nil {
			return nil, err
		}
		s.mapping = m
	}
	return s, nil
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

// CreateCase starts an empty case. A known jurisdiction is also written as a
// fact so the normalizer sees it.
func (s *Service) CreateCase(ctx context.Context, jurisdiction domain.Jurisdiction) (*models.Case, error) {
	c, err := models.NewCase(domain.NewCaseID(), jurisdiction, s.now(ctx))
	if err != nil {
		return nil, err
	}
	if jurisdiction != "" {
		store, _ := s.mapper.ApplyValue(c.Facts, casefacts.KeyJurisdiction, facts.String(string(jurisdiction)))
		c.ReplaceFacts(store, c.CreatedAt)
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, translateStoreErr(err, "create case")
	}
	s.logger.InfoContext(ctx, "case created",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", c.ID,
		"jurisdiction", jurisdiction,
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id domain.CaseID) (*models.Case, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "load case")
	}
	return c, nil
}

// CaseFacts normalizes the stored facts. The case's own jurisdiction fills in
// when no answer set one.
func (s *Service) CaseFacts(ctx context.Context, id domain.CaseID) (casefacts.CaseFacts, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return casefacts.CaseFacts{}, err
	}
	cf := casefacts.Normalize(c.Facts)
	if cf.Jurisdiction == "" {
		cf.Jurisdiction = c.Jurisdiction
	}
	return cf, nil
}

// AnswerRequest writes one questionnaire answer to its destination paths.
type AnswerRequest struct {
	QuestionID string
	Paths      []string
	Answer     facts.Answer
}

type AnswerResult struct {
	CaseID      domain.CaseID      `json:"case_id"`
	Version     int                `json:"version"`
	Written     []string           `json:"written"`
	Diagnostics []facts.Diagnostic `json:"diagnostics"`
}

// reasonEvidenceOwned refuses answer writes to evidence facts; only uploads
// may set those.
const reasonEvidenceOwned = "evidence facts are set by uploads"

// SubmitAnswer applies an answer through the mapper. Refused writes come back
// as diagnostics; the rest of the answer is still saved.
func (s *Service) SubmitAnswer(ctx context.Context, id domain.CaseID, req AnswerRequest) (*AnswerResult, error) {
	requested := pstrings.DedupeAndTrim(req.Paths)
	if len(requested) == 0 {
		return nil, dErrors.WithDetails(dErrors.CodeValidation, "invalid answer", "paths must not be empty")
	}
	var (
		paths []string
		diags []facts.Diagnostic
	)
	for _, p := range requested {
		if strings.HasPrefix(p, "evidence.") {
			diags = append(diags, facts.Diagnostic{Path: p, Reason: reasonEvidenceOwned})
			continue
		}
		paths = append(paths, p)
	}

	var saved *models.Case
	err := s.tx.RunInTx(ctx, id, func(ctx context.Context) error {
		c, err := s.store.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		store, mapped := s.mapper.Apply(c.Facts, paths, req.Answer)
		diags = append(diags, mapped...)
		c.ReplaceFacts(store, s.now(ctx))
		if err := s.store.Save(ctx, c); err != nil {
			return err
		}
		saved = c
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "save answer")
	}

	refused := make(map[string]bool, len(diags))
	for _, d := range diags {
		refused[d.Path] = true
	}
	written := make([]string, 0, len(paths))
	for _, p := range paths {
		if !refused[p] {
			written = append(written, p)
		}
	}
	if diags == nil {
		diags = []facts.Diagnostic{}
	}
	s.logger.InfoContext(ctx, "answer saved",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", id,
		"question_id", req.QuestionID,
		"written", len(written),
		"discarded", len(diags),
	)
	return &AnswerResult{CaseID: id, Version: saved.Version, Written: written, Diagnostics: diags}, nil
}

// UploadFile is one file of an evidence submission.
type UploadFile struct {
	Name     string
	MimeType string
	Data     []byte
}

type EvidenceRequest struct {
	QuestionID string
	Label      string
	Files      []UploadFile
}

// EvidenceResult echoes the stored records and every evidence flag after the
// upload. Kind is empty when the question id is not mapped.
type EvidenceResult struct {
	CaseID     domain.CaseID               `json:"case_id"`
	QuestionID string                      `json:"question_id"`
	Kind       facts.EvidenceKind          `json:"kind,omitempty"`
	Inferred   bool                        `json:"inferred,omitempty"`
	Files      []models.EvidenceFile       `json:"files"`
	Flags      map[facts.EvidenceKind]bool `json:"flags"`
	Warnings   []string                    `json:"warnings,omitempty"`
}

func (r EvidenceRequest) validate() error {
	c := dErrors.Collector{}
	c.Add(strings.TrimSpace(r.QuestionID) == "", "question_id is required")
	c.Add(len(r.Files) == 0, "at least one file is required")
	for i, f := range r.Files {
		c.Add(len(f.Data) == 0, fmt.Sprintf("files[%d] is empty", i))
	}
	return c.Err("invalid evidence upload")
}

// UploadEvidence stores the files, appends their records and resyncs the
// evidence flags in one case transaction. An unmapped question id still stores
// the files but sets no flag.
func (s *Service) UploadEvidence(ctx context.Context, id domain.CaseID, req EvidenceRequest) (*EvidenceResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, translateStoreErr(err, "load case")
	}

	kind, inferred, ok := s.mapping.Resolve(req.QuestionID)
	result := &EvidenceResult{CaseID: id, QuestionID: req.QuestionID, Kind: kind, Inferred: inferred}
	if !ok {
		s.logger.WarnContext(ctx, "evidence question id has no mapping",
			"request_id", requestcontext.RequestID(ctx),
			"case_id", id,
			"question_id", req.QuestionID,
		)
		result.Warnings = append(result.Warnings, "question_id "+req.QuestionID+" does not map to an evidence kind; no flag was set")
	}

	now := s.now(ctx)
	from := describeClient(requestcontext.UserAgent(ctx))
	records := make([]models.EvidenceFile, 0, len(req.Files))
	for _, f := range req.Files {
		evidenceID := domain.NewEvidenceID()
		name := safeFileName(f.Name)
		mimeType := f.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		storagePath := fmt.Sprintf("cases/%s/evidence/%s/%s", id, evidenceID, name)
		obj, err := s.blobs.Put(ctx, storagePath, f.Data, mimeType)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "store evidence file")
		}
		records = append(records, models.EvidenceFile{
			ID:           evidenceID,
			QuestionID:   req.QuestionID,
			Kind:         kind,
			FileName:     name,
			StoragePath:  obj.Path,
			Size:         obj.Size,
			MimeType:     mimeType,
			Label:        strings.TrimSpace(req.Label),
			UploadedFrom: from,
			UploadedAt:   now,
		})
	}

	err := s.tx.RunInTx(ctx, id, func(ctx context.Context) error {
		c, err := s.store.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		c.AppendEvidence(records, now)
		c.ReplaceFacts(s.mapper.SyncEvidenceFlags(c.Facts, c.FileIDsByKind()), now)
		if err := s.store.Save(ctx, c); err != nil {
			return err
		}
		result.Flags = facts.EvidenceFlags(c.Facts)
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "save evidence")
	}
	result.Files = records

	s.logger.InfoContext(ctx, "evidence uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", id,
		"question_id", req.QuestionID,
		"kind", kind,
		"files", len(records),
		"client_ip", requestcontext.ClientIP(ctx),
	)
	return result, nil
}

// describeClient turns a User-Agent into a short label for the evidence
// record, such as "Firefox 128.0 on Linux x86_64".
func describeClient(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	if name == "" {
		return ""
	}
	label := strings.TrimSpace(name + " " + version)
	if platform := ua.OS(); platform != "" {
		label += " on " + platform
	}
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}

// safeFileName keeps only the base name so an upload cannot choose its own
// storage directory.
func safeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}

func translateStoreErr(err error, op string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "case was modified concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
