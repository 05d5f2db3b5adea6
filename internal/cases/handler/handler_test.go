package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"leasepack/internal/blobstore"
	"leasepack/internal/cases/handler/mocks"
	"leasepack/internal/cases/models"
	"leasepack/internal/cases/service"
	casestore "leasepack/internal/cases/store"
	"leasepack/internal/facts"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/cases-mocks.go -package=mocks Service
type CasesHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
	caseID domain.CaseID
}

func TestCasesHandlerSuite(t *testing.T) {
	suite.Run(t, new(CasesHandlerSuite))
}

func (s *CasesHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	h := New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.caseID = domain.NewCaseID()
}

func (s *CasesHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *CasesHandlerSuite) evidencePath() string {
	return "/cases/" + s.caseID.String() + "/evidence"
}

func (s *CasesHandlerSuite) TestCreateCase() {
	c, err := models.NewCase(s.caseID, domain.JurisdictionScotland, time.Now())
	s.Require().NoError(err)
	s.svc.EXPECT().CreateCase(gomock.Any(), domain.JurisdictionScotland).Return(c, nil)

	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases", map[string]string{"jurisdiction": "scotland"}))

	s.Equal(http.StatusCreated, rec.Code)
	testutil.AssertJSONContains(s.T(), rec, "id", s.caseID.String())
}

func (s *CasesHandlerSuite) TestCreateCaseRejectsUnknownJurisdiction() {
	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases", map[string]string{"jurisdiction": "atlantis"}))

	testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeValidation))
	s.Equal([]any{"jurisdiction is invalid"}, testutil.UnmarshalErrorResponse(s.T(), rec)["details"])
}

func (s *CasesHandlerSuite) TestGetCaseNotFound() {
	s.svc.EXPECT().Get(gomock.Any(), s.caseID).Return(nil, dErrors.New(dErrors.CodeNotFound, "case not found"))

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/cases/"+s.caseID.String(), nil))

	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func (s *CasesHandlerSuite) TestGetCaseRejectsBadID() {
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/cases/not-a-uuid", nil))

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *CasesHandlerSuite) TestSubmitAnswerDecodesTaggedAnswer() {
	s.svc.EXPECT().SubmitAnswer(gomock.Any(), s.caseID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.CaseID, req service.AnswerRequest) (*service.AnswerResult, error) {
			obj, ok := req.Answer.(facts.AnswerObject)
			s.Require().True(ok)
			s.Equal("Leeds", obj.Fields["city"])
			s.Equal([]string{"property.town"}, req.Paths)
			return &service.AnswerResult{CaseID: s.caseID, Version: 2, Written: req.Paths, Diagnostics: []facts.Diagnostic{}}, nil
		})

	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+s.caseID.String()+"/answers", map[string]any{
		"question_id": "property_address",
		"paths":       []string{"property.town"},
		"answer":      map[string]string{"city": "Leeds"},
	}))

	s.Equal(http.StatusOK, rec.Code)
	testutil.AssertJSONContains(s.T(), rec, "version", float64(2))
}

func (s *CasesHandlerSuite) TestSubmitAnswerValidation() {
	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+s.caseID.String()+"/answers", map[string]any{
		"question_id": "rent",
	}))

	testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeValidation))
	s.Equal([]any{"paths must not be empty"}, testutil.UnmarshalErrorResponse(s.T(), rec)["details"])
}

func (s *CasesHandlerSuite) TestUploadEvidencePassesFilesThrough() {
	s.svc.EXPECT().UploadEvidence(gomock.Any(), s.caseID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.CaseID, req service.EvidenceRequest) (*service.EvidenceResult, error) {
			s.Equal("epc_upload", req.QuestionID)
			s.Equal("2024 certificate", req.Label)
			s.Require().Len(req.Files, 2)
			s.Equal("epc.pdf", req.Files[0].Name)
			s.Equal("application/pdf", req.Files[0].MimeType)
			s.Equal([]byte("%PDF-1.4"), req.Files[0].Data)
			return &service.EvidenceResult{
				CaseID:     s.caseID,
				QuestionID: req.QuestionID,
				Kind:       facts.EvidenceEPC,
				Files:      []models.EvidenceFile{},
				Flags:      map[facts.EvidenceKind]bool{facts.EvidenceEPC: true},
			}, nil
		})

	req := testutil.NewMultipartRequest(s.T(), http.MethodPost, s.evidencePath(),
		map[string]string{"question_id": "epc_upload", "label": "2024 certificate", "case_id": s.caseID.String()},
		testutil.MultipartFile{Field: "files", FileName: "epc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		testutil.MultipartFile{Field: "files", FileName: "epc-page2.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	)
	rec := s.serve(req)

	s.Equal(http.StatusCreated, rec.Code)
	testutil.AssertJSONContains(s.T(), rec, "kind", "epc")
}

func (s *CasesHandlerSuite) TestUploadEvidenceRejectsMismatchedCaseID() {
	req := testutil.NewMultipartRequest(s.T(), http.MethodPost, s.evidencePath(),
		map[string]string{"question_id": "epc_upload", "case_id": domain.NewCaseID().String()},
		testutil.MultipartFile{Field: "files", FileName: "epc.pdf", Data: []byte("x")},
	)
	rec := s.serve(req)

	testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeValidation))
	s.Equal([]any{"case_id does not match the path"}, testutil.UnmarshalErrorResponse(s.T(), rec)["details"])
}

func (s *CasesHandlerSuite) TestUploadEvidenceRequiresMultipart() {
	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, s.evidencePath(), map[string]string{"question_id": "x"}))

	testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *CasesHandlerSuite) TestUploadEvidenceServiceUnavailable() {
	s.svc.EXPECT().UploadEvidence(gomock.Any(), s.caseID, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "store evidence file"))

	req := testutil.NewMultipartRequest(s.T(), http.MethodPost, s.evidencePath(),
		map[string]string{"question_id": "epc_upload"},
		testutil.MultipartFile{Field: "files", FileName: "epc.pdf", Data: []byte("x")},
	)
	rec := s.serve(req)

	testutil.AssertStatusAndError(s.T(), rec, http.StatusServiceUnavailable, string(dErrors.CodeUnavailable))
}

// The full upload path against the in-memory store: the response carries the
// records and the flag that the upload turned on.
func TestUploadEvidenceEndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(casestore.NewInMemory(), blobstore.NewMemory("evidence", ""), service.WithLogger(logger))
	require.NoError(t, err)
	router := chi.NewRouter()
	New(svc, logger).Register(router)

	c, err := svc.CreateCase(context.Background(), domain.JurisdictionEngland)
	require.NoError(t, err)

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/cases/"+c.ID.String()+"/evidence",
		map[string]string{"question_id": "tenancy_agreement_upload"},
		testutil.MultipartFile{Field: "files", FileName: "ast.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7 lease")},
	)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	rec := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res service.EvidenceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Files, 1)
	require.True(t, res.Flags[facts.EvidenceTenancyAgreement])
	require.Equal(t, int64(len("%PDF-1.7 lease")), res.Files[0].Size)

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, got.Facts.TextList(facts.EvidenceTenancyAgreement.FilesKey()), 1)
}
