package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"leasepack/internal/compliance"
	"leasepack/internal/compliance/handler/mocks"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/compliance-mocks.go -package=mocks CaseReader
type ComplianceHandlerSuite struct {
	suite.Suite
	cases  *mocks.MockCaseReader
	router chi.Router
	caseID domain.CaseID
}

func TestComplianceHandlerSuite(t *testing.T) {
	suite.Run(t, new(ComplianceHandlerSuite))
}

func (s *ComplianceHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.cases = mocks.NewMockCaseReader(ctrl)

	now := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	engine, err := compliance.NewEngine(compliance.WithClock(func() time.Time { return now }))
	s.Require().NoError(err)

	h := New(engine, s.cases, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.caseID = domain.NewCaseID()
}

func (s *ComplianceHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ComplianceHandlerSuite) decode(rec *httptest.ResponseRecorder) compliance.Summary {
	return *testutil.UnmarshalResponse[compliance.Summary](s.T(), rec)
}

func (s *ComplianceHandlerSuite) TestWrongNoticeUploadReturnsTerminalSummary() {
	s.cases.EXPECT().CaseFacts(gomock.Any(), s.caseID).Return(casefacts.CaseFacts{Jurisdiction: domain.JurisdictionEngland}, nil)

	form6A := "FORM NO. 6A\nHousing Act 1988 section 21(1) and (4)\nNOTICE REQUIRING POSSESSION\nSigned: [Signed]"
	req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/cases/"+s.caseID.String()+"/compliance/documents",
		map[string]string{"expected": "section_8"},
		testutil.MultipartFile{Field: "file", FileName: "notice.txt", ContentType: "text/plain", Data: []byte(form6A)},
	)
	rec := s.serve(req)

	s.Equal(http.StatusOK, rec.Code)
	summary := s.decode(rec)
	s.Equal(compliance.StatusInvalid, summary.Status)
	s.True(summary.TerminalBlocker)
	s.Require().Len(summary.Blockers, 1)
	s.Equal("S8-WRONG-DOC-TYPE", summary.Blockers[0].Code)
	s.Empty(summary.NextQuestions)

	testutil.AssertJSONHasKey(s.T(), rec, "terminal_blocker")
	var raw map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &raw))
	s.Equal([]any{}, raw["next_questions"])
	s.Equal([]any{}, raw["recommendations"])
}

func (s *ComplianceHandlerSuite) TestUploadRejectsUnknownExpectedType() {
	s.cases.EXPECT().CaseFacts(gomock.Any(), s.caseID).Return(casefacts.CaseFacts{}, nil)

	req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/cases/"+s.caseID.String()+"/compliance/documents",
		map[string]string{"expected": "form_99"},
		testutil.MultipartFile{Field: "file", FileName: "n.txt", ContentType: "text/plain", Data: []byte("a b c")},
	)
	rec := s.serve(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_error", testutil.UnmarshalErrorResponse(s.T(), rec)["error"])
}

func (s *ComplianceHandlerSuite) TestEvaluateCase() {
	cf := casefacts.CaseFacts{Jurisdiction: domain.JurisdictionEngland}
	s.cases.EXPECT().CaseFacts(gomock.Any(), s.caseID).Return(cf, nil)

	req := httptest.NewRequest(http.MethodGet, "/cases/"+s.caseID.String()+"/compliance?product=notice_only", nil)
	rec := s.serve(req)

	s.Equal(http.StatusOK, rec.Code)
	summary := s.decode(rec)
	s.Equal(compliance.StatusNeedsInfo, summary.Status)
	s.NotEmpty(summary.NextQuestions)
}

func (s *ComplianceHandlerSuite) TestEvaluateCaseErrors() {
	s.Run("bad case id", func() {
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/cases/not-a-uuid/compliance?product=notice_only", nil))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("unknown case", func() {
		s.cases.EXPECT().CaseFacts(gomock.Any(), s.caseID).Return(casefacts.CaseFacts{}, dErrors.New(dErrors.CodeNotFound, "case not found"))
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/cases/"+s.caseID.String()+"/compliance?product=notice_only", nil))
		s.Equal(http.StatusNotFound, rec.Code)
	})
	s.Run("unknown product", func() {
		s.cases.EXPECT().CaseFacts(gomock.Any(), s.caseID).Return(casefacts.CaseFacts{Jurisdiction: domain.JurisdictionEngland}, nil)
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/cases/"+s.caseID.String()+"/compliance?product=castle", nil))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("no jurisdiction", func() {
		s.cases.EXPECT().CaseFacts(gomock.Any(), s.caseID).Return(casefacts.CaseFacts{}, nil)
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/cases/"+s.caseID.String()+"/compliance?product=notice_only", nil))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

