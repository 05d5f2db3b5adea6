// Package handler exposes case creation, questionnaire answers and evidence
// uploads over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"leasepack/internal/cases/models"
	"leasepack/internal/cases/service"
	"leasepack/internal/facts"
	"leasepack/internal/platform/middleware"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/platform/httputil"
)

const (
	maxEvidenceFileBytes = 10 << 20
	maxEvidenceFiles     = 10
	// maxEvidenceBody leaves room for every file at its limit plus form overhead.
	maxEvidenceBody = maxEvidenceFiles*maxEvidenceFileBytes + 1<<20
)

// Service is the case surface the handler drives.
type Service interface {
	CreateCase(ctx context.Context, jurisdiction domain.Jurisdiction) (*models.Case, error)
	Get(ctx context.Context, id domain.CaseID) (*models.Case, error)
	SubmitAnswer(ctx context.Context, id domain.CaseID, req service.AnswerRequest) (*service.AnswerResult, error)
	UploadEvidence(ctx context.Context, id domain.CaseID, req service.EvidenceRequest) (*service.EvidenceResult, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/cases", h.handleCreateCase)
	r.Get("/cases/{caseID}", h.handleGetCase)
	r.Post("/cases/{caseID}/answers", h.handleSubmitAnswer)
	r.Post("/cases/{caseID}/evidence", h.handleUploadEvidence)
}

type createCaseRequest struct {
	Jurisdiction string `json:"jurisdiction"`

	jurisdiction domain.Jurisdiction
}

func (r *createCaseRequest) Validate() error {
	if r.Jurisdiction == "" {
		return nil
	}
	j, err := domain.ParseJurisdiction(r.Jurisdiction)
	if err != nil {
		return dErrors.WithDetails(dErrors.CodeValidation, "invalid case request", "jurisdiction is invalid")
	}
	r.jurisdiction = j
	return nil
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createCaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.svc.CreateCase(ctx, req.jurisdiction)
	if err != nil {
		h.writeServiceError(w, r, err, "create case")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Get(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, r, err, "load case")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

type answerRequest struct {
	QuestionID string          `json:"question_id"`
	Paths      []string        `json:"paths"`
	Answer     json.RawMessage `json:"answer"`

	answer facts.Answer
}

func (r *answerRequest) Validate() error {
	r.QuestionID = strings.TrimSpace(r.QuestionID)
	c := dErrors.Collector{}
	c.Add(len(r.Paths) == 0, "paths must not be empty")
	answer, err := facts.ParseAnswer(r.Answer)
	c.Add(err != nil, "answer is not valid JSON")
	r.answer = answer
	return c.Err("invalid answer")
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[answerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.svc.SubmitAnswer(ctx, caseID, service.AnswerRequest{
		QuestionID: req.QuestionID,
		Paths:      req.Paths,
		Answer:     req.answer,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "submit answer")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// handleUploadEvidence accepts multipart question_id, optional label and one
// or more files parts. A case_id form field, when sent, must match the path.
func (h *Handler) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEvidenceBody)
	if err := r.ParseMultipartForm(maxEvidenceFileBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "upload too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := readEvidenceFiles(r)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "failed to read evidence upload",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	c := dErrors.Collector{}
	if raw := r.FormValue("case_id"); raw != "" {
		formID, err := domain.ParseCaseID(raw)
		c.Add(err != nil || formID != caseID, "case_id does not match the path")
	}
	c.Add(len(files) > maxEvidenceFiles, fmt.Sprintf("at most %d files per upload", maxEvidenceFiles))
	if err := c.Err("invalid evidence upload"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.svc.UploadEvidence(ctx, caseID, service.EvidenceRequest{
		QuestionID: strings.TrimSpace(r.FormValue("question_id")),
		Label:      r.FormValue("label"),
		Files:      files,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "upload evidence")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func readEvidenceFiles(r *http.Request) ([]service.UploadFile, error) {
	headers := r.MultipartForm.File["files"]
	out := make([]service.UploadFile, 0, len(headers))
	c := dErrors.Collector{}
	for _, fh := range headers {
		if fh.Size > maxEvidenceFileBytes {
			c.Add(true, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, maxEvidenceFileBytes))
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
		}
		out = append(out, service.UploadFile{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	if err := c.Err("invalid evidence upload"); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	code, _ := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
