package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leasepack/internal/compliance"
	"leasepack/internal/facts/casefacts"
	"leasepack/internal/platform/middleware"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/platform/httputil"
)

// maxDocumentBytes bounds a notice upload held in memory for validation.
const maxDocumentBytes = 10 << 20

// Engine is the subset of the compliance engine the handler calls.
type Engine interface {
	ValidateDocument(ctx context.Context, in compliance.DocumentInput, cf casefacts.CaseFacts) compliance.Summary
	EvaluateCase(ctx context.Context, cf casefacts.CaseFacts, product domain.ProductType, jurisdiction domain.Jurisdiction) compliance.Summary
}

// CaseReader loads the typed facts of a case.
type CaseReader interface {
	CaseFacts(ctx context.Context, id domain.CaseID) (casefacts.CaseFacts, error)
}

type Handler struct {
	engine Engine
	cases  CaseReader
	logger *slog.Logger
}

func New(engine Engine, cases CaseReader, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, cases: cases, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/cases/{caseID}/compliance", h.handleEvaluateCase)
	r.Post("/cases/{caseID}/compliance/documents", h.handleValidateDocument)
}

// handleEvaluateCase reports whether a case is ready for checkout of a product.
func (h *Handler) handleEvaluateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	cf, ok := h.loadFacts(w, r)
	if !ok {
		return
	}
	product, err := domain.ParseProductType(r.URL.Query().Get("product"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	jurisdiction := cf.Jurisdiction
	if q := r.URL.Query().Get("jurisdiction"); q != "" {
		if jurisdiction, err = domain.ParseJurisdiction(q); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if jurisdiction == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "case has no jurisdiction"))
		return
	}

	summary := h.engine.EvaluateCase(ctx, cf, product, jurisdiction)
	h.logger.InfoContext(ctx, "case evaluated",
		"request_id", requestID,
		"product", product,
		"status", summary.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// handleValidateDocument validates an uploaded notice. Bad uploads are reported
// in the summary, not as HTTP errors.
func (h *Handler) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	cf, ok := h.loadFacts(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes+1<<20)
	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "document too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form"))
		return
	}
	expected, ok := compliance.ParseExpected(r.FormValue("expected"))
	if !ok {
		httputil.WriteError(w, dErrors.WithDetails(dErrors.CodeValidation, "invalid expected document type",
			"expected must be one of section_21, section_8, notice_to_leave"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read document upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read upload"))
		return
	}

	summary := h.engine.ValidateDocument(ctx, compliance.DocumentInput{
		Expected: expected,
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, cf)
	h.logger.InfoContext(ctx, "document validated",
		"request_id", requestID,
		"expected", expected,
		"status", summary.Status,
		"terminal", summary.TerminalBlocker,
	)
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) loadFacts(w http.ResponseWriter, r *http.Request) (casefacts.CaseFacts, bool) {
	ctx := r.Context()
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return casefacts.CaseFacts{}, false
	}
	cf, err := h.cases.CaseFacts(ctx, caseID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load case facts",
				"request_id", middleware.GetRequestID(ctx),
				"case_id", caseID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return casefacts.CaseFacts{}, false
	}
	return cf, true
}
