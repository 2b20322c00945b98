// Document HTTP handlers.
//
// This file exposes the upload-and-query endpoints:
//   - POST /api/v1/documents        (multipart upload → extraction + initial insight)
//   - POST /api/v1/documents/query  (question against a previously uploaded document)
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/http/middleware"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

// maxUploadBytes caps document uploads. Large filings are fine; arbitrary
// blobs are not.
const maxUploadBytes = 20 << 20 // 20 MiB

// DocumentService defines the document operations consumed by HTTP handlers.
type DocumentService interface {
	// Analyze extracts text from data, stores it under a new document id,
	// and returns an initial insight.
	Analyze(ctx context.Context, accountID string, data []byte, mediaType string) (*services.DocumentAnalysis, error)
	// Query answers a question against a previously analyzed document.
	Query(ctx context.Context, documentID, question string) (string, error)
}

// AnalyzeResponse is the outcome of one upload.
type AnalyzeResponse struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// QueryDocumentRequest asks a question against an uploaded document.
type QueryDocumentRequest struct {
	DocumentID string `json:"documentId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Question   string `json:"question"   binding:"required" example:"What is the governing law clause?"`
}

// QueryDocumentResponse carries the generated answer.
type QueryDocumentResponse struct {
	DocumentID string `json:"documentId"`
	Answer     string `json:"answer"`
}

// DocumentHandlers groups the document endpoints.
type DocumentHandlers struct {
	svc DocumentService
}

// NewDocumentHandlers constructs a DocumentHandlers bound to the given service.
func NewDocumentHandlers(svc DocumentService) *DocumentHandlers {
	return &DocumentHandlers{svc: svc}
}

// Analyze godoc
// @ID          analyzeDocument
// @Summary     Upload and analyze a document
// @Description Extracts text from the uploaded file (PDF or image), stores it
// @Description for follow-up questions, and returns an initial insight.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file  formData  file  true  "Document (application/pdf or image/*)"
//
// @Success     200  {object}  handlers.AnalyzeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     415  {object}  handlers.ErrorResponse  "Unsupported media type"
// @Failure     502  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /documents [post]
func (h *DocumentHandlers) Analyze(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "failed to read uploaded file")
		return
	}
	if len(data) > maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "uploaded file exceeds the size limit")
		return
	}
	if len(data) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uploaded file is empty")
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	res, err := h.svc.Analyze(c.Request.Context(), middleware.AccountIDFrom(c), data, mediaType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedMedia):
			fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia,
				"only application/pdf and image/* uploads are supported")
		case errors.Is(err, services.ErrEmptyDocument):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no text could be extracted from the document")
		case errors.Is(err, services.ErrGenerationFailed):
			fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, "generation service unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, AnalyzeResponse{
		DocumentID: res.DocumentID,
		Title:      res.Title,
		Content:    res.Content,
	})
}

// Query godoc
// @ID          queryDocument
// @Summary     Ask a question about an uploaded document
// @Description Answers against the stored document context (cache first,
// @Description durable store as fallback).
// @Tags        Documents
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.QueryDocumentRequest  true  "Query payload"
//
// @Success     200  {object}  handlers.QueryDocumentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Document not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /documents/query [post]
func (h *DocumentHandlers) Query(c *gin.Context) {
	var req QueryDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "documentId and question are required")
		return
	}

	answer, err := h.svc.Query(c.Request.Context(), req.DocumentID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDocumentNotFound):
			fail(c, http.StatusNotFound, ErrCodeDocumentNotFound, "document not found or expired")
		case errors.Is(err, services.ErrGenerationFailed):
			fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, "generation service unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, QueryDocumentResponse{DocumentID: req.DocumentID, Answer: answer})
}
