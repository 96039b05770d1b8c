package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docwell/internal/app"
	"docwell/internal/index"
	"docwell/internal/pkg/pdfextract"
	"docwell/internal/transport/http/middleware"
	"docwell/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type DocumentHandler struct {
	assistant *app.AssistantService
}

type CreateDocumentRequest struct {
	Name   string `json:"name"`
	Text   string `json:"text" binding:"required"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

func NewDocumentHandler(assistant *app.AssistantService) *DocumentHandler {
	return &DocumentHandler{assistant: assistant}
}

func getUserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

// Create ingests already-extracted plain text.
func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc, err := h.assistant.Ingest(c.Request.Context(), app.IngestInput{
		OwnerID:   userID,
		Name:      req.Name,
		Text:      req.Text,
		Title:     req.Title,
		Author:    req.Author,
		Pages:     1,
		SizeBytes: int64(len(req.Text)),
	})
	if err != nil {
		writeIngestError(c, err)
		return
	}
	response.OK(c, doc)
}

// Upload accepts a multipart form with "file" (PDF) and optional "name",
// extracts text and ingests.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	extracted, err := pdfextract.Extract(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text from PDF: "+err.Error())
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	// A PDF with no extractable text is still recorded, with zero chunks.
	doc, err := h.assistant.Ingest(c.Request.Context(), app.IngestInput{
		OwnerID:   userID,
		Name:      name,
		Text:      extracted.Text,
		Pages:     extracted.Pages,
		SizeBytes: extracted.Size,
	})
	if err != nil {
		writeIngestError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	docs, err := h.assistant.ListDocuments(userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID := strings.TrimSpace(c.Param("id"))
	if docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	deleted, err := h.assistant.DeleteDocument(docID, userID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "delete document failed")
		return
	}
	if !deleted {
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": docID})
}

func writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, index.ErrDimensionMismatch):
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
	}
}
