package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucansdev/project-ai-document/internal/app"
	"github.com/lucansdev/project-ai-document/internal/transport/http/response"
)

const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	documentService *app.DocumentService
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload accepts a multipart "file" field (pdf or txt) and registers it as an
// unprocessed document.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer f.Close()

	doc, err := h.documentService.Upload(app.UploadInput{
		UserID:   userID,
		FileName: fileHeader.Filename,
		Reader:   f,
	})
	if err != nil {
		respondServiceError(c, err, "upload document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	docs, err := h.documentService.List(userID)
	if err != nil {
		respondServiceError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	documentID, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(userID, documentID)
	if err != nil {
		respondServiceError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

// Process chunks and embeds the document. The processed flag flips exactly
// once; reprocessing is rejected with a conflict.
func (h *DocumentHandler) Process(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	documentID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.documentService.Process(c.Request.Context(), userID, documentID)
	if err != nil {
		respondServiceError(c, err, "process document failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	documentID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.documentService.Delete(userID, documentID); err != nil {
		respondServiceError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": documentID})
}
