package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/envutil"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/services"
)

type DocumentHandler struct {
	log          *logger.Logger
	ingestion    services.IngestionService
	documents    services.DocumentService
	maxUploadMiB int64
}

func NewDocumentHandler(log *logger.Logger, ingestion services.IngestionService, documents services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		log:          log.With("handler", "DocumentHandler"),
		ingestion:    ingestion,
		documents:    documents,
		maxUploadMiB: int64(envutil.Int("MAX_UPLOAD_MIB", 25)),
	}
}

// ingestResponse is the upload envelope: the ingest outcome plus the
// identity and file name echoed back to the client.
func ingestResponse(userID, tenantID, fileName string, result *services.IngestResult) gin.H {
	message := "Document uploaded and indexed successfully"
	if result.AlreadyProcessed {
		message = "Document already processed"
	}
	return gin.H{
		"message":           message,
		"filename":          fileName,
		"s3_key":            result.S3Key,
		"tenant_id":         tenantID,
		"user_id":           userID,
		"chunks_created":    result.ChunksCreated,
		"already_processed": result.AlreadyProcessed,
	}
}

// identityDefaults fills the published fallbacks for absent identity
// parameters on the ingest endpoints.
func identityDefaults(userID, tenantID string) (string, string) {
	if userID == "" {
		userID = "anonymous"
	}
	if tenantID == "" {
		tenantID = "default"
	}
	return userID, tenantID
}

// Upload ingests one multipart file. Fields: file, user_id, tenant_id.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, tenantID := identityDefaults(c.PostForm("user_id"), c.PostForm("tenant_id"))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.log, apierr.New(http.StatusBadRequest, "missing_file", fmt.Errorf("upload: form file: %w", err)))
		return
	}
	if fileHeader.Size > h.maxUploadMiB<<20 {
		respondError(c, h.log, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("upload: %s is %d bytes; limit is %d MiB", fileHeader.Filename, fileHeader.Size, h.maxUploadMiB)))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.log, apierr.New(http.StatusBadRequest, "unreadable_file", fmt.Errorf("upload: open: %w", err)))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, (h.maxUploadMiB<<20)+1))
	if err != nil {
		respondError(c, h.log, apierr.New(http.StatusBadRequest, "unreadable_file", fmt.Errorf("upload: read: %w", err)))
		return
	}

	result, aerr := h.ingestion.Ingest(c.Request.Context(), userID, tenantID, fileHeader.Filename, content, fileHeader.Header.Get("Content-Type"))
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, ingestResponse(userID, tenantID, fileHeader.Filename, result))
}

type uploadJSONRequest struct {
	UserID        string `json:"user_id"`
	TenantID      string `json:"tenant_id"`
	FileName      string `json:"file_name"`
	ContentBase64 string `json:"content_base64"`
	ContentType   string `json:"content_type"`
}

// UploadJSON ingests base64-encoded content, for clients that cannot
// send multipart bodies.
func (h *DocumentHandler) UploadJSON(c *gin.Context) {
	var req uploadJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apierr.New(http.StatusBadRequest, "invalid_body", fmt.Errorf("upload-json: bind: %w", err)))
		return
	}

	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.ContentBase64))
	if err != nil {
		respondError(c, h.log, apierr.New(http.StatusBadRequest, "invalid_base64", fmt.Errorf("upload-json: decode: %w", err)))
		return
	}
	if int64(len(content)) > h.maxUploadMiB<<20 {
		respondError(c, h.log, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("upload-json: %s is %d bytes; limit is %d MiB", req.FileName, len(content), h.maxUploadMiB)))
		return
	}

	userID, tenantID := identityDefaults(req.UserID, req.TenantID)
	result, aerr := h.ingestion.Ingest(c.Request.Context(), userID, tenantID, req.FileName, content, req.ContentType)
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, ingestResponse(userID, tenantID, req.FileName, result))
}

// List returns the caller's document records, newest first.
func (h *DocumentHandler) List(c *gin.Context) {
	records, aerr := h.documents.List(c.Request.Context(), c.Query("user_id"))
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, gin.H{"documents": records, "count": len(records)})
}

type deleteDocumentRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	S3Key    string `json:"s3_key"`
}

// Delete accepts user_id, tenant_id and s3_path as query parameters, or
// a JSON body with s3_key when the query parameters are absent.
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID := c.Query("user_id")
	tenantID := c.Query("tenant_id")
	s3Key := c.Query("s3_path")
	if userID == "" && s3Key == "" {
		var req deleteDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.log, apierr.New(http.StatusBadRequest, "invalid_body", fmt.Errorf("delete document: bind: %w", err)))
			return
		}
		userID, tenantID, s3Key = req.UserID, req.TenantID, req.S3Key
	}

	if aerr := h.documents.Delete(c.Request.Context(), userID, tenantID, s3Key); aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, gin.H{"deleted": true, "s3_key": s3Key})
}
