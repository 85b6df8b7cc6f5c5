package handlers

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/services"
)

// FileHandler exposes material files: ingest, listing, detail, reprocess and delete.
type FileHandler struct {
	log   *logger.Logger
	files services.FileService
}

func NewFileHandler(baseLog *logger.Logger, files services.FileService) *FileHandler {
	return &FileHandler{log: baseLog.With("handler", "FileHandler"), files: files}
}

type registerLinkRequest struct {
	SourceURI          string `json:"source_uri"`
	DisplayName        string `json:"display_name"`
	Language           string `json:"language"`
	ComprehensionLevel string `json:"comprehension_level"`
}

// Create accepts either a multipart upload (field "file") or a JSON body
// carrying a source link. Both paths return 202 with the file and its queued run.
func (h *FileHandler) Create(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.createFromUpload(c, owner)
		return
	}
	h.createFromLink(c, owner)
}

func (h *FileHandler) createFromLink(c *gin.Context, owner uuid.UUID) {
	var req registerLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.files.Ingest(c.Request.Context(), services.IngestInput{
		OwnerUserID:        owner,
		DisplayName:        req.DisplayName,
		SourceURI:          req.SourceURI,
		Language:           req.Language,
		ComprehensionLevel: req.ComprehensionLevel,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, res)
}

func (h *FileHandler) createFromUpload(c *gin.Context, owner uuid.UUID) {
	maxBytes := int64(envutil.Int("MAX_UPLOAD_MB", 32)) << 20
	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	form := c.Request.MultipartForm
	headers := form.File["file"]
	if len(headers) == 0 {
		response.RespondError(c, http.StatusBadRequest, "no_file", nil)
		return
	}
	fh := headers[0]

	src, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "could_not_read_file", err)
		return
	}
	defer src.Close()

	displayName := strings.TrimSpace(formValue(form, "display_name"))
	if displayName == "" {
		displayName = fh.Filename
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}

	res, err := h.files.Ingest(c.Request.Context(), services.IngestInput{
		OwnerUserID:        owner,
		DisplayName:        displayName,
		MimeType:           mimeType,
		SizeBytes:          fh.Size,
		Language:           formValue(form, "language"),
		ComprehensionLevel: formValue(form, "comprehension_level"),
		Content:            src,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, res)
}

func (h *FileHandler) List(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	files, err := h.files.List(c.Request.Context(), owner)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"files": files})
}

func (h *FileHandler) Get(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.files.Get(c.Request.Context(), owner, fileID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

func (h *FileHandler) Reprocess(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.files.Reprocess(c.Request.Context(), owner, fileID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, res)
}

func (h *FileHandler) Delete(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.files.Delete(c.Request.Context(), owner, fileID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}
