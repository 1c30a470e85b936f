package uploads

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cardscan-backend/internal/shared/server/middleware"
	"cardscan-backend/internal/shared/server/respond"
	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/telemetry"
)

const defaultMaxUploadBytes = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc      *Service
	MaxBytes int64
}

// NewHandler constructs a Handler. maxBytes bounds one upload request.
func NewHandler(svc *Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxBytes: maxBytes}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.upload)
	rg.POST("/uploads/presign", h.presign)
	rg.GET("/uploads", h.list)
	rg.GET("/uploads/:name", h.download)
}

func (h *Handler) upload(c *gin.Context) {
	sessionID := middleware.SessionIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit", gin.H{"limitBytes": h.MaxBytes})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}

	headers := append([]*multipart.FileHeader{}, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "files are required", nil)
		return
	}

	// Reject the whole request before storing anything.
	for _, fh := range headers {
		if _, err := CheckName(fh.Filename); err != nil {
			writeError(c, err)
			return
		}
	}

	saved := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", gin.H{"file": fh.Filename})
			return
		}
		up, err := h.Svc.Save(c.Request.Context(), sessionID, fh.Filename, file)
		file.Close()
		if err != nil {
			writeError(c, err)
			return
		}
		saved = append(saved, up)
	}

	c.Set("files", len(saved))
	respond.JSON(c, http.StatusCreated, gin.H{"files": saved})
}

type presignRequest struct {
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes"`
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}

	sessionID := middleware.SessionIDFromContext(c)
	out, err := h.Svc.Presign(c.Request.Context(), sessionID, req.FileName, req.SizeBytes, h.MaxBytes)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedType) && !errors.Is(err, ErrTooLarge) && !errors.Is(err, object.ErrPresignUnsupported) {
			telemetry.Error("uploads.presign.failed", map[string]any{
				"err":        err.Error(),
				"file":       req.FileName,
				"sizeBytes":  req.SizeBytes,
				"session_id": sessionID,
				"request_id": c.GetString("requestId"),
			})
		}
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) list(c *gin.Context) {
	files, err := h.Svc.List(c.Request.Context(), middleware.SessionIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"files": files})
}

func (h *Handler) download(c *gin.Context) {
	name := c.Param("name")
	rc, contentType, err := h.Svc.Open(c.Request.Context(), middleware.SessionIDFromContext(c), name)
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control": "no-store",
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, "unsupported_type", err.Error(), gin.H{"allowed": []string{"jpg", "jpeg", "png", "pdf", "docx"}})
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", err.Error(), nil)
	case errors.Is(err, object.ErrPresignUnsupported):
		respond.Error(c, http.StatusNotImplemented, "presign_unavailable", "direct uploads need the s3 object store", nil)
	case errors.Is(err, object.ErrInvalidName):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, object.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "storage_error", "failed to access stored files", nil)
	}
}
