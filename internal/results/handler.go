package results

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/export"
	"cardscan-backend/internal/extraction"
	"cardscan-backend/internal/shared/server/middleware"
	"cardscan-backend/internal/shared/server/respond"
)

// Handler exposes extraction runs, the editable result grid and exports.
type Handler struct {
	Svc *extraction.Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *extraction.Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches result routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extractions", h.extract)
	rg.GET("/results", h.get)
	rg.GET("/results/raw", h.raw)
	rg.PUT("/results", h.replace)
	rg.GET("/results/export", h.export)
	rg.DELETE("/session", h.clear)
}

func (h *Handler) extract(c *gin.Context) {
	summary, err := h.Svc.Extract(c.Request.Context(), middleware.SessionIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, extraction.ErrNoImages):
			respond.Error(c, http.StatusUnprocessableEntity, "no_images", "No images found to process.", nil)
		case errors.Is(err, extraction.ErrRunInProgress):
			respond.Error(c, http.StatusConflict, "run_in_progress", "An extraction is already running for this session.", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to run extraction", nil)
		}
		return
	}

	c.Set("runId", summary.RunID)
	c.Set("files", summary.Processed)
	respond.OK(c, summary)
}

type resultsResponse struct {
	Records   []cards.Record      `json:"records"`
	Notices   []extraction.Notice `json:"notices"`
	LastRunID string              `json:"lastRunId,omitempty"`
	UpdatedAt *time.Time          `json:"updatedAt,omitempty"`
}

func toResultsResponse(set extraction.SessionResultSet) resultsResponse {
	resp := resultsResponse{
		Records:   set.Records,
		Notices:   set.Notices,
		LastRunID: set.LastRunID,
	}
	if !set.UpdatedAt.IsZero() {
		t := set.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func (h *Handler) get(c *gin.Context) {
	respond.OK(c, toResultsResponse(h.Svc.Results(middleware.SessionIDFromContext(c))))
}

func (h *Handler) raw(c *gin.Context) {
	set := h.Svc.Results(middleware.SessionIDFromContext(c))
	respond.OK(c, gin.H{
		"archive": set.Archive,
		"replies": set.Replies,
	})
}

type replaceRequest struct {
	Records []cards.Record `json:"records"`
}

func (h *Handler) replace(c *gin.Context) {
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.Records == nil {
		req.Records = []cards.Record{}
	}
	set := h.Svc.ReplaceRecords(middleware.SessionIDFromContext(c), req.Records)
	respond.OK(c, toResultsResponse(set))
}

func (h *Handler) export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "format must be csv or xlsx", nil)
		return
	}

	set := h.Svc.Results(middleware.SessionIDFromContext(c))
	data, err := export.Render(format, set.Records)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "export_failed", "failed to render export", nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *Handler) clear(c *gin.Context) {
	n, err := h.Svc.Clear(c.Request.Context(), middleware.SessionIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, extraction.ErrRunInProgress):
			respond.Error(c, http.StatusConflict, "run_in_progress", "An extraction is running; try again when it finishes.", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "storage_error", "failed to clear stored files", nil)
		}
		return
	}
	c.Set("files", n)
	respond.OK(c, gin.H{"cleared": n, "message": "All data cleared!"})
}
