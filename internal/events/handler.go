package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evecs/backend/internal/middleware"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/pkg/response"
	"github.com/evecs/backend/pkg/storage"
)

// Handler exposes the event endpoints.
type Handler struct {
	svc    *Service
	images *storage.S3
	logger *zap.Logger
}

// NewHandler creates an events handler. images may be nil when S3 is not
// configured; the upload endpoint then replies 503.
func NewHandler(svc *Service, images *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, images: images, logger: logger}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.UserID = c.MustGet(middleware.ContextUserID).(string)
	ev, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ev.Public())
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	ev, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev.Public())
}

// List handles GET /events with optional group, tag and location_id query
// filters.
func (h *Handler) List(c *gin.Context) {
	evs, err := h.svc.List(c.Request.Context(),
		c.Query("group"), c.Query("tag"), c.Query("location_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, publicEvents(evs))
}

// Calendar handles POST /events/calendar.
func (h *Handler) Calendar(c *gin.Context) {
	var req CalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	evs, err := h.svc.Calendar(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, publicEvents(evs))
}

// Update handles PUT /events/:id.
func (h *Handler) Update(c *gin.Context) {
	var patch UpdateRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(string)
	ev, err := h.svc.Update(c.Request.Context(), c.Param("id"), userID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev.Public())
}

// Delete handles DELETE /events/:id, returning the cascade count.
func (h *Handler) Delete(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(string)
	deleted, err := h.svc.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_tickets": deleted})
}

// GrantAdminship handles POST /events/:id/admins.
func (h *Handler) GrantAdminship(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	callerID := c.MustGet(middleware.ContextUserID).(string)
	if err := h.svc.GrantAdminship(c.Request.Context(), c.Param("id"), callerID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user_id": req.UserID})
}

// Code handles GET /events/:id/code, creators only.
func (h *Handler) Code(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(string)
	code, err := h.svc.Code(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"code": code})
}

// UploadImage handles POST /events/:id/image (multipart form, field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "image storage is not configured"})
		return
	}
	eventID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(string)
	// Gate before the upload so rejected callers cannot park objects in the
	// bucket.
	if err := h.svc.RequireCreator(c.Request.Context(), eventID, userID); err != nil {
		response.Error(c, err)
		return
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "missing image file")
		return
	}
	if fileHeader.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "image exceeds the 5MB limit")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidImageType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer file.Close()

	url, err := h.images.UploadEventImage(c.Request.Context(), eventID, fileHeader.Filename, contentType, file)
	if err != nil {
		h.logger.Error("image upload failed", zap.String("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to store image")
		return
	}
	ev, err := h.svc.AttachImage(c.Request.Context(), eventID, userID, url)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev.Public())
}

func publicEvents(list []models.Event) []*models.Event {
	out := make([]*models.Event, len(list))
	for i := range list {
		out[i] = list[i].Public()
	}
	return out
}
