package tickets

import (
	"github.com/gin-gonic/gin"

	"github.com/evecs/backend/internal/middleware"
	"github.com/evecs/backend/pkg/response"
)

// Handler exposes the ticket endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a tickets handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body for POST /tickets. Email defaults to the
// caller's token email when omitted.
type CreateRequest struct {
	EventID string `json:"event_id" binding:"required"`
	Email   string `json:"email"`
}

// Create handles POST /tickets.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(string)
	email := req.Email
	if email == "" {
		email = c.GetString(middleware.ContextUserEmail)
	}
	t, err := h.svc.Create(c.Request.Context(), userID, req.EventID, email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// Get handles GET /tickets/:id.
func (h *Handler) Get(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// ListByEvent handles GET /events/:id/tickets.
func (h *Handler) ListByEvent(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)
	list, err := h.svc.ListByEvent(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /users/me/tickets.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(string)
	list, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Validate handles POST /tickets/:id/validate.
func (h *Handler) Validate(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(string)
	t, err := h.svc.Validate(c.Request.Context(), c.Param("id"), userID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// Delete handles DELETE /tickets/:id.
func (h *Handler) Delete(c *gin.Context) {
	callerID := c.MustGet(middleware.ContextUserID).(string)
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
