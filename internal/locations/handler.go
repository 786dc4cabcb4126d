package locations

import (
	"github.com/gin-gonic/gin"

	"github.com/evecs/backend/pkg/response"
)

// Handler exposes location endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a locations handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body for POST /locations.
type CreateRequest struct {
	Name  string     `json:"name" binding:"required"`
	Rooms []RoomSpec `json:"rooms" binding:"required"`
}

// EditRequest is the body for PUT /locations/:id.
type EditRequest struct {
	Name  *string    `json:"name"`
	Rooms []RoomSpec `json:"rooms"`
}

// Create handles POST /locations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	loc, err := h.svc.Create(c.Request.Context(), req.Name, req.Rooms)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, loc)
}

// Get handles GET /locations/:id.
func (h *Handler) Get(c *gin.Context) {
	loc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, loc)
}

// List handles GET /locations.
func (h *Handler) List(c *gin.Context) {
	locs, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, locs)
}

// Edit handles PUT /locations/:id.
func (h *Handler) Edit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	loc, err := h.svc.Edit(c.Request.Context(), c.Param("id"), req.Name, req.Rooms)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, loc)
}

// Delete handles DELETE /locations/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
