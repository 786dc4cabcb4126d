package assist

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evecs/backend/pkg/response"
)

// Handler exposes POST /events/draft.
type Handler struct {
	drafter *Drafter
	logger  *zap.Logger
}

// NewHandler creates an assist handler.
func NewHandler(drafter *Drafter, logger *zap.Logger) *Handler {
	return &Handler{drafter: drafter, logger: logger}
}

// Draft handles POST /events/draft.
func (h *Handler) Draft(c *gin.Context) {
	if h.drafter == nil || !h.drafter.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "event drafting is not configured"})
		return
	}
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	draft, err := h.drafter.DraftEvent(c.Request.Context(), req.Text)
	if err != nil {
		h.logger.Error("event draft failed", zap.Error(err))
		response.Internal(c, "failed to draft event")
		return
	}
	response.OK(c, draft)
}
