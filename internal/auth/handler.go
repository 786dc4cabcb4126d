package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/vocab"
	"github.com/evecs/backend/pkg/response"
	"github.com/evecs/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email      string   `json:"email" binding:"required,email"`
	Password   string   `json:"password" binding:"required"`
	Authorized bool     `json:"authorized"`
	Groups     []string `json:"groups"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	vocab  *vocab.Registry
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, vocab *vocab.Registry, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, vocab: vocab, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !utils.StrongPassword(req.Password) {
		response.BadRequest(c, "password must be at least 8 characters and contain at least 2 special symbols")
		return
	}
	for _, g := range req.Groups {
		if !h.vocab.ValidGroup(g) {
			response.Error(c, apperr.Newf(apperr.KindInvalidGroup, "groups", "invalid group %q", g))
			return
		}
	}

	if _, _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.Error(c, apperr.Newf(apperr.KindDuplicateEmail, "email", "email %q is already in use", req.Email))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	u := &models.User{
		UserID:       uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Authorized:   req.Authorized,
		Groups:       req.Groups,
	}
	if err := h.repo.Create(c.Request.Context(), u); err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	token, err := h.jwt.Generate(u.UserID, u.Email, u.Authorized)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: u.Public()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, _, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !utils.CheckPassword(req.Password, u.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	token, err := h.jwt.Generate(u.UserID, u.Email, u.Authorized)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: u.Public()})
}

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetString("user_id")
	u, _, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u.Public())
}

// UpdateMe handles PUT /users/me (email, password, groups).
func (h *Handler) UpdateMe(c *gin.Context) {
	userID := c.GetString("user_id")
	var req struct {
		Email    *string   `json:"email" binding:"omitempty,email"`
		Password *string   `json:"password"`
		Groups   *[]string `json:"groups"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	u, ver, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	oldEmail := ""
	if req.Email != nil && *req.Email != u.Email {
		if err := h.repo.ChangeEmail(c.Request.Context(), u.UserID, u.Email, *req.Email); err != nil {
			response.Error(c, err)
			return
		}
		oldEmail = u.Email
		u.Email = *req.Email
	}
	if req.Password != nil {
		if !utils.StrongPassword(*req.Password) {
			response.BadRequest(c, "password must be at least 8 characters and contain at least 2 special symbols")
			return
		}
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			response.Internal(c, "failed to hash password")
			return
		}
		u.PasswordHash = hash
	}
	if req.Groups != nil {
		for _, g := range *req.Groups {
			if !h.vocab.ValidGroup(g) {
				response.Error(c, apperr.Newf(apperr.KindInvalidGroup, "groups", "invalid group %q", g))
				return
			}
		}
		u.Groups = *req.Groups
	}

	if _, err := h.repo.Replace(c.Request.Context(), u, ver); err != nil {
		if oldEmail != "" {
			// Give the claimed address back before surfacing the clash.
			_ = h.repo.ChangeEmail(c.Request.Context(), u.UserID, u.Email, oldEmail)
		}
		response.Error(c, apperr.Wrap(apperr.KindConflict, err, "user was modified concurrently, retry"))
		return
	}
	response.OK(c, u.Public())
}

// DeleteMe handles DELETE /users/me.
func (h *Handler) DeleteMe(c *gin.Context) {
	userID := c.GetString("user_id")
	if err := h.repo.Delete(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
