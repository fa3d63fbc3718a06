package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecas/approval-api/internal/dto"
	"github.com/ecas/approval-api/internal/models"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest, signature *dto.Upload) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateSignature(ctx context.Context, userID string, signature dto.Upload) (*models.User, error)
	Teachers(ctx context.Context) ([]models.TeacherOption, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service        authService
	maxUploadBytes int64
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, maxUploadBytes int64) *AuthHandler {
	return &AuthHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// Register godoc
// @Summary Register account
// @Description Create a student, teacher, HOD or principal account. Accepts JSON or multipart with an optional signature image.
// @Tags Authentication
// @Accept json,mpfd
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	signature, err := formUpload(c, "signature", h.maxUploadBytes)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Register(c.Request.Context(), req, signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email, password and the selected role
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Me godoc
// @Summary Current user profile
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// UpdateSignature godoc
// @Summary Upload digital signature
// @Tags Authentication
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param signature formData file true "Signature image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/signature [put]
func (h *AuthHandler) UpdateSignature(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	signature, err := formUpload(c, "signature", h.maxUploadBytes)
	if err != nil {
		response.Error(c, err)
		return
	}
	if signature == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "signature file is required"))
		return
	}

	user, err := h.service.UpdateSignature(c.Request.Context(), claims.UserID, *signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Teachers godoc
// @Summary List teachers
// @Description Teachers a student can pick as reviewer
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/teachers [get]
func (h *AuthHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.Teachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers)
}
